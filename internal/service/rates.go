package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ratebot/internal/events"
	"ratebot/internal/metrics"
	"ratebot/internal/provider"
)

const dateLayout = "2006-01-02"

// Quote is a freshly fetched rate stamped with the local calendar day.
type Quote struct {
	Currency string
	Source   string
	Rate     float64
	Date     string
}

// Comparison is one line of a multi-source view. OK is false when the source failed.
type Comparison struct {
	Source string
	Rate   float64
	OK     bool
}

// RatePublisher receives every stored observation.
type RatePublisher interface {
	PublishRate(ctx context.Context, ev events.RateEvent) error
}

// RateRecorder is the write side of Store used by RateService.
type RateRecorder interface {
	RecordRate(ctx context.Context, date, currency, source string, rate float64) bool
}

// RateService fetches rates from sources and writes them through to the store.
type RateService struct {
	store          RateRecorder
	publisher      RatePublisher
	log            *zap.SugaredLogger
	now            func() time.Time
	publishTimeout time.Duration
}

// Option configures a RateService.
type Option func(*RateService)

// WithPublisher publishes each stored observation.
func WithPublisher(p RatePublisher) Option {
	return func(s *RateService) { s.publisher = p }
}

// WithClock overrides the clock used for date stamping.
func WithClock(now func() time.Time) Option {
	return func(s *RateService) { s.now = now }
}

// NewRateService creates a new RateService.
func NewRateService(store RateRecorder, logger *zap.SugaredLogger, opts ...Option) *RateService {
	s := &RateService{
		store:          store,
		log:            logger,
		now:            time.Now,
		publishTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch asks p for the currency's rate. On success the rate is stamped with today's
// date, recorded and returned. Any source failure yields ok=false and writes nothing.
func (s *RateService) Fetch(ctx context.Context, p provider.RatesProvider, currency string) (Quote, bool) {
	source := p.Name()
	start := time.Now()
	rate, err := p.GetRate(ctx, currency)
	metrics.RateFetchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RateFetchTotal.WithLabelValues(source, currency, metrics.OutcomeError).Inc()
		s.log.Warnw("Rate fetch failed", "source", source, "currency", currency, "error", err)
		return Quote{}, false
	}
	metrics.RateFetchTotal.WithLabelValues(source, currency, metrics.OutcomeOK).Inc()

	now := s.now()
	q := Quote{Currency: currency, Source: source, Rate: rate, Date: now.Format(dateLayout)}
	if s.store.RecordRate(ctx, q.Date, q.Currency, q.Source, q.Rate) {
		s.publish(ctx, q, now)
	}
	return q, true
}

// Compare fetches from every source concurrently and returns one entry per source
// in the order given. A failed source never fails the others.
func (s *RateService) Compare(ctx context.Context, currency string, sources []provider.RatesProvider) []Comparison {
	out := make([]Comparison, len(sources))
	var g errgroup.Group
	for i, p := range sources {
		g.Go(func() error {
			q, ok := s.Fetch(ctx, p, currency)
			out[i] = Comparison{Source: p.Name(), Rate: q.Rate, OK: ok}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *RateService) publish(ctx context.Context, q Quote, at time.Time) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	ev := events.RateEvent{Date: q.Date, Currency: q.Currency, Source: q.Source, Rate: q.Rate, RecordedAt: at.UTC()}
	if err := s.publisher.PublishRate(ctx, ev); err != nil {
		s.log.Warnw("Rate event publish failed", "source", q.Source, "currency", q.Currency, "error", err)
	}
}

// FormatRate prints a rate with the shortest exact decimal representation.
func FormatRate(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}
