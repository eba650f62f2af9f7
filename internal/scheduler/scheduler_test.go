package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ratebot/internal/provider"
	"ratebot/internal/service"
	"ratebot/internal/worker"
)

type stubProvider struct{ name string }

func (p stubProvider) Name() string { return p.name }
func (p stubProvider) GetRate(context.Context, string) (float64, error) { return 0, nil }

type stubFetcher struct {
	quote service.Quote
	ok    bool
	calls int
}

func (f *stubFetcher) Fetch(_ context.Context, p provider.RatesProvider, currency string) (service.Quote, bool) {
	f.calls++
	return f.quote, f.ok
}

type stubSubs []int64

func (s stubSubs) ActiveSubscribers(context.Context) []int64 { return s }

type recordingDeliverer struct {
	mu       sync.Mutex
	payloads []worker.DeliveryPayload
	failFor  int64
}

func (d *recordingDeliverer) EnqueueDelivery(_ context.Context, p worker.DeliveryPayload) error {
	if p.UserID == d.failFor {
		return errors.New("redis unavailable")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads = append(d.payloads, p)
	return nil
}

type countingSweeper struct {
	mu    sync.Mutex
	calls int
	args  []any
}

func (s *countingSweeper) SweepStale(dir, prefix string, maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.args = []any{dir, prefix, maxAge}
	return 0
}

func (s *countingSweeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestRunBroadcast(t *testing.T) {
	fetcher := &stubFetcher{
		quote: service.Quote{Currency: "USD", Source: "NBU", Rate: 39.4, Date: "2024-05-02"},
		ok:    true,
	}
	deliverer := &recordingDeliverer{failFor: 2}
	s := NewScheduler(&BroadcastJob{
		Spec:      "0 9 * * *",
		Currency:  "USD",
		Source:    stubProvider{name: "NBU"},
		Rates:     fetcher,
		Subs:      stubSubs{1, 2, 3},
		Deliverer: deliverer,
	}, nil, zap.NewNop().Sugar())

	queued := s.RunBroadcast(context.Background())

	assert.Equal(t, 2, queued)
	require.Len(t, deliverer.payloads, 2)
	assert.Equal(t, int64(1), deliverer.payloads[0].UserID)
	assert.Equal(t, int64(3), deliverer.payloads[1].UserID)
	assert.Equal(t, "Daily rate USD (NBU) for 2024-05-02: 39.4 UAH", deliverer.payloads[0].Text)
}

func TestRunBroadcast_RateUnavailable(t *testing.T) {
	deliverer := &recordingDeliverer{}
	s := NewScheduler(&BroadcastJob{
		Spec:      "0 9 * * *",
		Currency:  "USD",
		Source:    stubProvider{name: "NBU"},
		Rates:     &stubFetcher{ok: false},
		Subs:      stubSubs{1},
		Deliverer: deliverer,
	}, nil, zap.NewNop().Sugar())

	assert.Equal(t, 0, s.RunBroadcast(context.Background()))
	assert.Empty(t, deliverer.payloads)
}

func TestRunBroadcast_Disabled(t *testing.T) {
	s := NewScheduler(nil, nil, zap.NewNop().Sugar())
	assert.Equal(t, 0, s.RunBroadcast(context.Background()))
	s.RunSweep()
}

func TestScheduler_SweepRunsOnSchedule(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewScheduler(nil, &SweepJob{
		Spec:    "@every 1s",
		Dir:     "charts",
		Prefix:  "chart_",
		MaxAge:  time.Hour,
		Sweeper: sweeper,
	}, zap.NewNop().Sugar())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool { return sweeper.count() > 0 }, 3*time.Second, 50*time.Millisecond)
	sweeper.mu.Lock()
	assert.Equal(t, []any{"charts", "chart_", time.Hour}, sweeper.args)
	sweeper.mu.Unlock()
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := NewScheduler(nil, &SweepJob{Spec: "not a cron", Sweeper: &countingSweeper{}}, zap.NewNop().Sugar())
	assert.Error(t, s.Start(context.Background()))
}
