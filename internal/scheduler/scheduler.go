// Package scheduler runs the periodic broadcast and chart cleanup jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"ratebot/internal/provider"
	"ratebot/internal/service"
	"ratebot/internal/worker"
)

// RateFetcher fetches and records one rate.
type RateFetcher interface {
	Fetch(ctx context.Context, p provider.RatesProvider, currency string) (service.Quote, bool)
}

// SubscriberLister lists broadcast recipients.
type SubscriberLister interface {
	ActiveSubscribers(ctx context.Context) []int64
}

// Deliverer queues one message for one subscriber.
type Deliverer interface {
	EnqueueDelivery(ctx context.Context, payload worker.DeliveryPayload) error
}

// Sweeper removes stale chart files.
type Sweeper interface {
	SweepStale(dir, prefix string, maxAge time.Duration) int
}

// BroadcastJob describes the daily rate message.
type BroadcastJob struct {
	Spec      string
	Currency  string
	Source    provider.RatesProvider
	Rates     RateFetcher
	Subs      SubscriberLister
	Deliverer Deliverer
}

// SweepJob describes the chart cleanup.
type SweepJob struct {
	Spec    string
	Dir     string
	Prefix  string
	MaxAge  time.Duration
	Sweeper Sweeper
}

// Scheduler owns a cron instance with the configured jobs.
type Scheduler struct {
	cron      *cron.Cron
	broadcast *BroadcastJob
	sweep     *SweepJob
	logger    *zap.SugaredLogger
}

// NewScheduler creates a new Scheduler. Either job may be nil.
func NewScheduler(broadcast *BroadcastJob, sweep *SweepJob, logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		broadcast: broadcast,
		sweep:     sweep,
		logger:    logger,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.broadcast != nil {
		if _, err := s.cron.AddFunc(s.broadcast.Spec, func() { s.RunBroadcast(ctx) }); err != nil {
			return fmt.Errorf("schedule broadcast %q: %w", s.broadcast.Spec, err)
		}
		s.logger.Infow("Broadcast scheduled", "spec", s.broadcast.Spec, "currency", s.broadcast.Currency, "source", s.broadcast.Source.Name())
	}
	if s.sweep != nil {
		if _, err := s.cron.AddFunc(s.sweep.Spec, s.RunSweep); err != nil {
			return fmt.Errorf("schedule chart sweep %q: %w", s.sweep.Spec, err)
		}
		s.logger.Infow("Chart sweep scheduled", "spec", s.sweep.Spec, "dir", s.sweep.Dir, "max_age", s.sweep.MaxAge)
	}

	s.cron.Start()
	return nil
}

// Stop stops the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Infow("Stopping scheduler")
	<-s.cron.Stop().Done()
}

// RunBroadcast fetches the configured rate and queues it for every active subscriber.
// It returns the number of queued deliveries.
func (s *Scheduler) RunBroadcast(ctx context.Context) int {
	b := s.broadcast
	if b == nil {
		return 0
	}
	start := time.Now()

	q, ok := b.Rates.Fetch(ctx, b.Source, b.Currency)
	if !ok {
		s.logger.Warnw("Broadcast skipped, rate unavailable", "currency", b.Currency, "source", b.Source.Name())
		return 0
	}
	text := fmt.Sprintf("Daily rate %s (%s) for %s: %s UAH", q.Currency, q.Source, q.Date, service.FormatRate(q.Rate))

	queued := 0
	for _, id := range b.Subs.ActiveSubscribers(ctx) {
		if err := b.Deliverer.EnqueueDelivery(ctx, worker.DeliveryPayload{UserID: id, Text: text}); err != nil {
			s.logger.Errorw("Failed to enqueue delivery", "user_id", id, "error", err)
			continue
		}
		queued++
	}

	s.logger.Infow("Broadcast queued", "deliveries", queued, "duration_ms", time.Since(start).Milliseconds())
	return queued
}

// RunSweep removes stale charts.
func (s *Scheduler) RunSweep() {
	if s.sweep == nil {
		return
	}
	s.sweep.Sweeper.SweepStale(s.sweep.Dir, s.sweep.Prefix, s.sweep.MaxAge)
}
