// Package service implements the business layer between chat commands, rate sources and storage.
package service

import (
	"context"

	"go.uber.org/zap"

	"ratebot/internal/metrics"
	"ratebot/internal/repository"
)

// Observation is one stored rate as seen by callers.
type Observation struct {
	Date     string
	Currency string
	Source   string
	Rate     float64
}

// Store adapts the repositories so that callers only branch on presence.
// Every storage error is logged here once and turned into an absent value,
// an empty result or a no-op.
type Store struct {
	rates repository.RateRepository
	subs  repository.SubscriberRepository
	stats repository.StatsRepository
	log   *zap.SugaredLogger
}

// NewStore creates a new Store.
func NewStore(rates repository.RateRepository, subs repository.SubscriberRepository, stats repository.StatsRepository, logger *zap.SugaredLogger) *Store {
	return &Store{rates: rates, subs: subs, stats: stats, log: logger}
}

// RecordRate appends an observation and reports whether it was stored.
func (s *Store) RecordRate(ctx context.Context, date, currency, source string, rate float64) bool {
	if err := s.rates.Insert(ctx, date, currency, source, rate); err != nil {
		s.fail("record_rate", err, "currency", currency, "source", source, "date", date)
		return false
	}
	return true
}

// LatestRate returns the newest observation for the pair.
func (s *Store) LatestRate(ctx context.Context, currency, source string) (Observation, bool) {
	o, err := s.rates.Latest(ctx, currency, source)
	if err != nil {
		s.fail("latest_rate", err, "currency", currency, "source", source)
		return Observation{}, false
	}
	if o == nil {
		return Observation{}, false
	}
	return observationFromRepo(*o), true
}

// History returns at most limit observations for the pair, oldest first.
func (s *Store) History(ctx context.Context, currency, source string, limit int) []Observation {
	rows, err := s.rates.History(ctx, currency, source, limit)
	if err != nil {
		s.fail("history", err, "currency", currency, "source", source, "limit", limit)
		return []Observation{}
	}
	out := make([]Observation, 0, len(rows))
	for _, r := range rows {
		out = append(out, observationFromRepo(r))
	}
	return out
}

// Register adds the user as a subscriber unless they are already known.
func (s *Store) Register(ctx context.Context, userID int64) {
	if err := s.subs.Register(ctx, userID); err != nil {
		s.fail("register", err, "user_id", userID)
	}
}

// Subscribe opts the user into broadcasts, reviving an earlier unsubscribe.
func (s *Store) Subscribe(ctx context.Context, userID int64) {
	if err := s.subs.Subscribe(ctx, userID); err != nil {
		s.fail("subscribe", err, "user_id", userID)
	}
}

func (s *Store) Unsubscribe(ctx context.Context, userID int64) {
	if err := s.subs.Unsubscribe(ctx, userID); err != nil {
		s.fail("unsubscribe", err, "user_id", userID)
	}
}

// ActiveSubscribers lists every user with the subscribed flag set.
func (s *Store) ActiveSubscribers(ctx context.Context) []int64 {
	ids, err := s.subs.ListActive(ctx)
	if err != nil {
		s.fail("active_subscribers", err)
		return []int64{}
	}
	if ids == nil {
		return []int64{}
	}
	return ids
}

// RecordUsage increments the counter for command.
func (s *Store) RecordUsage(ctx context.Context, command string) {
	if err := s.stats.Increment(ctx, command); err != nil {
		s.fail("record_usage", err, "command", command)
	}
}

// AllUsage returns a snapshot of every command counter.
func (s *Store) AllUsage(ctx context.Context) map[string]int64 {
	all, err := s.stats.All(ctx)
	if err != nil {
		s.fail("all_usage", err)
		return map[string]int64{}
	}
	return all
}

func (s *Store) fail(op string, err error, kv ...any) {
	metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
	s.log.Errorw("Store operation failed", append([]any{"operation", op, "error", err}, kv...)...)
}

func observationFromRepo(o repository.RateObservation) Observation {
	return Observation{Date: o.Date, Currency: o.Currency, Source: o.Source, Rate: o.Rate}
}
