// Package metrics holds the process-wide Prometheus collectors served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	RateFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratebot_rate_fetch_total",
			Help: "Rate fetches by source, currency and outcome",
		},
		[]string{"source", "currency", "outcome"},
	)

	RateFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ratebot_rate_fetch_duration_seconds",
			Help:    "Latency of outbound rate fetches",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"source"},
	)

	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratebot_store_errors_total",
			Help: "Storage failures swallowed by the store adapter",
		},
		[]string{"operation"},
	)

	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratebot_commands_total",
			Help: "Inbound chat commands handled",
		},
		[]string{"command"},
	)

	ChartRendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratebot_chart_renders_total",
			Help: "Chart renders by outcome",
		},
		[]string{"outcome"},
	)

	ChartsSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ratebot_charts_swept_total",
			Help: "Stale chart files removed",
		},
	)

	BroadcastDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratebot_broadcast_deliveries_total",
			Help: "Broadcast delivery task results",
		},
		[]string{"outcome"},
	)

	RateEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratebot_rate_events_total",
			Help: "Rate events published to Kafka by outcome",
		},
		[]string{"outcome"},
	)
)
