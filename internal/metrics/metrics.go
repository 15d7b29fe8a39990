package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tick outcomes.
const (
	OutcomeFetchFailed = "fetch_failed"
	OutcomeDiscarded   = "discarded"
	OutcomeNoData      = "no_data"
	OutcomeDuplicate   = "duplicate"
	OutcomeRejected    = "rejected"
	OutcomePublished   = "published"
)

var (
	PollTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_poll_ticks_total",
			Help: "Total number of poll ticks fired",
		},
	)

	PollOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_poll_outcomes_total",
			Help: "Poll tick results by outcome",
		},
		[]string{"outcome"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intake_fetch_duration_seconds",
			Help:    "Duration of get-latest-webhook requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PollingEnabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intake_polling_enabled",
			Help: "1 while polling is enabled",
		},
	)
)
