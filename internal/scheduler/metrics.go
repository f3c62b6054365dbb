package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MarketsClosedTotal tracks markets closed because their deadline passed.
	MarketsClosedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_scheduler_markets_closed_total",
		Help: "Total number of markets closed at their deadline",
	})

	// PollDurationSeconds tracks deadline poll latency.
	PollDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "betledger_scheduler_poll_duration_seconds",
		Help:    "Duration of deadline polls",
		Buckets: prometheus.DefBuckets,
	})

	// PollErrorsTotal tracks failed polls and failed closes.
	PollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_scheduler_poll_errors_total",
		Help: "Total number of deadline poll or close failures",
	})
)
