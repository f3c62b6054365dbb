package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsPublishedTotal tracks published events by type.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betledger_events_published_total",
			Help: "Total number of ledger events published",
		},
		[]string{"type"},
	)

	// EventsDroppedTotal tracks events not delivered to a slow subscriber.
	EventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_events_dropped_total",
		Help: "Total number of events dropped for slow subscribers",
	})

	// Subscribers tracks the number of active subscribers.
	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "betledger_events_subscribers",
		Help: "Number of active event subscribers",
	})
)
