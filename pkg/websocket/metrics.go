package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks connected event feed followers.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "betledger_ws_follower_active_connections",
		Help: "Number of connected event feed followers",
	})

	// ReconnectAttemptsTotal tracks reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_ws_follower_reconnect_attempts_total",
		Help: "Total number of event feed reconnection attempts",
	})

	// ReconnectFailuresTotal tracks reconnection failures.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_ws_follower_reconnect_failures_total",
		Help: "Total number of failed event feed reconnection attempts",
	})

	// EventsReceivedTotal tracks events received by type.
	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betledger_ws_follower_events_received_total",
			Help: "Total number of ledger events received from the feed",
		},
		[]string{"type"},
	)

	// DecodeErrorsTotal tracks frames that were not valid events.
	DecodeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_ws_follower_decode_errors_total",
		Help: "Total number of event feed frames that failed to decode",
	})
)
