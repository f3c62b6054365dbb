package flow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsStartedTotal tracks offer conversations started.
	SessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_flow_sessions_started_total",
		Help: "Total number of offer flow sessions started",
	})

	// SessionsConfirmedTotal tracks conversations that placed an offer.
	SessionsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_flow_sessions_confirmed_total",
		Help: "Total number of offer flow sessions that placed an offer",
	})

	// SessionsCancelledTotal tracks conversations abandoned by the participant.
	SessionsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_flow_sessions_cancelled_total",
		Help: "Total number of offer flow sessions cancelled",
	})

	// SessionsExpiredTotal tracks conversations that timed out.
	SessionsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_flow_sessions_expired_total",
		Help: "Total number of offer flow sessions expired",
	})

	// ActiveSessions tracks live conversations.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "betledger_flow_active_sessions",
		Help: "Number of live offer flow sessions",
	})
)
