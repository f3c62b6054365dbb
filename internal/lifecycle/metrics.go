package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MarketsCreatedTotal tracks created markets.
	MarketsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_lifecycle_markets_created_total",
		Help: "Total number of markets created",
	})

	// MarketsClosedTotal tracks open→closed transitions.
	MarketsClosedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_lifecycle_markets_closed_total",
		Help: "Total number of markets closed",
	})

	// MarketsResolvedTotal tracks resolved markets.
	MarketsResolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_lifecycle_markets_resolved_total",
		Help: "Total number of markets resolved",
	})

	// MarketsRemovedTotal tracks administratively purged markets.
	MarketsRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_lifecycle_markets_removed_total",
		Help: "Total number of markets removed by administrators",
	})

	// OperationErrorsTotal tracks failed lifecycle operations by error kind.
	OperationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betledger_lifecycle_operation_errors_total",
			Help: "Total number of failed lifecycle operations",
		},
		[]string{"op", "kind"},
	)
)
