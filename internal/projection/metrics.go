package projection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReloadsTotal tracks snapshots loaded from the ledger.
	ReloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_projection_reloads_total",
		Help: "Total number of market snapshots loaded from the ledger",
	})

	// Bindings tracks presentation messages bound to markets.
	Bindings = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "betledger_projection_bindings",
		Help: "Number of presentation messages bound to markets",
	})

	// StaleReloadsSkippedTotal tracks reloads not cached because the market
	// was invalidated while they were reading.
	StaleReloadsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_projection_stale_reloads_skipped_total",
		Help: "Total number of reloaded snapshots discarded after a concurrent invalidation",
	})
)
