package settlement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BetsSettledTotal tracks matched bets included in settlement reports.
	BetsSettledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_settlement_bets_settled_total",
		Help: "Total number of matched bets settled",
	})

	// SettledVolumeTotal tracks the amount won, labelled by which side won.
	SettledVolumeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betledger_settlement_volume_total",
			Help: "Total amount won in settled bets, by winning side",
		},
		[]string{"winner"},
	)

	// SettleDurationSeconds tracks settlement computation latency.
	SettleDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "betledger_settlement_duration_seconds",
		Help:    "Duration of settlement computation",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
	})
)
