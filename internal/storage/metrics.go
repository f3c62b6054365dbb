package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsTotal tracks ledger transactions by outcome.
	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betledger_storage_transactions_total",
			Help: "Total number of ledger transactions by outcome",
		},
		[]string{"outcome"},
	)

	// TransactionDurationSeconds tracks committed transaction latency.
	TransactionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "betledger_storage_transaction_duration_seconds",
		Help:    "Duration of committed ledger transactions",
		Buckets: prometheus.DefBuckets,
	})
)
