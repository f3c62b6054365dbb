package matching

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OffersCreatedTotal tracks placed offers.
	OffersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_matching_offers_created_total",
		Help: "Total number of bet offers placed",
	})

	// OffersCancelledTotal tracks offers withdrawn by their bettor.
	OffersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_matching_offers_cancelled_total",
		Help: "Total number of bet offers cancelled by their bettor",
	})

	// OffersAcceptedTotal tracks matched bets.
	OffersAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_matching_offers_accepted_total",
		Help: "Total number of bet offers accepted",
	})

	// AcceptConflictsTotal tracks acceptances refused because the offer or
	// market was no longer open.
	AcceptConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_matching_accept_conflicts_total",
		Help: "Total number of acceptances refused by state",
	})

	// MatchedVolumeTotal tracks the combined stake of matched bets.
	MatchedVolumeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_matching_volume_total",
		Help: "Total offer plus ask amount of matched bets",
	})

	// AcceptDurationSeconds tracks acceptance latency including lock waits.
	AcceptDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "betledger_matching_accept_duration_seconds",
		Help:    "Duration of offer acceptance",
		Buckets: prometheus.DefBuckets,
	})

	// OperationErrorsTotal tracks failed matching operations by error kind.
	OperationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betledger_matching_operation_errors_total",
			Help: "Total number of failed matching operations",
		},
		[]string{"op", "kind"},
	)
)
