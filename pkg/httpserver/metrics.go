package httpserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RateLimitedTotal tracks requests rejected by the per-client limiter
	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_http_rate_limited_total",
		Help: "Total number of API requests rejected with 429",
	})

	// EventStreamClients tracks connected websocket event subscribers
	EventStreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "betledger_http_event_stream_clients",
		Help: "Number of connected websocket event stream clients",
	})

	// EventStreamWriteErrorsTotal tracks failed websocket writes
	EventStreamWriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_http_event_stream_write_errors_total",
		Help: "Total number of websocket write failures on the event stream",
	})
)
