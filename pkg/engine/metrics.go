package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for engine searches.
var (
	searchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_requests_total",
		Help: "Total searches by engine and result source (cache, backend)",
	}, []string{"engine", "source"})

	searchRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "search_request_duration_seconds",
		Help:    "Search duration in seconds by engine, including throttle waits",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"engine"})

	searchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_errors_total",
		Help: "Total failed searches by engine and error class",
	}, []string{"engine", "class"})
)

const (
	sourceCache   = "cache"
	sourceBackend = "backend"
)
