// Package metrics provides the Prometheus registry and HTTP handler for the
// search client. All metrics are defined in their respective packages
// (engine, cache, ratelimit, pagination, httpclient, retry, server) to
// maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the search client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the metrics registered in Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Catalogue lists the name of every metric the search client registers.
var Catalogue = []string{
	"search_requests_total",
	"search_request_duration_seconds",
	"search_errors_total",
	"search_cache_hits_total",
	"search_cache_misses_total",
	"search_cache_stores_total",
	"search_cache_evictions_total",
	"search_cache_errors_total",
	"search_throttle_waits_total",
	"search_throttle_wait_seconds",
	"search_pages_fetched_total",
	"search_http_requests_total",
	"search_http_request_duration_seconds",
	"search_retries_total",
	"search_retry_backoff_seconds",
	"search_retry_exhausted_total",
	"search_server_requests_total",
}

// Metrics Documentation
//
// Engine Metrics (pkg/engine):
//   - search_requests_total{engine, source} (Counter): Searches answered, source is cache or backend
//   - search_request_duration_seconds{engine} (Histogram): Search duration including throttle waits
//   - search_errors_total{engine, class} (Counter): Failed searches by error class
//
// Cache Metrics (pkg/cache):
//   - search_cache_hits_total{backend} (Counter): Cache hits
//   - search_cache_misses_total{backend} (Counter): Cache misses
//   - search_cache_stores_total{backend} (Counter): Entries written
//   - search_cache_evictions_total{backend} (Counter): Entries evicted at capacity
//   - search_cache_errors_total{operation} (Counter): Cache store errors
//
// Throttle Metrics (pkg/ratelimit):
//   - search_throttle_waits_total{engine} (Counter): Searches delayed by the throttle
//   - search_throttle_wait_seconds{engine} (Histogram): Time spent waiting
//
// Pagination Metrics (pkg/pagination):
//   - search_pages_fetched_total{engine} (Counter): Backend pages fetched by auto-pagination
//
// Provider Metrics (pkg/httpclient):
//   - search_http_requests_total{source, status} (Counter): Provider requests by HTTP status
//   - search_http_request_duration_seconds{source} (Histogram): Provider round trip duration
//
// Retry Metrics (pkg/retry):
//   - search_retries_total{error_class} (Counter): Retry attempts by error class
//   - search_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - search_retry_exhausted_total{error_class} (Counter): Searches that exhausted max retries
//
// Server Metrics (pkg/server):
//   - search_server_requests_total{route, status} (Counter): Proxy HTTP requests
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(search_cache_hits_total[5m])) /
//   (sum(rate(search_cache_hits_total[5m])) + sum(rate(search_cache_misses_total[5m])))
//
//   # Backend calls saved by the cache, per engine
//   sum by (engine) (rate(search_requests_total{source="cache"}[5m]))
//
//   # Provider rate limiting
//   rate(search_http_requests_total{status="429"}[5m])
//
//   # P95 Search Latency
//   histogram_quantile(0.95, rate(search_request_duration_seconds_bucket[5m]))
