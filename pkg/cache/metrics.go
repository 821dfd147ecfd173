package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by backend
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_hits_total",
			Help: "Total number of query cache hits",
		},
		[]string{"backend"},
	)

	// CacheMisses tracks cache misses by backend
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_misses_total",
			Help: "Total number of query cache misses",
		},
		[]string{"backend"},
	)

	// CacheStores tracks responses written to the cache
	CacheStores = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_stores_total",
			Help: "Total number of responses stored in the query cache",
		},
		[]string{"backend"},
	)

	// CacheEvictions tracks entries evicted to stay within capacity
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_evictions_total",
			Help: "Total number of query cache entries evicted for capacity",
		},
		[]string{"backend"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "store", "evict", "stats", "purge", "decode"
	)
)
