// Package cache provides the query response cache with a Redis backend.
//
// A QueryCache maps a search.Query fingerprint to a previously computed
// search.Response. Entries live in a Store (RedisStore in production) as a
// hash holding the encoded response plus usage metadata, and every namespace
// keeps a sorted-set index ordered by insertion for capacity eviction.
//
// # Scopes
//
//   - ScopeShared: one namespace per backend, search:{backend}. Entries are
//     visible to every engine of that backend, across processes.
//   - ScopePrivate: one namespace per cache instance,
//     search:{backend}:{uuid}. The owner must call Purge on teardown.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//
//	qc, err := cache.New(ctx, cache.NewRedisStore(redisClient), cache.Config{
//		Backend: "wikipedia",
//		Scope:   cache.ScopeShared,
//	})
//	if err != nil {
//		return err // search.ErrCacheConnection if Redis is unreachable
//	}
//
//	resp, err := qc.Get(ctx, query)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		resp, err = adapter.Search(ctx, query)
//		// ...
//		err = qc.Store(ctx, query, resp)
//	}
//
// # Semantics
//
// Store is write-once: a second Store for the same fingerprint is skipped.
// Before inserting, the oldest-inserted entries are evicted while the
// namespace holds Capacity or more entries. The count-evict-insert sequence
// is serialized per QueryCache but not across processes, so concurrent
// writers sharing a namespace may overshoot Capacity by a small margin.
//
// TTL and capacity are independent: an expired entry disappears from the
// store but its index member still counts until it is evicted or the same
// fingerprint is stored again.
//
// Store errors from Get and Store are returned to the caller; they are never
// reported as a cache miss.
//
// # Metrics
//
//   - search_cache_hits_total{backend}
//   - search_cache_misses_total{backend}
//   - search_cache_stores_total{backend}
//   - search_cache_evictions_total{backend}
//   - search_cache_errors_total{operation}
package cache
