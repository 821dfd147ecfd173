package engine

import (
	"time"

	"github.com/Sternrassler/search-client/pkg/cache"
	"github.com/Sternrassler/search-client/pkg/clock"
	"github.com/Sternrassler/search-client/pkg/search"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Options configures an Engine.
type Options struct {
	// Cache selects the cache scope (default: disabled).
	Cache cache.Scope

	// Store backs the cache. When nil and Redis is set, a RedisStore is
	// built from Redis. Required when Cache is enabled.
	Store cache.Store
	Redis redis.UniversalClient

	// CacheCapacity bounds entries per cache namespace (default: cache.DefaultCapacity).
	CacheCapacity int

	// CacheTTL is the entry lifetime (default: cache.DefaultTTL).
	CacheTTL time.Duration

	// Throttle is the minimum interval between backend invocations; 0 disables it.
	Throttle time.Duration

	// PageSize overrides the adapter's page size for auto-pagination.
	PageSize int

	// Params is the backend configuration bag the adapter was built from.
	Params search.Params

	// Clock drives throttling and cache timestamps (default: real clock).
	Clock clock.Clock

	// Logger defaults to the global logger with component=engine.
	Logger *zerolog.Logger
}

// DefaultOptions returns options with caching disabled and no throttle.
func DefaultOptions() Options {
	return Options{
		Cache:         cache.ScopeDisabled,
		CacheCapacity: cache.DefaultCapacity,
		CacheTTL:      cache.DefaultTTL,
	}
}

func (o Options) store() cache.Store {
	if o.Store != nil {
		return o.Store
	}
	if o.Redis != nil {
		return cache.NewRedisStore(o.Redis)
	}
	return nil
}
