// Package engine orchestrates a search: validation, cache lookup, throttle,
// backend invocation (auto-paginated when needed) and cache store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/search-client/pkg/cache"
	"github.com/Sternrassler/search-client/pkg/clock"
	"github.com/Sternrassler/search-client/pkg/pagination"
	"github.com/Sternrassler/search-client/pkg/ratelimit"
	"github.com/Sternrassler/search-client/pkg/search"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned by Search after Close.
var ErrClosed = errors.New("engine closed")

// Engine dispatches queries to one backend adapter.
// It is safe for concurrent use.
type Engine struct {
	name      string
	adapter   search.Adapter
	cache     *cache.QueryCache
	scope     cache.Scope
	throttle  *ratelimit.Throttle
	paginator *pagination.Paginator
	params    search.Params
	clock     clock.Clock
	logger    zerolog.Logger

	numRequests       atomic.Int64
	numRequestsCached atomic.Int64
	lastSearch        atomic.Int64 // unix nanoseconds, 0 = never

	// inflight is read-held by every Search; Close takes it exclusively so
	// no search can write into a namespace after it is purged.
	inflight sync.RWMutex
	closeMu  sync.Mutex
	closed   atomic.Bool
	purged   bool
}

// New creates an engine around adapter. With caching enabled the store is
// pinged and an unreachable store fails with search.ErrCacheConnection.
func New(ctx context.Context, name string, adapter search.Adapter, opts Options) (*Engine, error) {
	if name == "" {
		return nil, fmt.Errorf("engine name is required")
	}
	if adapter == nil {
		return nil, fmt.Errorf("engine %s: adapter is required", name)
	}
	if opts.Cache == "" {
		opts.Cache = cache.ScopeDisabled
	}

	logger := log.With().Str("component", "engine").Str("engine", name).Logger()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("engine", name).Logger()
	}
	clk := clock.Or(opts.Clock)

	e := &Engine{
		name:     name,
		adapter:  adapter,
		scope:    opts.Cache,
		throttle: ratelimit.NewThrottle(name, opts.Throttle, clk, logger),
		paginator: pagination.New(pagination.Config{
			Engine:   name,
			PageSize: opts.PageSize,
			Logger:   &logger,
		}),
		params: opts.Params.Clone(),
		clock:  clk,
		logger: logger,
	}

	if opts.Cache.Enabled() {
		store := opts.store()
		if store == nil {
			return nil, fmt.Errorf("engine %s: cache scope %s needs a store or redis client", name, opts.Cache)
		}
		qc, err := cache.New(ctx, store, cache.Config{
			Backend:  name,
			Scope:    opts.Cache,
			Capacity: opts.CacheCapacity,
			TTL:      opts.CacheTTL,
			Clock:    clk,
		})
		if err != nil {
			return nil, err
		}
		e.cache = qc
	}

	logger.Info().
		Str("cache", string(opts.Cache)).
		Dur("throttle", opts.Throttle).
		Int("page_size", e.paginator.PageSize(adapter)).
		Msg("Engine created")

	return e, nil
}

// Search runs q against the engine:
//
//  1. reject malformed queries with a search.ErrParam error
//  2. count the request
//  3. return the cached response on a cache hit, skipping the backend
//  4. wait for the throttle interval
//  5. invoke the adapter, paginating when q.Top exceeds one page
//  6. record the search time
//  7. cache the response
//
// Backend failures are returned as-is; Search never retries.
func (e *Engine) Search(ctx context.Context, q *search.Query) (*search.Response, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	e.inflight.RLock()
	defer e.inflight.RUnlock()
	if e.closed.Load() {
		return nil, ErrClosed
	}
	start := time.Now()
	defer func() {
		searchRequestDuration.WithLabelValues(e.name).Observe(time.Since(start).Seconds())
	}()

	if err := e.validate(q); err != nil {
		return nil, e.fail(err, q)
	}
	e.numRequests.Add(1)

	if e.cache != nil {
		resp, err := e.cache.Get(ctx, q)
		if err == nil {
			e.numRequestsCached.Add(1)
			searchRequestsTotal.WithLabelValues(e.name, sourceCache).Inc()
			e.logger.Debug().Str("terms", q.Terms).Msg("Served from cache")
			return resp, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			return nil, e.fail(err, q)
		}
	}

	if err := e.throttle.Wait(ctx); err != nil {
		return nil, e.fail(err, q)
	}

	resp, err := e.paginator.Fetch(ctx, e.adapter, q)
	e.throttle.Done()
	e.lastSearch.Store(e.clock.Now().UnixNano())
	if err != nil {
		return nil, e.fail(err, q)
	}
	if resp == nil {
		resp = search.NewResponse(q.Terms, q)
	}
	if resp.Query == nil {
		resp.Query = q
	}
	searchRequestsTotal.WithLabelValues(e.name, sourceBackend).Inc()

	if e.cache != nil {
		if err := e.cache.Store(ctx, q, resp); err != nil {
			return nil, e.fail(err, q)
		}
	}

	e.logger.Debug().
		Str("terms", q.Terms).
		Int("top", q.Top).
		Int("results", resp.ResultTotal).
		Dur("duration", time.Since(start)).
		Msg("Search complete")

	return resp, nil
}

func (e *Engine) validate(q *search.Query) error {
	if err := q.Validate(); err != nil {
		return err
	}
	if limiter, ok := e.adapter.(search.ResultLimiter); ok {
		if limit := limiter.MaxResults(); limit > 0 && q.Top > limit {
			return search.NewParamError(e.name, "top %d exceeds the %d results the engine can return", q.Top, limit)
		}
	}
	return nil
}

func (e *Engine) fail(err error, q *search.Query) error {
	class := string(search.ClassOf(err))
	if class == "" {
		class = "other"
	}
	searchErrorsTotal.WithLabelValues(e.name, class).Inc()

	event := e.logger.Error()
	if class == string(search.ClassParam) {
		event = e.logger.Debug()
	}
	if q != nil {
		event = event.Str("terms", q.Terms)
	}
	event.Err(err).Str("error_class", class).Msg("Search failed")
	return err
}

// Close releases the engine. New searches fail with ErrClosed and Close
// waits for running ones to finish. A private cache namespace is then
// purged; shared entries are left for other engines. Close is idempotent
// and a failed purge may be retried by calling Close again.
func (e *Engine) Close(ctx context.Context) error {
	e.closeMu.Lock()
	defer e.closeMu.Unlock()

	e.closed.Store(true)
	if e.purged {
		return nil
	}

	e.inflight.Lock()
	defer e.inflight.Unlock()

	if e.cache != nil && e.scope == cache.ScopePrivate {
		if err := e.cache.Purge(ctx); err != nil {
			e.logger.Error().Err(err).Msg("Failed to purge private cache")
			return fmt.Errorf("engine %s: %w", e.name, err)
		}
	}
	e.purged = true
	e.logger.Info().
		Int64("requests", e.numRequests.Load()).
		Int64("cached", e.numRequestsCached.Load()).
		Msg("Engine closed")
	return nil
}

// Name returns the engine identifier.
func (e *Engine) Name() string { return e.name }

// Scope returns the cache scope.
func (e *Engine) Scope() cache.Scope { return e.scope }

// NumRequests returns the number of valid searches issued.
func (e *Engine) NumRequests() int64 { return e.numRequests.Load() }

// NumRequestsCached returns the number of searches served from the cache.
func (e *Engine) NumRequestsCached() int64 { return e.numRequestsCached.Load() }

// Params returns a copy of the backend configuration bag.
func (e *Engine) Params() search.Params { return e.params.Clone() }

// Cache returns the query cache, or nil when caching is disabled.
func (e *Engine) Cache() *cache.QueryCache { return e.cache }

// Adapter returns the backend adapter.
func (e *Engine) Adapter() search.Adapter { return e.adapter }

// Throttle returns the engine throttle.
func (e *Engine) Throttle() *ratelimit.Throttle { return e.throttle }

// LastSearch returns the time of the last backend invocation, or the zero
// time if the backend was never called.
func (e *Engine) LastSearch() time.Time {
	ns := e.lastSearch.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Closed reports whether Close has been called.
func (e *Engine) Closed() bool { return e.closed.Load() }

// String describes the engine for logs.
func (e *Engine) String() string {
	return fmt.Sprintf("Engine(%s, cache=%s, throttle=%s)", e.name, e.scope, e.throttle.Interval())
}
