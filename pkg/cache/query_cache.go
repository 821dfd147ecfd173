package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/search-client/pkg/clock"
	"github.com/Sternrassler/search-client/pkg/search"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrCacheMiss indicates no entry is cached for the query
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Scope selects how cache entries are namespaced.
type Scope string

const (
	// ScopeDisabled turns caching off.
	ScopeDisabled Scope = "disabled"

	// ScopeShared uses one namespace per backend.
	ScopeShared Scope = "shared"

	// ScopePrivate uses one namespace per cache instance.
	ScopePrivate Scope = "private"
)

// ParseScope parses a scope name. The empty string means disabled.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeDisabled, "none", "off":
		return ScopeDisabled, nil
	case ScopeShared:
		return ScopeShared, nil
	case ScopePrivate:
		return ScopePrivate, nil
	}
	return "", search.NewParamError("Cache", "unknown cache scope %q (want disabled, shared or private)", s)
}

// Enabled reports whether the scope caches anything.
func (s Scope) Enabled() bool {
	return s == ScopeShared || s == ScopePrivate
}

// Defaults for Config.
const (
	DefaultCapacity = 1000
	DefaultTTL      = 7 * 24 * time.Hour
)

// Config holds query cache configuration.
type Config struct {
	// Backend names the engine the cache serves; it prefixes every key.
	Backend string

	// Scope must be ScopeShared or ScopePrivate.
	Scope Scope

	// Capacity bounds the entries per namespace (default: DefaultCapacity).
	Capacity int

	// TTL is the default entry lifetime (default: DefaultTTL).
	TTL time.Duration

	// Clock stamps last-access metadata (default: real clock).
	Clock clock.Clock
}

// QueryCache caches search responses by query fingerprint.
type QueryCache struct {
	store    Store
	ns       Namespace
	scope    Scope
	capacity int
	ttl      time.Duration
	clock    clock.Clock
	logger   zerolog.Logger

	// mu serializes the count-evict-insert sequence of Store.
	mu sync.Mutex
}

// New creates a query cache and checks the store is reachable.
// An unreachable store yields a search.ErrCacheConnection error.
func New(ctx context.Context, store Store, cfg Config) (*QueryCache, error) {
	if store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if cfg.Backend == "" {
		return nil, fmt.Errorf("cache backend name is required")
	}
	if !cfg.Scope.Enabled() {
		return nil, fmt.Errorf("cache scope must be shared or private (got %q)", cfg.Scope)
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	ns := Namespace{Backend: cfg.Backend}
	if cfg.Scope == ScopePrivate {
		ns.Instance = uuid.NewString()
	}

	if err := store.Ping(ctx); err != nil {
		CacheErrors.WithLabelValues("connect").Inc()
		return nil, search.NewCacheConnectionError("Cache", err)
	}

	c := &QueryCache{
		store:    store,
		ns:       ns,
		scope:    cfg.Scope,
		capacity: cfg.Capacity,
		ttl:      cfg.TTL,
		clock:    clock.Or(cfg.Clock),
		logger: log.With().
			Str("component", "query-cache").
			Str("namespace", ns.String()).
			Logger(),
	}
	c.logger.Debug().
		Str("scope", string(cfg.Scope)).
		Int("capacity", cfg.Capacity).
		Dur("ttl", cfg.TTL).
		Msg("Query cache ready")
	return c, nil
}

// Namespace returns the key namespace of this cache.
func (c *QueryCache) Namespace() Namespace { return c.ns }

// Scope returns the cache scope.
func (c *QueryCache) Scope() Scope { return c.scope }

// Capacity returns the per-namespace entry bound.
func (c *QueryCache) Capacity() int { return c.capacity }

// TTL returns the default entry lifetime.
func (c *QueryCache) TTL() time.Duration { return c.ttl }

// Key returns the store key used for q.
func (c *QueryCache) Key(q *search.Query) string {
	return c.ns.EntryKey(q)
}

// Get returns the cached response for q, or ErrCacheMiss.
// A hit increments the entry's hit count and records the access time. An
// entry removed between the read and the hit update is reported as a miss.
func (c *QueryCache) Get(ctx context.Context, q *search.Query) (*search.Response, error) {
	key := c.Key(q)

	data, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			CacheMisses.WithLabelValues(c.ns.Backend).Inc()
			c.logger.Debug().Str("key", key).Msg("Cache miss")
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("cache get: %w", err)
	}

	resp, err := search.DecodeResponse(data)
	if err != nil {
		CacheErrors.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	recorded, err := c.store.RecordHit(ctx, key, formatAccessTime(c.clock.Now()))
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("cache record hit: %w", err)
	}
	if !recorded {
		CacheMisses.WithLabelValues(c.ns.Backend).Inc()
		c.logger.Debug().Str("key", key).Msg("Entry removed during read, treated as miss")
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(c.ns.Backend).Inc()
	c.logger.Debug().Str("key", key).Int("results", resp.ResultTotal).Msg("Cache hit")
	return resp, nil
}

// Contains reports whether a response is cached for q without touching its
// usage metadata.
func (c *QueryCache) Contains(ctx context.Context, q *search.Query) (bool, error) {
	ok, err := c.store.Exists(ctx, c.Key(q))
	if err != nil {
		CacheErrors.WithLabelValues("contains").Inc()
		return false, fmt.Errorf("cache contains: %w", err)
	}
	return ok, nil
}

// Store caches r for q with the default TTL.
func (c *QueryCache) Store(ctx context.Context, q *search.Query, r *search.Response) error {
	return c.StoreTTL(ctx, q, r, c.ttl)
}

// StoreTTL caches r for q with the given TTL; ttl <= 0 stores without
// expiry. The write is skipped if q is already cached. Oldest-inserted
// entries are evicted first while the namespace is at capacity.
func (c *QueryCache) StoreTTL(ctx context.Context, q *search.Query, r *search.Response, ttl time.Duration) error {
	if r == nil {
		return fmt.Errorf("cache response cannot be nil")
	}
	key := c.Key(q)

	data, err := r.Encode()
	if err != nil {
		CacheErrors.WithLabelValues("store").Inc()
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	exists, err := c.store.Exists(ctx, key)
	if err != nil {
		CacheErrors.WithLabelValues("store").Inc()
		return fmt.Errorf("cache store: %w", err)
	}
	if exists {
		c.logger.Debug().Str("key", key).Msg("Entry already cached, store skipped")
		return nil
	}

	if err := c.evict(ctx); err != nil {
		CacheErrors.WithLabelValues("evict").Inc()
		return fmt.Errorf("cache evict: %w", err)
	}

	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		CacheErrors.WithLabelValues("store").Inc()
		return fmt.Errorf("cache store: %w", err)
	}
	seq, err := c.store.Increment(ctx, c.ns.SequenceKey(), sequenceField)
	if err != nil {
		CacheErrors.WithLabelValues("store").Inc()
		return fmt.Errorf("cache sequence: %w", err)
	}
	if err := c.store.IndexAdd(ctx, c.ns.IndexKey(), key, float64(seq)); err != nil {
		CacheErrors.WithLabelValues("store").Inc()
		return fmt.Errorf("cache index: %w", err)
	}

	CacheStores.WithLabelValues(c.ns.Backend).Inc()
	c.logger.Debug().
		Str("key", key).
		Dur("ttl", ttl).
		Int("bytes", len(data)).
		Msg("Cached response")
	return nil
}

// evict removes oldest-inserted entries until the namespace is below capacity.
func (c *QueryCache) evict(ctx context.Context) error {
	index := c.ns.IndexKey()
	for {
		n, err := c.store.IndexCount(ctx, index)
		if err != nil {
			return err
		}
		if n < int64(c.capacity) {
			return nil
		}

		victim, err := c.store.IndexRemoveLowest(ctx, index)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := c.store.Delete(ctx, victim); err != nil {
			return err
		}

		CacheEvictions.WithLabelValues(c.ns.Backend).Inc()
		c.logger.Debug().
			Str("key", victim).
			Int64("count", n).
			Int("capacity", c.capacity).
			Msg("Evicted oldest entry")
	}
}

// Stats returns the usage metadata of the entry cached for q, or ErrCacheMiss.
func (c *QueryCache) Stats(ctx context.Context, q *search.Query) (EntryStats, error) {
	key := c.Key(q)

	ok, err := c.store.Exists(ctx, key)
	if err != nil {
		CacheErrors.WithLabelValues("stats").Inc()
		return EntryStats{}, fmt.Errorf("cache stats: %w", err)
	}
	if !ok {
		return EntryStats{}, ErrCacheMiss
	}

	count, err := c.field(ctx, key, FieldCount)
	if err != nil {
		return EntryStats{}, err
	}
	last, err := c.field(ctx, key, FieldLast)
	if err != nil {
		return EntryStats{}, err
	}
	return parseEntryStats(count, last)
}

func (c *QueryCache) field(ctx context.Context, key, field string) (string, error) {
	v, err := c.store.Field(ctx, key, field)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		CacheErrors.WithLabelValues("stats").Inc()
		return "", fmt.Errorf("cache stats: %w", err)
	}
	return v, nil
}

// Len returns the number of indexed entries in the namespace, including
// expired entries not yet evicted.
func (c *QueryCache) Len(ctx context.Context) (int64, error) {
	n, err := c.store.IndexCount(ctx, c.ns.IndexKey())
	if err != nil {
		CacheErrors.WithLabelValues("len").Inc()
		return 0, fmt.Errorf("cache len: %w", err)
	}
	return n, nil
}

// Purge deletes every entry of the namespace together with its index and
// sequence counter. Owners of a private cache must call it on teardown.
func (c *QueryCache) Purge(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.DeleteNamespace(ctx, c.ns.IndexKey()); err != nil {
		CacheErrors.WithLabelValues("purge").Inc()
		return fmt.Errorf("cache purge: %w", err)
	}
	if err := c.store.Delete(ctx, c.ns.SequenceKey()); err != nil {
		CacheErrors.WithLabelValues("purge").Inc()
		return fmt.Errorf("cache purge: %w", err)
	}
	c.logger.Info().Msg("Cache namespace purged")
	return nil
}
