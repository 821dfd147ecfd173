package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/search-client/internal/testutil"
	"github.com/Sternrassler/search-client/pkg/cache"
	"github.com/Sternrassler/search-client/pkg/search"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func mustQuery(t *testing.T, terms string, opts ...search.QueryOption) *search.Query {
	t.Helper()
	q, err := search.NewQuery(terms, opts...)
	if err != nil {
		t.Fatalf("NewQuery(%q) error = %v", terms, err)
	}
	return q
}

func newTestEngine(t *testing.T, adapter search.Adapter, opts Options) *Engine {
	t.Helper()
	e, err := New(context.Background(), "stub", adapter, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func TestNew_Validation(t *testing.T) {
	adapter := &testutil.StubAdapter{}
	ctx := context.Background()

	if _, err := New(ctx, "", adapter, Options{}); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := New(ctx, "stub", nil, Options{}); err == nil {
		t.Error("expected error for nil adapter")
	}
	if _, err := New(ctx, "stub", adapter, Options{Cache: cache.ScopeShared}); err == nil {
		t.Error("expected error for enabled cache without a store")
	}
}

func TestNew_CacheUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer client.Close()

	_, err := New(context.Background(), "stub", &testutil.StubAdapter{}, Options{Cache: cache.ScopeShared, Redis: client})
	if !errors.Is(err, search.ErrCacheConnection) {
		t.Errorf("New() error = %v, want ErrCacheConnection", err)
	}
}

func TestSearch_CacheHitBypassesBackend(t *testing.T) {
	client, _ := setupTestRedis(t)
	adapter := &testutil.StubAdapter{}
	e := newTestEngine(t, adapter, Options{Cache: cache.ScopeShared, Redis: client})
	ctx := context.Background()

	first, err := e.Search(ctx, mustQuery(t, "court"))
	if err != nil {
		t.Fatalf("first Search() error = %v", err)
	}
	second, err := e.Search(ctx, mustQuery(t, "court"))
	if err != nil {
		t.Fatalf("second Search() error = %v", err)
	}

	if adapter.Calls() != 1 {
		t.Errorf("adapter calls = %d, want 1", adapter.Calls())
	}
	if e.NumRequests() != 2 {
		t.Errorf("NumRequests() = %d, want 2", e.NumRequests())
	}
	if e.NumRequestsCached() != 1 {
		t.Errorf("NumRequestsCached() = %d, want 1", e.NumRequestsCached())
	}
	if !first.Equal(second) {
		t.Error("cached response differs from the original")
	}
}

func TestSearch_CacheSharedAcrossEngines(t *testing.T) {
	client, _ := setupTestRedis(t)
	first := &testutil.StubAdapter{}
	second := &testutil.StubAdapter{}
	ctx := context.Background()

	a := newTestEngine(t, first, Options{Cache: cache.ScopeShared, Redis: client})
	b := newTestEngine(t, second, Options{Cache: cache.ScopeShared, Redis: client})

	if _, err := a.Search(ctx, mustQuery(t, "shared")); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if _, err := b.Search(ctx, mustQuery(t, "shared")); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if second.Calls() != 0 {
		t.Errorf("second engine called its backend %d times, want 0", second.Calls())
	}
	if b.NumRequestsCached() != 1 {
		t.Errorf("NumRequestsCached() = %d, want 1", b.NumRequestsCached())
	}
}

func TestSearch_CacheDisabled(t *testing.T) {
	adapter := &testutil.StubAdapter{}
	e := newTestEngine(t, adapter, Options{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := e.Search(ctx, mustQuery(t, "court")); err != nil {
			t.Fatalf("Search() error = %v", err)
		}
	}
	if adapter.Calls() != 2 {
		t.Errorf("adapter calls = %d, want 2", adapter.Calls())
	}
	if e.Cache() != nil {
		t.Error("Cache() should be nil when caching is disabled")
	}
}

func TestSearch_Throttle(t *testing.T) {
	clk := testutil.NewFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	adapter := &testutil.StubAdapter{Clock: clk}
	e := newTestEngine(t, adapter, Options{Throttle: 2 * time.Second, Clock: clk})
	ctx := context.Background()

	for _, terms := range []string{"first", "second"} {
		if _, err := e.Search(ctx, mustQuery(t, terms)); err != nil {
			t.Fatalf("Search(%q) error = %v", terms, err)
		}
	}

	calls := adapter.Invocations()
	if len(calls) != 2 {
		t.Fatalf("adapter calls = %d, want 2", len(calls))
	}
	if gap := calls[1].At.Sub(calls[0].At); gap < 2*time.Second {
		t.Errorf("invocations %v apart, want >= 2s", gap)
	}
	if !e.LastSearch().Equal(calls[1].At) {
		t.Errorf("LastSearch() = %v, want %v", e.LastSearch(), calls[1].At)
	}
}

func TestSearch_ThrottleSkippedOnCacheHit(t *testing.T) {
	client, _ := setupTestRedis(t)
	clk := testutil.NewFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	adapter := &testutil.StubAdapter{Clock: clk}
	e := newTestEngine(t, adapter, Options{Cache: cache.ScopeShared, Redis: client, Throttle: 5 * time.Second, Clock: clk})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := e.Search(ctx, mustQuery(t, "same")); err != nil {
			t.Fatalf("Search() error = %v", err)
		}
	}
	if slept := clk.TotalSlept(); slept != 0 {
		t.Errorf("slept %v on cache hits, want 0", slept)
	}
}

func TestSearch_InvalidQuery(t *testing.T) {
	client, mr := setupTestRedis(t)
	adapter := &testutil.StubAdapter{}
	e := newTestEngine(t, adapter, Options{Cache: cache.ScopeShared, Redis: client})

	tests := []struct {
		name  string
		query *search.Query
	}{
		{name: "nil", query: nil},
		{name: "no terms", query: mustQuery(t, " ?! ")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Search(context.Background(), tt.query)
			if !errors.Is(err, search.ErrParam) {
				t.Errorf("Search() error = %v, want ErrParam", err)
			}
		})
	}

	if e.NumRequests() != 0 {
		t.Errorf("NumRequests() = %d, want 0", e.NumRequests())
	}
	if adapter.Calls() != 0 {
		t.Errorf("adapter calls = %d, want 0", adapter.Calls())
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Errorf("cache touched by invalid queries: %v", keys)
	}
}

func TestSearch_TopExceedsMaxResults(t *testing.T) {
	adapter := &testutil.StubAdapter{PageLimit: 50, Limit: 1000}
	e := newTestEngine(t, adapter, Options{})

	_, err := e.Search(context.Background(), mustQuery(t, "big", search.WithTop(1001)))
	if !errors.Is(err, search.ErrParam) {
		t.Errorf("Search() error = %v, want ErrParam", err)
	}
	if adapter.Calls() != 0 {
		t.Errorf("adapter calls = %d, want 0", adapter.Calls())
	}
}

func TestSearch_AutoPaginates(t *testing.T) {
	adapter := &testutil.StubAdapter{PageLimit: 50}
	e := newTestEngine(t, adapter, Options{})

	resp, err := e.Search(context.Background(), mustQuery(t, "paged", search.WithTop(120)))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if adapter.Calls() != 3 {
		t.Errorf("adapter calls = %d, want 3", adapter.Calls())
	}
	if resp.ResultTotal != 120 {
		t.Errorf("ResultTotal = %d, want 120", resp.ResultTotal)
	}
	if e.NumRequests() != 1 {
		t.Errorf("NumRequests() = %d, want 1 for one paginated search", e.NumRequests())
	}
}

func TestSearch_BackendErrorNotCached(t *testing.T) {
	client, _ := setupTestRedis(t)
	adapter := &testutil.StubAdapter{Err: search.NewConnectionError("Stub", 503, "", nil)}
	e := newTestEngine(t, adapter, Options{Cache: cache.ScopeShared, Redis: client})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := e.Search(ctx, mustQuery(t, "down")); !errors.Is(err, search.ErrConnection) {
			t.Fatalf("Search() error = %v, want ErrConnection", err)
		}
	}
	if adapter.Calls() != 2 {
		t.Errorf("adapter calls = %d, want 2", adapter.Calls())
	}
	if e.NumRequestsCached() != 0 {
		t.Errorf("NumRequestsCached() = %d, want 0", e.NumRequestsCached())
	}
}

func TestSearch_CacheFailureIsNotAMiss(t *testing.T) {
	client, mr := setupTestRedis(t)
	adapter := &testutil.StubAdapter{}
	e := newTestEngine(t, adapter, Options{Cache: cache.ScopeShared, Redis: client})

	mr.Close()

	if _, err := e.Search(context.Background(), mustQuery(t, "court")); err == nil {
		t.Fatal("expected error with the cache store down")
	}
	if adapter.Calls() != 0 {
		t.Errorf("adapter calls = %d, want 0", adapter.Calls())
	}
}

func TestClose_PurgesPrivateCache(t *testing.T) {
	client, mr := setupTestRedis(t)
	adapter := &testutil.StubAdapter{}
	e := newTestEngine(t, adapter, Options{Cache: cache.ScopePrivate, Redis: client})
	ctx := context.Background()

	if _, err := e.Search(ctx, mustQuery(t, "private")); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	ns := e.Cache().Namespace().String()
	if !hasKeyWithPrefix(mr.Keys(), ns) {
		t.Fatalf("no keys under %s before Close: %v", ns, mr.Keys())
	}

	if err := e.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if hasKeyWithPrefix(mr.Keys(), ns) {
		t.Errorf("keys left under %s after Close: %v", ns, mr.Keys())
	}
	if err := e.Close(ctx); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := e.Search(ctx, mustQuery(t, "private")); !errors.Is(err, ErrClosed) {
		t.Errorf("Search() after Close error = %v, want ErrClosed", err)
	}
}

// gatedAdapter blocks every search until release is closed.
type gatedAdapter struct {
	testutil.StubAdapter
	entered chan struct{}
	release chan struct{}
}

func (a *gatedAdapter) Search(ctx context.Context, q *search.Query) (*search.Response, error) {
	a.entered <- struct{}{}
	<-a.release
	return a.StubAdapter.Search(ctx, q)
}

func TestClose_WaitsForRunningSearch(t *testing.T) {
	client, mr := setupTestRedis(t)
	adapter := &gatedAdapter{entered: make(chan struct{}, 1), release: make(chan struct{})}
	e := newTestEngine(t, adapter, Options{Cache: cache.ScopePrivate, Redis: client})
	ns := e.Cache().Namespace().String()
	ctx := context.Background()
	q := mustQuery(t, "in flight")

	searchErr := make(chan error, 1)
	go func() {
		_, err := e.Search(ctx, q)
		searchErr <- err
	}()
	<-adapter.entered

	closeErr := make(chan error, 1)
	go func() { closeErr <- e.Close(ctx) }()

	select {
	case err := <-closeErr:
		t.Fatalf("Close() returned %v while a search was running", err)
	case <-time.After(50 * time.Millisecond):
	}
	if _, err := e.Search(ctx, mustQuery(t, "late")); !errors.Is(err, ErrClosed) {
		t.Errorf("Search() during Close error = %v, want ErrClosed", err)
	}

	close(adapter.release)
	if err := <-searchErr; err != nil {
		t.Errorf("running Search() error = %v", err)
	}
	if err := <-closeErr; err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if hasKeyWithPrefix(mr.Keys(), ns) {
		t.Errorf("keys left under %s after Close: %v", ns, mr.Keys())
	}
}

func TestClose_KeepsSharedCache(t *testing.T) {
	client, mr := setupTestRedis(t)
	e := newTestEngine(t, &testutil.StubAdapter{}, Options{Cache: cache.ScopeShared, Redis: client})
	ctx := context.Background()

	if _, err := e.Search(ctx, mustQuery(t, "shared")); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if err := e.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !hasKeyWithPrefix(mr.Keys(), e.Cache().Namespace().String()) {
		t.Error("shared entries removed on Close")
	}
}

func TestEngine_Accessors(t *testing.T) {
	params := search.Params{"api_key": search.String("k")}
	e := newTestEngine(t, &testutil.StubAdapter{}, Options{Params: params, Throttle: time.Second})

	if e.Name() != "stub" {
		t.Errorf("Name() = %q", e.Name())
	}
	if e.Scope() != cache.ScopeDisabled {
		t.Errorf("Scope() = %q, want disabled", e.Scope())
	}
	if !e.LastSearch().IsZero() {
		t.Error("LastSearch() should be zero before any search")
	}
	got := e.Params()
	got["api_key"] = search.String("changed")
	if e.Params().String("api_key") != "k" {
		t.Error("Params() exposes internal state")
	}
	if !strings.Contains(e.String(), "throttle=1s") {
		t.Errorf("String() = %q", e.String())
	}
}

func hasKeyWithPrefix(keys []string, prefix string) bool {
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}
