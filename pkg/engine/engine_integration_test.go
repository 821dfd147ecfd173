//go:build integration

package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/search-client/internal/testutil"
	"github.com/Sternrassler/search-client/pkg/adapters/wikipedia"
	"github.com/Sternrassler/search-client/pkg/cache"
	"github.com/Sternrassler/search-client/pkg/engine"
	"github.com/Sternrassler/search-client/pkg/search"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() {
		client.Close()
		container.Terminate(ctx)
	})
	return client
}

const openSearchBody = `["golang",["Go (programming language)","Gopher"],["",""],["https://en.wikipedia.org/wiki/Go_(programming_language)","https://en.wikipedia.org/wiki/Gopher"]]`

// TestEngine_WikipediaSharedCache runs a real adapter against a mock
// provider with the cache on a real Redis.
func TestEngine_WikipediaSharedCache(t *testing.T) {
	ctx := context.Background()
	client := setupRedis(t)

	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetResponse("/w/api.php", testutil.NewJSONResponse(openSearchBody))

	adapter, err := wikipedia.New(search.Params{"endpoint": search.String(mock.Endpoint("/w/api.php"))})
	if err != nil {
		t.Fatalf("wikipedia.New() error = %v", err)
	}

	opts := engine.DefaultOptions()
	opts.Cache = cache.ScopeShared
	opts.Redis = client
	opts.CacheTTL = time.Minute

	e, err := engine.New(ctx, "wikipedia", adapter, opts)
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	defer e.Close(ctx)

	q, _ := search.NewQuery("golang", search.WithTop(2))
	first, err := e.Search(ctx, q)
	if err != nil {
		t.Fatalf("first Search() error = %v", err)
	}
	second, err := e.Search(ctx, q)
	if err != nil {
		t.Fatalf("second Search() error = %v", err)
	}

	if mock.RequestCount() != 1 {
		t.Errorf("provider requests = %d, want 1", mock.RequestCount())
	}
	if !first.Equal(second) {
		t.Error("cached response differs from the original")
	}
	if e.NumRequestsCached() != 1 {
		t.Errorf("NumRequestsCached() = %d, want 1", e.NumRequestsCached())
	}

	ttl, err := client.TTL(ctx, e.Cache().Key(q)).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("entry TTL = %v, want (0, 1m]", ttl)
	}
}

// TestEngine_PrivateCacheIsolation checks that two private engines on the
// same Redis never see each other's entries and clean up on Close.
func TestEngine_PrivateCacheIsolation(t *testing.T) {
	ctx := context.Background()
	client := setupRedis(t)

	newEngine := func() *engine.Engine {
		opts := engine.DefaultOptions()
		opts.Cache = cache.ScopePrivate
		opts.Redis = client
		e, err := engine.New(ctx, "stub", &testutil.StubAdapter{}, opts)
		if err != nil {
			t.Fatalf("engine.New() error = %v", err)
		}
		return e
	}
	a, b := newEngine(), newEngine()

	q, _ := search.NewQuery("isolated")
	if _, err := a.Search(ctx, q); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if ok, _ := b.Cache().Contains(ctx, q); ok {
		t.Error("private entry visible to another engine")
	}

	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := b.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	keys, err := client.Keys(ctx, cache.KeyPrefix+":*").Result()
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("keys left after Close: %v", keys)
	}
}
