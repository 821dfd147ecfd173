package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sternrassler/search-client/pkg/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupProxy(t *testing.T, cfg *config.Config, redisClient *redis.Client) http.Handler {
	t.Helper()
	srv, err := newServer(cfg, redisClient)
	if err != nil {
		t.Fatalf("newServer() error = %v", err)
	}
	t.Cleanup(func() { _ = srv.Close(context.Background()) })
	return srv.Router()
}

func TestHealthEndpoint(t *testing.T) {
	h := setupProxy(t, config.Default(), nil)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestReadyEndpoint_NoCache(t *testing.T) {
	h := setupProxy(t, config.Default(), nil)

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 without a cache, got %d", w.Code)
	}
}

func TestSearchEndpoint_SharedCache(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	cfg, err := config.Parse([]byte(`
defaults:
  cache: shared
engines:
  fake:
    params:
      total: 20
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	h := setupProxy(t, cfg, redisClient)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/search/fake?q=golang&top=5", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d, body %s", i, w.Code, w.Body.String())
		}
		var body struct {
			Response struct {
				ResultTotal int `json:"result_total"`
			} `json:"response"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Response.ResultTotal != 5 {
			t.Errorf("request %d: result_total = %d, want 5", i, body.Response.ResultTotal)
		}
	}

	if len(mr.Keys()) == 0 {
		t.Error("expected the response to be cached in Redis")
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}
