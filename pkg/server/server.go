// Package server exposes engines over HTTP: a JSON search proxy with
// health, readiness and Prometheus endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/search-client/pkg/engine"
	"github.com/Sternrassler/search-client/pkg/metrics"
	"github.com/Sternrassler/search-client/pkg/registry"
	"github.com/Sternrassler/search-client/pkg/retry"
	"github.com/Sternrassler/search-client/pkg/search"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// OptionsFunc returns the engine options for a registry name.
type OptionsFunc func(name string) (engine.Options, error)

// Config holds the server configuration.
type Config struct {
	// Registry resolves engine names (required).
	Registry *registry.Registry

	// Options configures each engine on first use (default: engine defaults).
	Options OptionsFunc

	// Redis is pinged by /ready when set.
	Redis redis.UniversalClient

	// Retry wraps every search; zero values take retry defaults.
	Retry retry.Config

	// Timeout bounds one search request (default: 30s).
	Timeout time.Duration
}

// Server is the search proxy. Engines are created on first use and kept
// until Close.
type Server struct {
	registry *registry.Registry
	options  OptionsFunc
	redis    redis.UniversalClient
	retry    retry.Config
	timeout  time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	engines map[string]*engine.Engine
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Options == nil {
		cfg.Options = func(string) (engine.Options, error) { return engine.DefaultOptions(), nil }
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Server{
		registry: cfg.Registry,
		options:  cfg.Options,
		redis:    cfg.Redis,
		retry:    cfg.Retry,
		timeout:  cfg.Timeout,
		logger:   log.With().Str("component", "server").Logger(),
		engines:  make(map[string]*engine.Engine),
	}, nil
}

// Router builds the gin router.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(s.logger))

	r.GET("/health", s.handleHealth)
	r.GET("/ready", s.handleReady)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/engines", s.handleEngines)
	r.GET("/search/:engine", s.handleSearch)
	return r
}

// Engine returns the engine for name, creating it on first use. Names are
// case-insensitive.
func (s *Server) Engine(ctx context.Context, name string) (*engine.Engine, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.engines[name]; ok {
		return e, nil
	}
	if !s.registry.Contains(name) {
		return nil, search.NewLoadError("Registry", "Engine '%s' not found", name)
	}
	opts, err := s.options(name)
	if err != nil {
		return nil, err
	}
	e, err := s.registry.Create(ctx, name, opts)
	if err != nil {
		return nil, err
	}
	s.engines[name] = e
	return e, nil
}

// Close closes every engine created by the server.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for name, e := range s.engines {
		if err := e.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		delete(s.engines, name)
	}
	return errors.Join(errs...)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *Server) handleReady(c *gin.Context) {
	if s.redis != nil {
		if err := s.redis.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleEngines(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"engines": s.registry.Names()})
}

// reservedParams are query string keys mapped onto Query fields; every
// other key is passed to the engine as a string param.
var reservedParams = map[string]bool{"q": true, "top": true, "skip": true, "lang": true, "type": true}

func (s *Server) handleSearch(c *gin.Context) {
	name := c.Param("engine")

	q, err := queryFromRequest(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()

	e, err := s.Engine(ctx, name)
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp, err := retry.Search(ctx, e, q, s.retry)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"engine":     e.Name(),
		"request_id": RequestIDFrom(c),
		"response":   resp,
	})
}

func queryFromRequest(c *gin.Context) (*search.Query, error) {
	opts := []search.QueryOption{
		search.WithLang(c.Query("lang")),
		search.WithResultType(c.Query("type")),
	}
	for key, target := range map[string]func(int) search.QueryOption{"top": search.WithTop, "skip": search.WithSkip} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, search.NewParamError("Server", "%s must be an integer (got %q)", key, raw)
		}
		opts = append(opts, target(n))
	}
	for key, values := range c.Request.URL.Query() {
		if reservedParams[key] || len(values) == 0 {
			continue
		}
		opts = append(opts, search.WithParam(key, search.String(values[0])))
	}

	q, err := search.NewQuery(c.Query("q"), opts...)
	if err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

// statusFor maps search errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, search.ErrParam):
		return http.StatusBadRequest
	case errors.Is(err, search.ErrLoad):
		return http.StatusNotFound
	case errors.Is(err, search.ErrRateLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, search.ErrConnection):
		return http.StatusBadGateway
	case errors.Is(err, search.ErrAuth),
		errors.Is(err, search.ErrCacheConnection),
		errors.Is(err, engine.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{
		"error":      err.Error(),
		"request_id": RequestIDFrom(c),
	}
	if class := search.ClassOf(err); class != "" {
		body["class"] = class
	}
	if status >= 500 {
		s.logger.Error().Err(err).Str("request_id", RequestIDFrom(c)).Int("status", status).Msg("Search request failed")
	}
	c.JSON(status, body)
}
