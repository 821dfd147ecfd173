package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/search-client/pkg/config"
	"github.com/Sternrassler/search-client/pkg/engine"
	"github.com/Sternrassler/search-client/pkg/logging"
	"github.com/Sternrassler/search-client/pkg/registry"
	"github.com/Sternrassler/search-client/pkg/retry"
	"github.com/Sternrassler/search-client/pkg/server"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", getEnv("SEARCH_CONFIG", ""), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg *config.Config) error {
	var redisClient *redis.Client
	if cfg.CacheEnabled() {
		redisClient = cfg.NewRedisClient()
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	}

	srv, err := newServer(cfg, redisClient)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Starting search proxy")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down search proxy")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	shutdownErr := httpServer.Shutdown(shutdownCtx)
	return errors.Join(shutdownErr, srv.Close(shutdownCtx))
}

// newServer wires the builtin registry and per-engine options from cfg.
// redisClient may be nil when no engine caches.
func newServer(cfg *config.Config, redisClient *redis.Client) (*server.Server, error) {
	var client redis.UniversalClient
	if redisClient != nil {
		client = redisClient
	}
	return server.New(server.Config{
		Registry: registry.Builtin(),
		Options: func(name string) (engine.Options, error) {
			opts, err := cfg.EngineOptions(name, client)
			if err != nil {
				return engine.Options{}, err
			}
			logger := log.With().Str("component", "engine").Str("engine", name).Logger()
			opts.Logger = &logger
			return opts, nil
		},
		Redis:   client,
		Retry:   retry.DefaultConfig(),
		Timeout: cfg.Server.Timeout,
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
