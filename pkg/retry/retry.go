// Package retry re-issues searches that failed with transient backend
// errors, using exponential backoff with jitter. It wraps a Searcher and is
// meant for callers of an Engine; the Engine itself never retries.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/Sternrassler/search-client/pkg/clock"
	"github.com/Sternrassler/search-client/pkg/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "search_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// ErrExhausted is returned when every attempt failed. The last error stays
// reachable through errors.Is/As.
var ErrExhausted = errors.New("retry attempts exhausted")

// Config holds the configuration for retry logic.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int

	// InitialBackoff is the first backoff for connection errors.
	InitialBackoff time.Duration

	// RateLimitBackoff is the first backoff after a 429.
	RateLimitBackoff time.Duration

	// MaxBackoff caps every backoff.
	MaxBackoff time.Duration

	// BackoffMultiplier grows the backoff after each attempt.
	BackoffMultiplier float64

	// Clock drives the backoff sleeps (default: real clock).
	Clock clock.Clock
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		RateLimitBackoff:  5 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.RateLimitBackoff <= 0 {
		c.RateLimitBackoff = def.RateLimitBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = def.BackoffMultiplier
	}
	c.Clock = clock.Or(c.Clock)
	return c
}

// initialBackoff returns the first backoff for errors of class.
func (c Config) initialBackoff(class search.ErrorClass) time.Duration {
	if class == search.ClassRateLimit {
		return min(c.RateLimitBackoff, c.MaxBackoff)
	}
	return min(c.InitialBackoff, c.MaxBackoff)
}

// Retryable reports whether err is transient: a network failure, a 5xx or
// a 429. Parameter, auth, load and cache errors and other 4xx statuses are
// never retried.
func Retryable(err error) bool {
	var se *search.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Class {
	case search.ClassRateLimit:
		return true
	case search.ClassConnection:
		return se.StatusCode == 0 ||
			se.StatusCode >= http.StatusInternalServerError ||
			se.StatusCode == http.StatusTooManyRequests
	default:
		return false
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts are used up.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()

	var lastErr error
	var backoff time.Duration

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info().
					Int("attempt", attempt).
					Msg("Search succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if !Retryable(err) {
			return err
		}
		class := search.ClassOf(err)

		if attempt >= cfg.MaxAttempts {
			break
		}

		if backoff == 0 {
			backoff = cfg.initialBackoff(class)
		}

		retriesTotal.WithLabelValues(string(class)).Inc()

		// ±20% jitter
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		retryBackoffSeconds.WithLabelValues(string(class)).Observe(jitter.Seconds())

		log.Warn().
			Err(err).
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying search after backoff")

		if err := cfg.Clock.Sleep(ctx, jitter); err != nil {
			return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, err)
		}

		backoff = min(time.Duration(float64(backoff)*cfg.BackoffMultiplier), cfg.MaxBackoff)
	}

	class := search.ClassOf(lastErr)
	retryExhaustedTotal.WithLabelValues(string(class)).Inc()
	log.Warn().
		Str("error_class", string(class)).
		Int("max_attempts", cfg.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, cfg.MaxAttempts, lastErr)
}

// Search runs s.Search(ctx, q) under Do.
func Search(ctx context.Context, s search.Searcher, q *search.Query, cfg Config) (*search.Response, error) {
	var resp *search.Response
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var err error
		resp, err = s.Search(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
