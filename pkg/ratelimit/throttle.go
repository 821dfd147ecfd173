package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/search-client/pkg/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for throttling.
var (
	throttleWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_throttle_waits_total",
		Help: "Total number of searches delayed by the engine throttle",
	}, []string{"engine"})

	throttleWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "search_throttle_wait_seconds",
		Help:    "Time spent waiting for the engine throttle",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"engine"})
)

// Throttle enforces a minimum interval between backend invocations of one
// engine. Callers invoke Wait before and Done after each invocation.
//
// Wait reserves the next slot under a mutex before sleeping, so concurrent
// callers are spaced out instead of all waking at the same instant.
type Throttle struct {
	engine   string
	interval time.Duration
	clock    clock.Clock
	logger   zerolog.Logger

	mu        sync.Mutex
	last      time.Time
	waits     int64
	totalWait time.Duration
}

// NewThrottle creates a throttle for the named engine. An interval <= 0
// disables throttling.
func NewThrottle(engine string, interval time.Duration, clk clock.Clock, logger zerolog.Logger) *Throttle {
	if interval < 0 {
		interval = 0
	}
	return &Throttle{
		engine:   engine,
		interval: interval,
		clock:    clock.Or(clk),
		logger:   logger,
	}
}

// Interval returns the configured minimum spacing.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}

// Enabled reports whether the throttle enforces an interval.
func (t *Throttle) Enabled() bool {
	return t != nil && t.interval > 0
}

// Wait blocks until the interval since the previous search has elapsed.
// The first search never waits. It returns early with ctx.Err() if the
// context ends while waiting, releasing the slot it reserved.
func (t *Throttle) Wait(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}

	t.mu.Lock()
	now := t.clock.Now()
	prev := t.last
	state := ThrottleState{Interval: t.interval, LastSearch: prev}
	wait := state.Remaining(now)
	slot := now.Add(wait)
	t.last = slot
	if wait > 0 {
		t.waits++
		t.totalWait += wait
	}
	t.mu.Unlock()

	if wait == 0 {
		return nil
	}

	throttleWaitsTotal.WithLabelValues(t.engine).Inc()
	throttleWaitSeconds.WithLabelValues(t.engine).Observe(wait.Seconds())
	t.logger.Debug().
		Str("engine", t.engine).
		Dur("wait", wait).
		Msg("Throttling search")

	if err := t.clock.Sleep(ctx, wait); err != nil {
		t.release(slot, prev)
		return err
	}
	return nil
}

// release gives back an unused slot unless a later caller reserved after it.
func (t *Throttle) release(slot, prev time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last.Equal(slot) {
		t.last = prev
	}
}

// Done records the end of a backend invocation as the last search time.
func (t *Throttle) Done() {
	if !t.Enabled() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if now := t.clock.Now(); now.After(t.last) {
		t.last = now
	}
}

// State returns a snapshot of the throttle.
func (t *Throttle) State() ThrottleState {
	if t == nil {
		return ThrottleState{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return ThrottleState{
		Interval:   t.interval,
		LastSearch: t.last,
		Waits:      t.waits,
		TotalWait:  t.totalWait,
	}
}
