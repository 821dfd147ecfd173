// Package ratelimit implements the per-engine request throttle: a minimum
// wall-clock interval enforced between successive backend invocations.
package ratelimit

import (
	"time"
)

// ThrottleState is a snapshot of a Throttle for observability.
type ThrottleState struct {
	// Interval is the minimum spacing between backend invocations.
	// Zero means the throttle is disabled.
	Interval time.Duration `json:"interval"`

	// LastSearch is the completion time of the most recent invocation, or
	// the latest reserved slot if a caller is currently waiting.
	LastSearch time.Time `json:"last_search"`

	// Waits counts the calls that had to block.
	Waits int64 `json:"waits"`

	// TotalWait sums the time spent blocking.
	TotalWait time.Duration `json:"total_wait"`
}

// Enabled reports whether the throttle enforces an interval.
func (s ThrottleState) Enabled() bool {
	return s.Interval > 0
}

// NextAllowed returns the earliest time the next invocation may start.
// The zero time means immediately.
func (s ThrottleState) NextAllowed() time.Time {
	if !s.Enabled() || s.LastSearch.IsZero() {
		return time.Time{}
	}
	return s.LastSearch.Add(s.Interval)
}

// Remaining returns how long a caller arriving at now would block.
// Returns 0 if no wait is needed.
func (s ThrottleState) Remaining(now time.Time) time.Duration {
	next := s.NextAllowed()
	if next.IsZero() {
		return 0
	}
	d := next.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
