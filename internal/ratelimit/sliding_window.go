// Package ratelimit provides the in-process sliding-window limiter that gates
// every outbound order-related exchange call.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scalpbot/internal/domain"
)

// SlidingWindow admits at most limit calls per rolling window. Saturated
// callers block until the oldest call in the window expires. One instance is
// shared by the order tracker and every position monitor.
type SlidingWindow struct {
	limit  int
	window time.Duration

	mu    sync.Mutex
	calls []time.Time // admission times, oldest first

	// now is swappable for tests.
	now func() time.Time
}

// NewSlidingWindow creates a limiter admitting limit calls per window.
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:  limit,
		window: window,
		calls:  make([]time.Time, 0, limit),
		now:    time.Now,
	}
}

// Acquire blocks until a slot is available or ctx is done. A ctx expiry is
// returned wrapped in domain.ErrRateLimited so callers can classify it as
// transient.
func (sw *SlidingWindow) Acquire(ctx context.Context) error {
	for {
		wait, ok := sw.tryAcquire()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", domain.ErrRateLimited, ctx.Err())
		case <-timer.C:
		}
	}
}

// tryAcquire records an admission if the window has capacity. Otherwise it
// returns how long until the oldest recorded call leaves the window.
func (sw *SlidingWindow) tryAcquire() (wait time.Duration, ok bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	cutoff := now.Add(-sw.window)

	// Prune calls that have left the window.
	idx := 0
	for idx < len(sw.calls) && !sw.calls[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		sw.calls = append(sw.calls[:0], sw.calls[idx:]...)
	}

	if len(sw.calls) < sw.limit {
		sw.calls = append(sw.calls, now)
		return 0, true
	}

	wait = sw.calls[0].Sub(cutoff)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}

// InFlight returns the number of admissions currently inside the window.
func (sw *SlidingWindow) InFlight() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	cutoff := sw.now().Add(-sw.window)
	n := 0
	for _, t := range sw.calls {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

// Compile-time interface check.
var _ domain.RateLimiter = (*SlidingWindow)(nil)
