package gate

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces a minimum wall-clock interval between operation starts,
// independent of how many run concurrently.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
	now      func() time.Time // injectable for tests
}

// NewThrottle creates a throttle with the given minimum start interval.
// A non-positive interval yields a throttle that never waits.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval, now: time.Now}
}

// Wait blocks until the caller may start, reserving the next start slot.
// Concurrent callers are serialized in arrival order at the reservation
// point. Returns ctx.Err() if cancelled while waiting.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || t.interval <= 0 {
		return nil
	}

	t.mu.Lock()
	now := t.now()
	start := t.next
	if start.Before(now) {
		start = now
	}
	t.next = start.Add(t.interval)
	t.mu.Unlock()

	wait := start.Sub(now)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		// Return the abandoned slot so later callers are not delayed by it.
		t.mu.Lock()
		t.next = t.next.Add(-t.interval)
		t.mu.Unlock()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
