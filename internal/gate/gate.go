// Package gate bounds concurrent vendor operations. Gate is a counting
// semaphore; Throttle spaces operation starts by a minimum wall-clock
// interval for vendors with per-second rather than per-connection limits.
package gate

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate limits the number of simultaneously in-flight operations using a
// weighted semaphore. Waiters queue; nothing is silently dropped.
type Gate struct {
	sem   *semaphore.Weighted
	limit int64
	inUse chan struct{} // buffered to limit, tracks held permits for InFlight
}

// New creates a Gate that admits at most limit concurrent operations.
func New(limit int) *Gate {
	if limit < 1 {
		limit = 1
	}
	return &Gate{
		sem:   semaphore.NewWeighted(int64(limit)),
		limit: int64(limit),
		inUse: make(chan struct{}, limit),
	}
}

// Run acquires a permit, runs fn, and releases the permit. Blocks while all
// permits are busy; returns ctx.Err() if the context is cancelled while
// waiting. A nil gate runs fn directly.
func (g *Gate) Run(ctx context.Context, fn func() error) error {
	if g == nil || g.sem == nil {
		return fn()
	}
	if err := g.Acquire(ctx); err != nil {
		return err
	}
	defer g.Release()
	return fn()
}

// Acquire blocks until a permit is available or ctx is cancelled.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.inUse <- struct{}{}
	return nil
}

// Release returns a permit acquired with Acquire.
func (g *Gate) Release() {
	<-g.inUse
	g.sem.Release(1)
}

// InFlight reports how many permits are currently held.
func (g *Gate) InFlight() int {
	if g == nil {
		return 0
	}
	return len(g.inUse)
}

// Limit reports the configured permit count.
func (g *Gate) Limit() int {
	if g == nil {
		return 0
	}
	return int(g.limit)
}
