package quota

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Registry multiplexes buckets by a composite key of quota domain, rate and
// capacity. Two callers asking for the same (domain, rate, capacity) share a
// bucket; anything else gets its own.
type Registry struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
}

// NewRegistry creates an empty bucket registry.
func NewRegistry() *Registry {
	return &Registry{buckets: make(map[string]*Bucket)}
}

// Bucket returns the bucket for the given quota domain, creating it on first
// use.
func (r *Registry) Bucket(domain string, rate float64, capacity int) *Bucket {
	key := fmt.Sprintf("%s|%g|%d", domain, rate, capacity)

	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buckets[key]
	if !ok {
		b = NewBucket(rate, capacity)
		r.buckets[key] = b
	}
	return b
}

// Acquire is shorthand for Bucket(...).Acquire(ctx).
func (r *Registry) Acquire(ctx context.Context, domain string, rate float64, capacity int) error {
	return r.Bucket(domain, rate, capacity).Acquire(ctx)
}

// Snapshot reports available tokens per registered key.
func (r *Registry) Snapshot() map[string]float64 {
	r.mu.Lock()
	keys := make(map[string]*Bucket, len(r.buckets))
	for k, b := range r.buckets {
		keys[k] = b
	}
	r.mu.Unlock()

	out := make(map[string]float64, len(keys))
	for k, b := range keys {
		out[k] = b.AvailableTokens()
	}
	return out
}

// Len returns the number of registered buckets.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}

// StartSweep spawns a goroutine that drops buckets untouched for longer than
// maxIdle. Returns a cancel function that stops the sweeper.
func (r *Registry) StartSweep(interval, maxIdle time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweep(maxIdle)
			}
		}
	}()
	return cancel
}

func (r *Registry) sweep(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, b := range r.buckets {
		if b.idleSince().Before(cutoff) {
			delete(r.buckets, k)
		}
	}
}
