// Package quota provides token-bucket admission control for outbound vendor
// calls, multiplexed over logical quota keys so that distinct credentials or
// vendors never share a bucket unless configured to.
package quota

import (
	"context"
	"sync"
	"time"
)

// Bucket is a token bucket with lazy refill: tokens accrue continuously as
// elapsed seconds times rate, capped at capacity, computed on each access.
// No background timer is involved.
type Bucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens per second
	last     time.Time
	lastUsed time.Time
	now      func() time.Time // injectable for tests
	sleep    func(context.Context, time.Duration) error
}

// NewBucket creates a bucket that starts full.
func NewBucket(rate float64, capacity int) *Bucket {
	if rate <= 0 {
		rate = 1
	}
	if capacity < 1 {
		capacity = 1
	}
	b := &Bucket{
		tokens:   float64(capacity),
		capacity: float64(capacity),
		rate:     rate,
		now:      time.Now,
		sleep:    sleepCtx,
	}
	b.last = b.now()
	b.lastUsed = b.last
	return b
}

// refill must be called with b.mu held.
func (b *Bucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.rate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
	}
	b.last = now
}

// Acquire consumes one token, sleeping as long as needed for one to accrue.
// The wait is cancellable through ctx.
func (b *Bucket) Acquire(ctx context.Context) error {
	for {
		b.mu.Lock()
		b.refill()
		b.lastUsed = b.last
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
		b.mu.Unlock()

		if err := b.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// TryAcquire consumes one token if available without waiting.
func (b *Bucket) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	b.lastUsed = b.last
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// AvailableTokens refills and reports the current token count. Never exceeds
// capacity.
func (b *Bucket) AvailableTokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}

// idleSince reports the last time a caller touched the bucket.
func (b *Bucket) idleSince() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastUsed
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
