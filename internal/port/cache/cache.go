// Package cache defines the port interfaces for caching.
package cache

import (
	"context"
	"time"
)

// Cache is the port interface for byte-valued key-value caching (artifact
// payloads).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Factory produces a value on a cache miss.
type Factory func(ctx context.Context) (any, error)

// Store is the port interface for response memoization with TTL expiry and
// bounded size.
type Store interface {
	Get(ctx context.Context, key string) (any, bool)
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	Has(ctx context.Context, key string) bool
	Delete(ctx context.Context, key string) bool
	Clear(ctx context.Context)
	Len(ctx context.Context) int

	// GetOrSet returns the cached value when present and unexpired, else
	// invokes factory and stores its result. Concurrent misses for the same
	// key may each invoke factory; the duplicate remote call is an accepted
	// cost of the at-least-once design.
	GetOrSet(ctx context.Context, key string, ttl time.Duration, factory Factory) (any, error)
}
