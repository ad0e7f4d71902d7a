// Package memcache implements the response memoization store: an in-memory
// cache with TTL expiry and exact LRU eviction at capacity. Ristretto backs
// the artifact byte cache instead; its admission policy is probabilistic,
// which is fine for opportunistic byte caching but not for the response
// store, where eviction of exactly the least-recently-accessed entry is part
// of the contract.
package memcache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/lumigen/lumigen/internal/port/cache"
)

type entry struct {
	key         string
	value       any
	createdAt   time.Time
	expiresAt   time.Time
	accessCount int
	lastAccess  time.Time
	elem        *list.Element
}

// Store is a TTL+LRU cache. The recency list front holds the most recently
// accessed entry; eviction pops from the back.
type Store struct {
	mu         sync.Mutex
	entries    map[string]*entry
	recency    *list.List // of string keys
	maxEntries int
	defaultTTL time.Duration
	now        func() time.Time // injectable for tests

	hits   uint64
	misses uint64
}

// Option tweaks Store construction.
type Option func(*Store)

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store holding at most maxEntries values with the given
// default TTL.
func New(maxEntries int, defaultTTL time.Duration, opts ...Option) *Store {
	if maxEntries < 1 {
		maxEntries = 1
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	s := &Store{
		entries:    make(map[string]*entry),
		recency:    list.New(),
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value for key when present and unexpired. Expired entries
// are removed lazily.
func (s *Store) Get(_ context.Context, key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		s.misses++
		return nil, false
	}
	s.touch(e)
	s.hits++
	return e.value, true
}

// Set stores value under key. An existing entry is refreshed in place; a new
// key at capacity evicts the least-recently-accessed entry first.
func (s *Store) Set(_ context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok {
		e.value = value
		e.expiresAt = now.Add(ttl)
		s.touch(e)
		return
	}

	if len(s.entries) >= s.maxEntries {
		s.evictOldest()
	}

	e := &entry{
		key:        key,
		value:      value,
		createdAt:  now,
		expiresAt:  now.Add(ttl),
		lastAccess: now,
	}
	e.elem = s.recency.PushFront(key)
	s.entries[key] = e
}

// Has reports whether key is present and unexpired, without counting as an
// access for LRU purposes.
func (s *Store) Has(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lookup(key)
	return ok
}

// Delete removes key, reporting whether it was present.
func (s *Store) Delete(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	s.remove(e)
	return true
}

// Clear drops every entry.
func (s *Store) Clear(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry)
	s.recency.Init()
}

// Len returns the number of unexpired entries.
func (s *Store) Len(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, e := range s.entries {
		if !now.After(e.expiresAt) {
			n++
		}
	}
	return n
}

// GetOrSet returns the cached value when present, else invokes factory and
// stores its result under the default or given TTL. Not cross-call atomic:
// two concurrent misses for the same key may both invoke factory.
func (s *Store) GetOrSet(ctx context.Context, key string, ttl time.Duration, factory cache.Factory) (any, error) {
	if v, ok := s.Get(ctx, key); ok {
		return v, nil
	}
	v, err := factory(ctx)
	if err != nil {
		return nil, err
	}
	s.Set(ctx, key, v, ttl)
	return v, nil
}

// Stats reports hit and miss counts since construction.
func (s *Store) Stats() (hits, misses uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.misses
}

// StartSweep spawns a goroutine that purges expired entries every interval.
// Returns a cancel function that stops it.
func (s *Store) StartSweep(interval time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
	return cancel
}

func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, e := range s.entries {
		if now.After(e.expiresAt) {
			s.remove(e)
		}
	}
}

// lookup must be called with s.mu held. Expired entries are dropped.
func (s *Store) lookup(key string) (*entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if s.now().After(e.expiresAt) {
		s.remove(e)
		return nil, false
	}
	return e, true
}

// touch must be called with s.mu held.
func (s *Store) touch(e *entry) {
	e.accessCount++
	e.lastAccess = s.now()
	s.recency.MoveToFront(e.elem)
}

// remove must be called with s.mu held.
func (s *Store) remove(e *entry) {
	s.recency.Remove(e.elem)
	delete(s.entries, e.key)
}

// evictOldest must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.recency.Back()
	if back == nil {
		return
	}
	key := back.Value.(string)
	if e, ok := s.entries[key]; ok {
		s.remove(e)
	}
}
