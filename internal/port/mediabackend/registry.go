package mediabackend

import (
	"fmt"
	"sync"
)

// Config carries per-vendor settings handed to a factory.
type Config struct {
	Name        string
	BaseURL     string
	APIKey      string
	TimeoutSecs int
	Extra       map[string]string
}

// Factory is a constructor function that creates a new Backend instance.
type Factory func(cfg Config) (Backend, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a backend factory available by kind. It is typically called
// from an init() function in the adapter package.
func Register(kind string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("mediabackend: duplicate registration for %q", kind))
	}
	factories[kind] = factory
}

// New creates a Backend of the given kind using the registered factory.
func New(kind string, cfg Config) (Backend, error) {
	mu.RLock()
	factory, ok := factories[kind]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("mediabackend: unknown backend kind %q", kind)
	}
	return factory(cfg)
}

// Available returns the kinds of all registered backends.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()

	kinds := make([]string, 0, len(factories))
	for kind := range factories {
		kinds = append(kinds, kind)
	}
	return kinds
}
