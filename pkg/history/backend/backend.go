// Package backend defines pluggable blob storage for the deployment history
// document. Implementations register themselves from init().
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// ErrNotFound is returned by Read when the object does not exist.
var ErrNotFound = errors.New("object not found")

// Backend stores opaque objects addressed by a slash-separated path.
type Backend interface {
	Type() string
	Read(ctx context.Context, path string) (io.ReadCloser, error)
	Write(ctx context.Context, path string, data io.Reader) error
	// Delete is idempotent.
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// Factory creates a backend from its string configuration.
type Factory func(cfg map[string]string) (Backend, error)

// Config selects and configures a backend.
type Config struct {
	Type   string
	Config map[string]string
}

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register adds a backend factory under name.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// Create instantiates the backend named by cfg.Type.
func Create(cfg Config) (Backend, error) {
	mu.RLock()
	factory, ok := factories[cfg.Type]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown history backend %q (available: %v)", cfg.Type, Types())
	}

	settings := cfg.Config
	if settings == nil {
		settings = map[string]string{}
	}
	return factory(settings)
}

// Types lists the registered backend names.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
