package variables

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Source loads variables from a non-file location addressed by URL scheme,
// for example awssm://prod/api or vault://secret/api.
type Source interface {
	Load(ctx context.Context, ref string) (Map, error)
}

// SourceFactory creates a Source. Factories are invoked lazily, the first
// time a reference with their scheme is loaded.
type SourceFactory func() (Source, error)

var (
	sourcesMu sync.RWMutex
	sources   = map[string]SourceFactory{}
)

// RegisterSource adds a source factory under the given scheme.
// Typically called from a source package's init() function.
func RegisterSource(scheme string, factory SourceFactory) {
	sourcesMu.Lock()
	defer sourcesMu.Unlock()
	sources[scheme] = factory
}

func lookupSource(scheme string) (SourceFactory, error) {
	sourcesMu.RLock()
	defer sourcesMu.RUnlock()

	factory, ok := sources[scheme]
	if !ok {
		return nil, fmt.Errorf("unsupported variables source %q (registered: %v)", scheme, registeredSchemes())
	}
	return factory, nil
}

func registeredSchemes() []string {
	schemes := make([]string, 0, len(sources))
	for s := range sources {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// splitSourceRef splits "scheme://ref". ok is false for plain file paths.
func splitSourceRef(path string) (scheme, ref string, ok bool) {
	scheme, ref, ok = strings.Cut(path, "://")
	if !ok || scheme == "" || strings.ContainsAny(scheme, `/\.`) {
		return "", "", false
	}
	return scheme, ref, true
}
