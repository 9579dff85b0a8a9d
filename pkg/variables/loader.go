package variables

import (
	"context"
	"os"
	"sync"

	"github.com/Nikolaikolya/deploy-commander/pkg/errors"
	"github.com/rs/zerolog"
)

// Loader reads and merges variables from files and registered sources.
type Loader struct {
	logger zerolog.Logger
	lookup func(string) (string, bool)

	mu      sync.Mutex
	clients map[string]Source
}

// NewLoader creates a loader that logs through logger and interpolates
// ${NAME} references from the process environment.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger:  logger.With().Str("component", "variables").Logger(),
		lookup:  os.LookupEnv,
		clients: make(map[string]Source),
	}
}

// Load reads every path in ascending priority and merges the results. Missing
// files are skipped with a notice and unusable sources with a warning; Load
// never fails. ${NAME} references in the merged values are expanded from the
// environment afterwards.
func (l *Loader) Load(ctx context.Context, paths ...string) Map {
	maps := make([]Map, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		vars, err := l.LoadSource(ctx, p)
		if err != nil {
			if errors.Is(err, errors.ErrCodeNotFound) {
				l.logger.Debug().Str("path", p).Msg("Variables file not found, skipping")
			} else {
				l.logger.Warn().Err(err).Str("path", p).Msg("Skipping variables source")
			}
			continue
		}
		l.logger.Info().Str("path", p).Int("count", len(vars)).Strs("keys", vars.Keys()).Msg("Loaded variables")
		maps = append(maps, vars)
	}

	merged := Merge(maps...)
	Interpolate(merged, l.lookup, l.logger)
	return merged
}

// LoadSource reads a single file or scheme-addressed source without
// interpolation. A missing file yields a NOT_FOUND error; unreadable or
// malformed content yields a VARIABLE_SOURCE_ERROR.
func (l *Loader) LoadSource(ctx context.Context, path string) (Map, error) {
	if scheme, ref, ok := splitSourceRef(path); ok {
		src, err := l.source(scheme)
		if err != nil {
			return nil, errors.VariableSourceError(path, err)
		}
		vars, err := src.Load(ctx, ref)
		if err != nil {
			return nil, errors.VariableSourceError(path, err)
		}
		return vars, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundError("variables file", path)
		}
		return nil, errors.VariableSourceError(path, err)
	}

	format := DetectFormat(path)
	if format == FormatUnknown {
		l.logger.Debug().Str("path", path).Msg("Unknown variables file extension, trying JSON then YAML")
	}

	vars, err := Parse(data, format, path)
	if err != nil {
		return nil, errors.VariableSourceError(path, errors.ParseError(path, err))
	}
	return vars, nil
}

func (l *Loader) source(scheme string) (Source, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if src, ok := l.clients[scheme]; ok {
		return src, nil
	}

	factory, err := lookupSource(scheme)
	if err != nil {
		return nil, err
	}
	src, err := factory()
	if err != nil {
		return nil, err
	}
	l.clients[scheme] = src
	return src, nil
}
