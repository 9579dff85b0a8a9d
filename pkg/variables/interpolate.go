package variables

import (
	"regexp"

	"github.com/rs/zerolog"
)

var envRefRegex = regexp.MustCompile(`\$\{([^{}]+)\}`)

// Interpolate replaces ${NAME} references inside every value of vars using
// lookup. References that lookup cannot resolve are left as-is.
func Interpolate(vars Map, lookup func(string) (string, bool), logger zerolog.Logger) {
	for k, v := range vars {
		expanded := InterpolateValue(v, lookup)
		if expanded != v {
			logger.Debug().Str("key", k).Msg("Expanded environment references in variable")
			vars[k] = expanded
		}
	}
}

// InterpolateValue expands ${NAME} references in a single value.
func InterpolateValue(value string, lookup func(string) (string, bool)) string {
	return envRefRegex.ReplaceAllStringFunc(value, func(match string) string {
		name := match[2 : len(match)-1]
		if v, ok := lookup(name); ok {
			return v
		}
		return match
	})
}
