package variables

import (
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

var (
	fileRefRegex        = regexp.MustCompile(`\{#([^{}\s]+)\}`)
	envPlaceholderRegex = regexp.MustCompile(`\{\$([^{}\s]+)\}`)
	interactiveRegex    = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_.-]*)\}`)
	// placeholderRegex matches {#KEY} (group 1) or {name} (group 2).
	placeholderRegex = regexp.MustCompile(`\{#([^{}\s]+)\}|\{([A-Za-z_][A-Za-z0-9_.-]*)\}`)
)

// Substitutor rewrites command strings with resolved placeholder values.
type Substitutor struct {
	logger zerolog.Logger
}

// NewSubstitutor creates a substitutor that reports unresolved placeholders
// through logger.
func NewSubstitutor(logger zerolog.Logger) *Substitutor {
	return &Substitutor{logger: logger.With().Str("component", "substitutor").Logger()}
}

// Substitute replaces {#KEY} placeholders from vars and {key} placeholders
// from inputs in a single scan of command, so substituted values are never
// rescanned. {$NAME} placeholders are left for ExpandEnv at dispatch time and
// shell expansions such as ${#VAR} or ${HOME} are never touched. Unresolved
// {#KEY} placeholders stay in the command and are logged.
func (s *Substitutor) Substitute(command string, vars Map, inputs map[string]string) string {
	result := command
	if len(vars) > 0 || len(inputs) > 0 {
		result = replacePlaceholders(command, vars, inputs)
	}

	if missing := UnresolvedFileVariables(result); len(missing) > 0 {
		s.logger.Warn().
			Strs("placeholders", missing).
			Str("command", command).
			Msg("Unresolved file variables left in command")
	}

	return result
}

// ExpandEnv resolves {$NAME} placeholders through lookup. Names lookup cannot
// resolve are returned and left verbatim.
func ExpandEnv(command string, lookup func(string) (string, bool)) (string, []string) {
	var missing []string
	out := envPlaceholderRegex.ReplaceAllStringFunc(command, func(match string) string {
		name := match[2 : len(match)-1]
		if v, ok := lookup(name); ok {
			return v
		}
		missing = append(missing, match)
		return match
	})
	return out, missing
}

// EnvLookup resolves names from env first and the process environment second.
func EnvLookup(env map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		if v, ok := env[name]; ok {
			return v, true
		}
		return os.LookupEnv(name)
	}
}

// ReplaceInteractive replaces {name} placeholders for which resolve returns a
// value. Shell parameter expansions such as ${HOME} are never touched.
func ReplaceInteractive(command string, resolve func(string) (string, bool)) string {
	matches := interactiveRegex.FindAllStringSubmatchIndex(command, -1)
	if len(matches) == 0 {
		return command
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if isShellExpansion(command, start) {
			continue
		}
		name := command[m[2]:m[3]]
		v, ok := resolve(name)
		if !ok {
			continue
		}
		b.WriteString(command[last:start])
		b.WriteString(v)
		last = end
	}
	b.WriteString(command[last:])
	return b.String()
}

// InteractivePlaceholders lists distinct {name} placeholder names in order of
// first appearance.
func InteractivePlaceholders(command string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range interactiveRegex.FindAllStringSubmatchIndex(command, -1) {
		if isShellExpansion(command, m[0]) {
			continue
		}
		name := command[m[2]:m[3]]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// UnresolvedFileVariables lists distinct {#KEY} placeholders in command.
func UnresolvedFileVariables(command string) []string {
	var found []string
	for _, m := range fileRefRegex.FindAllStringIndex(command, -1) {
		if !isShellExpansion(command, m[0]) {
			found = append(found, command[m[0]:m[1]])
		}
	}
	return distinct(found)
}

// Unresolved lists every placeholder of any form still present in command.
func Unresolved(command string) []string {
	out := UnresolvedFileVariables(command)
	out = append(out, distinct(envPlaceholderRegex.FindAllString(command, -1))...)
	for _, name := range InteractivePlaceholders(command) {
		out = append(out, "{"+name+"}")
	}
	return out
}

func replacePlaceholders(command string, vars Map, inputs map[string]string) string {
	matches := placeholderRegex.FindAllStringSubmatchIndex(command, -1)
	if len(matches) == 0 {
		return command
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if isShellExpansion(command, start) {
			continue
		}

		var v string
		var ok bool
		if m[2] >= 0 {
			v, ok = vars[command[m[2]:m[3]]]
		} else {
			v, ok = inputs[command[m[4]:m[5]]]
		}
		if !ok {
			continue
		}
		b.WriteString(command[last:start])
		b.WriteString(v)
		last = end
	}
	b.WriteString(command[last:])
	return b.String()
}

func isShellExpansion(command string, start int) bool {
	return start > 0 && command[start-1] == '$'
}

func distinct(items []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}
