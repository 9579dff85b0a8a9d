// Package variables loads command variables from layered sources and
// substitutes them into command strings.
//
// Three placeholder forms are recognised inside commands:
//
//	{name}   interactive input, answered from a command's inputs or a prompt
//	{$NAME}  environment variable, resolved when the command is dispatched
//	{#NAME}  file variable, resolved from the merged variables files
//
// Values loaded from files may themselves reference the process environment
// with ${NAME}; those references are expanded once, after merging.
package variables

import "sort"

// Map holds variables keyed by case-sensitive name.
type Map map[string]string

// Merge combines maps in ascending priority: for keys present in more than one
// map the value from the last map wins.
func Merge(maps ...Map) Map {
	out := make(Map)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// Keys returns the variable names in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
