package util

import "sort"

// OrderedKeys returns the keys of m sorted ascending, for deterministic
// iteration over a map when rendering debug strings or DOT output.
func OrderedKeys[K ~string | ~int, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
