// Package record provides dot-path access into backend records and an
// explicit builder for nested payloads. The CRUD layer treats records as
// mappings from path to value; it never assumes a fixed shape beyond what the
// active resource schema declares.
package record

import "strings"

// Get walks the dot-separated path through nested maps and returns the value
// at its end. The boolean is false when the path is empty, a step is missing,
// or an intermediate value is not a map. It never panics on nil data.
func Get(data map[string]any, path string) (any, bool) {
	if data == nil || path == "" {
		return nil, false
	}

	var current any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Set writes value at the dot-separated path, creating an empty map at every
// missing intermediate key. A non-map value found along the way is replaced
// by a map. An empty path is a no-op. The target is mutated in place.
func Set(target map[string]any, path string, value any) {
	if target == nil || path == "" {
		return
	}

	keys := strings.Split(path, ".")
	cursor := target
	for _, key := range keys[:len(keys)-1] {
		next, ok := cursor[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cursor[key] = next
		}
		cursor = next
	}
	cursor[keys[len(keys)-1]] = value
}
