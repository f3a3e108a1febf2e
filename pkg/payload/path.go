// Package payload provides dot-path lookups into trigger payloads.
package payload

import "strings"

// Lookup resolves a dot-separated path (e.g. "lead.phone") against a nested
// map. The second return reports whether the full path resolved.
func Lookup(data map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = data

	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// LookupString resolves a path and returns its value as a non-empty string.
func LookupString(data map[string]any, path string) (string, bool) {
	value, ok := Lookup(data, path)
	if !ok {
		return "", false
	}

	str, ok := value.(string)
	if !ok || str == "" {
		return "", false
	}

	return str, true
}
