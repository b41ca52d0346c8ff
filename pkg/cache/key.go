package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key builds a logical cache key from parts joined with ":".
// Empty parts are skipped.
//
// Example:
//
//	Key("people", "albert-einstein") == "people:albert-einstein"
func Key(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ":")
}

// RequestKey builds a deterministic logical key for a route and its query.
// Query parameters are sorted so that ?a=1&b=2 and ?b=2&a=1 share a key.
//
// Format: path:param1=val1:param2=val2
//
// Example:
//
//	v1/search:limit=10:q=einstein
func RequestKey(path string, query url.Values) string {
	parts := []string{strings.Trim(path, "/")}

	if len(query) > 0 {
		keys := make([]string, 0, len(query))
		for k := range query {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			values := append([]string(nil), query[k]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", k, strings.Join(values, ",")))
		}
	}

	return strings.Join(parts, ":")
}
