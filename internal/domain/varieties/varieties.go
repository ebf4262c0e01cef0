// Package varieties lists catalog products a customer has not tried.
package varieties

import "sort"

// Missing returns catalog minus tried, sorted by name. An empty result
// means the customer tried everything.
func Missing(catalog, tried map[string]struct{}) []string {
	out := make([]string, 0, len(catalog))
	for name := range catalog {
		if _, ok := tried[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Set builds a lookup set from a list of names.
func Set(names []string) map[string]struct{} {
	s := make(map[string]struct{}, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}
