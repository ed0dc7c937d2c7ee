package csvparser

import "strings"

// normalizeHeaders trims every header and indexes it by lower-case name.
// The first occurrence of a name wins.
func normalizeHeaders(headers []string) ([]string, map[string]int) {
	names := make([]string, len(headers))
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		names[i] = h
		key := strings.ToLower(h)
		if _, dup := index[key]; !dup && key != "" {
			index[key] = i
		}
	}
	return names, index
}
