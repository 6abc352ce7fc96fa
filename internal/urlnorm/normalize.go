// Package urlnorm canonicalizes article URLs into comparable keys.
package urlnorm

import "strings"

var trackingParamKeys = map[string]struct{}{
	"fbclid": {},
	"gclid":  {},
	"ref":    {},
	"source": {},
}

// Normalize canonicalizes a raw article URL into a comparison key. It is
// pure and deterministic: the same input always yields the same output.
// Blank input normalizes to the empty string; a bare domain is a valid key.
func Normalize(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}

	trimmed = strings.TrimPrefix(trimmed, "https://")
	trimmed = strings.TrimPrefix(trimmed, "http://")
	trimmed = strings.TrimPrefix(trimmed, "www.")

	if idx := strings.IndexByte(trimmed, '#'); idx >= 0 {
		trimmed = trimmed[:idx]
	}

	path := trimmed
	query := ""
	if idx := strings.IndexByte(trimmed, '?'); idx >= 0 {
		path = trimmed[:idx]
		query = trimmed[idx+1:]
	}

	path = strings.TrimSuffix(path, "/")
	query = filterTrackingParams(query)

	if query == "" {
		return path
	}
	return path + "?" + query
}

// filterTrackingParams drops utm_* and other known tracking keys, keeping
// the remaining parameters in their original order.
func filterTrackingParams(query string) string {
	if query == "" {
		return ""
	}

	parts := strings.Split(query, "&")
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		key := part
		if idx := strings.IndexByte(part, '='); idx >= 0 {
			key = part[:idx]
		}
		if strings.HasPrefix(key, "utm_") {
			continue
		}
		if _, tracked := trackingParamKeys[key]; tracked {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "&")
}
