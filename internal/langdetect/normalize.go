package langdetect

import "strings"

// NormalizeCode reduces a declared language value to its primary subtag in
// lowercase, so "en-US", "en_us", and "EN" all store as "en". Returns an
// empty string for blank or malformed input.
func NormalizeCode(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}
	trimmed = strings.ReplaceAll(trimmed, "_", "-")

	primary, _, _ := strings.Cut(trimmed, "-")
	if primary == "" {
		return ""
	}
	for _, r := range primary {
		if r < 'a' || r > 'z' {
			return ""
		}
	}
	return primary
}
