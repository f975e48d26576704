package market

import "strings"

// ValidTicker reports whether s looks like an exchange symbol:
// 1-6 uppercase alphanumeric characters after trimming.
func ValidTicker(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 1 || len(s) > 6 {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// NormalizeTicker upper-cases and trims a raw ticker parameter.
func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
