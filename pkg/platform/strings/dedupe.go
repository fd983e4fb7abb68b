// Package strings holds small helpers for caller-supplied string lists.
package strings

import (
	"strings"
	"unicode/utf8"
)

// DedupeAndTrim trims each value and drops blanks and repeats, keeping the
// first occurrence's position. A nil or empty input is returned as is.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

// FirstLongerThan returns the first value with more than limit runes.
func FirstLongerThan(values []string, limit int) (string, bool) {
	for _, v := range values {
		if utf8.RuneCountInString(v) > limit {
			return v, true
		}
	}
	return "", false
}
