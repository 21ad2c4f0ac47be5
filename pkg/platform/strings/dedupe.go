// Package strings normalizes user supplied string lists such as asset
// tickers and sink names from configuration.
package strings

import (
	"strings"
)

// DedupeAndTrim drops empty entries and duplicates after trimming
// whitespace. Order of first occurrence is kept.
func DedupeAndTrim(values []string) []string {
	return dedupe(values, nil)
}

// DedupeAndTrimLower is DedupeAndTrim with lower-casing, for names.
func DedupeAndTrimLower(values []string) []string {
	return dedupe(values, strings.ToLower)
}

// DedupeAndTrimUpper is DedupeAndTrim with upper-casing, for tickers.
func DedupeAndTrimUpper(values []string) []string {
	return dedupe(values, strings.ToUpper)
}

func dedupe(values []string, fold func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if fold != nil {
			v = fold(v)
		}
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
