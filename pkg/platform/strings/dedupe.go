// Package strings provides helpers for list-valued query parameters and flags.
package strings

import (
	"strings"
)

// Normalize flattens comma-separated values, trims and folds each element,
// and drops empty results and duplicates. Order of first occurrence is
// preserved. A nil fold leaves case untouched.
//
// Example:
//
//	Normalize[models.FactType]([]string{" name,ADDRESS", "Name", ""}, strings.ToUpper)
//	// Returns: []models.FactType{"NAME", "ADDRESS"}
func Normalize[T ~string](values []string, fold func(string) string) []T {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]T, 0, len(values))

	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			trimmed := strings.TrimSpace(part)
			if fold != nil {
				trimmed = fold(trimmed)
			}
			if trimmed == "" {
				continue
			}
			if _, ok := seen[trimmed]; !ok {
				seen[trimmed] = struct{}{}
				result = append(result, T(trimmed))
			}
		}
	}

	return result
}
