// Package strings provides string slice utilities shared across the repo.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
//
// Example:
//
//	DedupeAndTrim([]string{"  foo ", "bar", "foo", "", "  "})
//	// Returns: []string{"foo", "bar"}
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
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// DedupeMapped applies fn to every value and returns the distinct non-empty
// results, preserving first-seen order. Used to turn raw tag names into a
// unique slug set in one pass.
//
// Example:
//
//	DedupeMapped([]string{"Foo", "FOO", "!!"}, tagname.Normalize)
//	// Returns: []string{"foo"}
func DedupeMapped(values []string, fn func(string) string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		mapped := fn(v)
		if mapped == "" {
			continue
		}
		if _, ok := seen[mapped]; !ok {
			seen[mapped] = struct{}{}
			result = append(result, mapped)
		}
	}

	return result
}
