// Package tagname holds the canonical tag spelling functions: slug
// normalization, display formatting, and delimited-list parsing.
//
// All functions are pure and deterministic. The tagging service binds
// Normalize and Display once at construction; callers may substitute
// their own strategies through the service options.
package tagname

import (
	"strings"
	"unicode"
)

// DefaultDelimiter separates tag names inside a single raw list string.
const DefaultDelimiter = ","

// Normalize maps a raw tag name to its canonical slug: lowercased, every
// run of non-alphanumeric runes collapsed to a single dash, leading and
// trailing dashes dropped.
//
// Idempotent: Normalize(Normalize(s)) == Normalize(s). Returns "" when the
// input contains no alphanumeric runes; callers treat an empty slug as
// "no tag" and discard it.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	lastDash := true // swallows leading separators
	for _, r := range strings.ToLower(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteRune('-')
			lastDash = true
		}
	}

	return strings.TrimRight(b.String(), "-")
}

// Display maps a raw tag name to its display form: surrounding whitespace
// trimmed, each word title-cased. Interior separators are preserved, so
// "foo-bar" becomes "Foo-Bar" and "  new  york " becomes "New  York".
func Display(raw string) string {
	raw = strings.TrimSpace(raw)

	var b strings.Builder
	b.Grow(len(raw))

	inWord := false
	for _, r := range raw {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			inWord = false
			b.WriteRune(r)
		case inWord:
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(unicode.ToTitle(r))
			inWord = true
		}
	}

	return b.String()
}

// Split parses a delimited tag list into individual names: split on the
// delimiter (DefaultDelimiter when empty), trim whitespace from every
// part, drop parts left empty after trimming. Returns nil when nothing
// survives, so an all-whitespace list is indistinguishable from none.
func Split(list, delimiter string) []string {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}

	parts := strings.Split(list, delimiter)
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}

	if len(names) == 0 {
		return nil
	}
	return names
}
