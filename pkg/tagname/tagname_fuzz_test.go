//go:build go1.18

package tagname

import (
	"strings"
	"testing"
	"unicode"
)

// FuzzNormalize verifies the slug invariants hold for arbitrary input:
// never panics, idempotent, and the output alphabet is lowercase
// alphanumerics joined by single interior dashes.
func FuzzNormalize(f *testing.F) {
	// Seed corpus with interesting inputs
	f.Add("")
	f.Add("Foo Bar")
	f.Add("  --already-a-slug--  ")
	f.Add("c++ / templates")
	f.Add("ÅLAND übung")
	f.Add("'; DROP TABLE tagging_tags;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("日本語 タグ")

	f.Fuzz(func(t *testing.T, raw string) {
		slug := Normalize(raw)

		// Invariant 1: idempotence
		if again := Normalize(slug); again != slug {
			t.Errorf("Normalize(%q) = %q, but Normalize of that = %q", raw, slug, again)
		}

		// Invariant 2: no leading/trailing/doubled dashes
		if strings.HasPrefix(slug, "-") || strings.HasSuffix(slug, "-") {
			t.Errorf("Normalize(%q) = %q has a boundary dash", raw, slug)
		}
		if strings.Contains(slug, "--") {
			t.Errorf("Normalize(%q) = %q has a doubled dash", raw, slug)
		}

		// Invariant 3: output alphabet is lowercase alphanumerics plus dash
		for _, r := range slug {
			if r == '-' {
				continue
			}
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				t.Errorf("Normalize(%q) = %q contains %q", raw, slug, r)
			}
			if unicode.IsUpper(r) {
				t.Errorf("Normalize(%q) = %q contains upper-case %q", raw, slug, r)
			}
		}
	})
}
