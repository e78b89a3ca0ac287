package tagname

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"simple word", "Foo", "foo"},
		{"surrounding whitespace", "  Foo-Bar  ", "foo-bar"},
		{"interior spaces collapse", "New   York", "new-york"},
		{"mixed separators collapse", "c++ / templates", "c-templates"},
		{"punctuation runs", "rock&roll!!", "rock-roll"},
		{"digits kept", "web 2.0", "web-2-0"},
		{"already a slug", "foo-bar", "foo-bar"},
		{"unicode letters kept", "Åland Übung", "åland-übung"},
		{"only separators", "  --- !!! ", ""},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"Foo", "  Foo-Bar  ", "New   York", "c++ / templates", "åland-übung", ""}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "Normalize not idempotent for %q", in)
	}
}

func TestDisplay(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase word", "foo", "Foo"},
		{"shouting is tamed", "FOO BAR", "Foo Bar"},
		{"trims surrounding space", "  foo bar  ", "Foo Bar"},
		{"interior separators preserved", "foo-bar", "Foo-Bar"},
		{"interior runs preserved", "new  york", "New  York"},
		{"digits start words", "2 fast 2 furious", "2 Fast 2 Furious"},
		{"empty", "   ", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Display(tc.in))
		})
	}
}

func TestSplit(t *testing.T) {
	t.Run("default comma delimiter", func(t *testing.T) {
		assert.Equal(t, []string{"foo", "bar"}, Split(" foo , bar ", ""))
	})

	t.Run("custom delimiter", func(t *testing.T) {
		assert.Equal(t, []string{"foo", "bar,baz"}, Split("foo|bar,baz", "|"))
	})

	t.Run("empty parts dropped", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b"}, Split(",a,, ,b,", ""))
	})

	t.Run("nothing survives returns nil", func(t *testing.T) {
		assert.Nil(t, Split("  , ,  ", ""))
		assert.Nil(t, Split("", ""))
	})
}
