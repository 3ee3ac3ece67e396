package anchor

import (
	"strings"
	"testing"
)

func TestNormalizeCanonicalForm(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercase", in: "Hello World", want: "hello world"},
		{name: "collapse whitespace", in: "a \t\n  b", want: "a b"},
		{name: "punctuation run with space", in: "liability, is capped", want: "liability is capped"},
		{name: "intra-word apostrophe dropped", in: "Supplier's", want: "suppliers"},
		{name: "leading and trailing trimmed", in: "  -- Section 4.2 --  ", want: "section 4 2"},
		{name: "digits kept", in: "Clause 12(b)", want: "clause 12 b"},
		{name: "empty", in: "", want: ""},
		{name: "whitespace only", in: " \t \n ", want: ""},
		{name: "punctuation only", in: "...!!!", want: ""},
		{name: "non-ascii dropped", in: "café bar", want: "caf bar"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.in)
			if got.Text != tc.want {
				t.Fatalf("Normalize(%q).Text = %q, want %q", tc.in, got.Text, tc.want)
			}
		})
	}
}

func TestNormalizeMapInvariants(t *testing.T) {
	inputs := []string{
		"",
		"Hello, World!",
		"The Supplier's liability, is capped.",
		"  leading and trailing  ",
		"line one\nline two\r\nline three",
		strings.Repeat("Clause 8.1; ", 200),
	}

	for _, in := range inputs {
		form := Normalize(in)
		if len(form.Text) != len(form.Map) {
			t.Fatalf("Normalize(%q): text length %d != map length %d", in, len(form.Text), len(form.Map))
		}
		prev := -1
		for i, orig := range form.Map {
			if orig < prev {
				t.Fatalf("Normalize(%q): map not non-decreasing at %d: %d after %d", in, i, orig, prev)
			}
			if orig < 0 || orig >= len(in) {
				t.Fatalf("Normalize(%q): map[%d] = %d out of range", in, i, orig)
			}
			src := in[orig]
			if src >= 'A' && src <= 'Z' {
				src += 'a' - 'A'
			}
			if !isSpaceLike(in[orig]) && src != form.Text[i] {
				t.Fatalf("Normalize(%q): map[%d] points at %q but canonical is %q", in, i, in[orig], form.Text[i])
			}
			prev = orig
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"The Supplier's liability, is capped.",
		"  MIXED case,   with\tpunctuation!  ",
		"simple",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once.Text)
		if twice.Text != once.Text {
			t.Fatalf("Normalize not idempotent for %q: %q then %q", in, once.Text, twice.Text)
		}
	}
}
