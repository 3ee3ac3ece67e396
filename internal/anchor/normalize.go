// Package anchor locates an approximate quoted fragment inside a document's
// plain-text rendering and returns it as a character range in the original
// text. Incoming redlines and comments arrive after format conversion, so the
// quoted text usually drifts from the original in whitespace, punctuation and
// case; matching happens over a canonical form that keeps a per-character map
// back to the original offsets.
package anchor

import "strings"

// spaceLikePunct is the punctuation folded into whitespace when building the
// canonical form. A run of whitespace and folded punctuation collapses into a
// single canonical space. Apostrophes and backquotes are dropped instead of
// folded so possessives survive conversion drift: "Supplier's" and
// "suppliers" canonicalize identically.
const spaceLikePunct = ".,;:()[]{}\"~!@#$%^&*_+=<>/?\\|-"

// NormalizedForm is the canonical search rendering of a text. Text is
// lowercase ASCII alphanumerics separated by single spaces; Map[i] is the
// byte offset in the original text that produced Text[i]. len(Text) always
// equals len(Map) and Map is non-decreasing.
type NormalizedForm struct {
	Text string
	Map  []int
}

// Normalize scans text once, lowercasing ASCII alphanumerics and collapsing
// each space-like run into a single space recorded at the offset of the run's
// first space-like character. Bytes outside both classes are dropped. Spaces
// are written lazily, only once a following alphanumeric arrives, so the
// canonical string never starts or ends with a space and the map stays in
// lock-step with it.
func Normalize(text string) NormalizedForm {
	var b strings.Builder
	b.Grow(len(text))
	indexMap := make([]int, 0, len(text))
	pendingSpace := -1

	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case ch >= 'a' && ch <= 'z' || ch >= '0' && ch <= '9' || ch >= 'A' && ch <= 'Z':
			if pendingSpace >= 0 {
				if b.Len() > 0 {
					b.WriteByte(' ')
					indexMap = append(indexMap, pendingSpace)
				}
				pendingSpace = -1
			}
			if ch >= 'A' && ch <= 'Z' {
				ch += 'a' - 'A'
			}
			b.WriteByte(ch)
			indexMap = append(indexMap, i)
		case isSpaceLike(ch):
			if pendingSpace < 0 {
				pendingSpace = i
			}
		}
	}

	return NormalizedForm{Text: b.String(), Map: indexMap}
}

func isSpaceLike(ch byte) bool {
	if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\v' || ch == '\f' {
		return true
	}
	return strings.IndexByte(spaceLikePunct, ch) >= 0
}

// asciiLower lowercases ASCII letters without changing the byte length, so
// offsets found in the folded text are valid in the original.
func asciiLower(s string) string {
	lowered := []byte(s)
	changed := false
	for i, ch := range lowered {
		if ch >= 'A' && ch <= 'Z' {
			lowered[i] = ch + ('a' - 'A')
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(lowered)
}
