package anchor

import "strings"

// Range is a half-open byte span [Start, End) in original-text coordinates.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Fallback phrase shape for tier 3. These counts were tuned against real
// counterparty paper; treat them as knobs, not as load-bearing design.
const (
	fallbackLongTokens   = 10
	fallbackShortTokens  = 6
	fallbackWindowMinLen = 8
	minTokenLen          = 2
)

// DefaultWindowRadius bounds hinted searches. Contracts repeat boilerplate,
// so an unbounded search can jump to an unrelated occurrence far from the
// hinted neighborhood.
const DefaultWindowRadius = 4000

// FindBestMatch locates needle inside haystack, tolerating the whitespace,
// punctuation and case drift that format conversion introduces. Three tiers
// are tried in order, first success wins:
//
//  1. direct case-insensitive substring,
//  2. normalized substring expanded back through the offset map,
//  3. token-prefix fallback phrases built from the normalized needle.
//
// A nil result means "not found" and is a normal outcome, not an error.
func FindBestMatch(haystack, needle string) *Range {
	if strings.TrimSpace(needle) == "" {
		return nil
	}

	if idx := strings.Index(asciiLower(haystack), asciiLower(needle)); idx >= 0 {
		return &Range{Start: idx, End: idx + len(needle)}
	}

	normHay := Normalize(haystack)
	normNeedle := Normalize(needle)
	if normNeedle.Text == "" {
		return nil
	}
	if r := matchNormalized(haystack, normHay, normNeedle.Text); r != nil {
		return r
	}

	for _, phrase := range fallbackPhrases(normNeedle.Text) {
		if r := matchNormalized(haystack, normHay, phrase); r != nil {
			return r
		}
	}
	return nil
}

// FindBestMatchNear runs FindBestMatch against a window of radius bytes on
// either side of approxPos and re-offsets a hit into whole-document
// coordinates. The hint is never trusted as authoritative; it only bounds
// cost and biases the result toward the hinted neighborhood.
func FindBestMatchNear(haystack, needle string, approxPos, radius int) *Range {
	if radius <= 0 {
		radius = DefaultWindowRadius
	}
	lo := approxPos - radius
	if lo < 0 {
		lo = 0
	}
	hi := approxPos + radius
	if hi > len(haystack) {
		hi = len(haystack)
	}
	if lo >= hi {
		return nil
	}
	r := FindBestMatch(haystack[lo:hi], needle)
	if r == nil {
		return nil
	}
	return &Range{Start: r.Start + lo, End: r.End + lo}
}

// matchNormalized searches for a normalized phrase in the normalized haystack
// and expands a hit back into original-text coordinates via the offset map.
func matchNormalized(haystack string, normHay NormalizedForm, phrase string) *Range {
	if phrase == "" || len(normHay.Map) == 0 {
		return nil
	}
	idx := strings.Index(normHay.Text, phrase)
	if idx < 0 {
		return nil
	}
	first := clampIndex(idx, len(normHay.Map))
	last := clampIndex(idx+len(phrase)-1, len(normHay.Map))
	start := normHay.Map[first]
	end := normHay.Map[last] + 1
	if end > len(haystack) {
		end = len(haystack)
	}
	return &Range{Start: start, End: end}
}

// fallbackPhrases builds up to three token-prefix phrases from the normalized
// needle: the first fallbackLongTokens tokens, the first fallbackShortTokens
// tokens, and for long needles a short window starting a third of the way in.
// These recover matches when the needle was truncated, paraphrased at the
// edges, or carries a stray leading clause.
func fallbackPhrases(normNeedle string) []string {
	var tokens []string
	for _, tok := range strings.Split(normNeedle, " ") {
		if len(tok) > minTokenLen {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		return nil
	}

	phrases := make([]string, 0, 3)
	phrases = append(phrases, strings.Join(tokens[:minInt(fallbackLongTokens, len(tokens))], " "))
	phrases = append(phrases, strings.Join(tokens[:minInt(fallbackShortTokens, len(tokens))], " "))
	if len(tokens) > fallbackWindowMinLen {
		from := len(tokens) / 3
		to := minInt(from+fallbackShortTokens, len(tokens))
		phrases = append(phrases, strings.Join(tokens[from:to], " "))
	}
	return phrases
}

func clampIndex(i, length int) int {
	if i < 0 {
		return 0
	}
	if i > length-1 {
		return length - 1
	}
	return i
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
