package anchor

// Heuristic span length used when a position hint exists but no candidate
// text could be matched near it.
const (
	approxSpanMin     = 18
	approxSpanMax     = 260
	approxSpanDefault = 60
)

// Resolve applies the caller-facing anchoring policy to an ordered list of
// candidate strings (full incoming text first, shortened or linked variants
// after) and an optional approximate position:
//
//   - with a hint, each candidate is tried inside a window around the hint,
//     in order, and the first hit wins;
//   - if nothing matches near the hint, a best-effort span anchored exactly
//     at the hint is returned so the caller always has something to show;
//   - without a hint, each candidate is tried against the whole document.
//
// A nil result only occurs when there is no hint and no candidate matches.
// The hint is treated as strong but unverified evidence: refinement first,
// approximate anchor as the floor.
func Resolve(haystack string, candidates []string, hint *int) *Range {
	if len(haystack) == 0 {
		return nil
	}

	if hint != nil {
		pos := clampPos(*hint, len(haystack))
		for _, candidate := range candidates {
			if r := FindBestMatchNear(haystack, candidate, pos, DefaultWindowRadius); r != nil {
				return r
			}
		}
		span := approxSpanDefault
		if len(candidates) > 0 && len(candidates[0]) > 0 {
			span = len(candidates[0])
		}
		if span < approxSpanMin {
			span = approxSpanMin
		}
		if span > approxSpanMax {
			span = approxSpanMax
		}
		end := pos + span
		if end > len(haystack) {
			end = len(haystack)
		}
		return &Range{Start: pos, End: end}
	}

	for _, candidate := range candidates {
		if r := FindBestMatch(haystack, candidate); r != nil {
			return r
		}
	}
	return nil
}

func clampPos(pos, length int) int {
	if pos < 0 {
		return 0
	}
	if pos > length {
		return length
	}
	return pos
}
