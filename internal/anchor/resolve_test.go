package anchor

import (
	"strings"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestResolveHintedMatch(t *testing.T) {
	phrase := "the parties agree to binding arbitration"
	haystack := strings.Repeat("filler sentence goes here. ", 100) + phrase + "."
	at := strings.Index(haystack, phrase)

	r := Resolve(haystack, []string{phrase}, intPtr(at+5))
	if r == nil || r.Start != at {
		t.Fatalf("Resolve with hint = %+v, want start %d", r, at)
	}
}

func TestResolveCandidateOrder(t *testing.T) {
	haystack := "First clause text. Second clause text."
	r := Resolve(haystack, []string{"second clause", "first clause"}, nil)
	if r == nil {
		t.Fatal("expected a match")
	}
	if got := haystack[r.Start:r.End]; !strings.EqualFold(got, "Second clause") {
		t.Fatalf("matched %q, want the first candidate to win", got)
	}
}

func TestResolveFallsBackToLaterCandidate(t *testing.T) {
	haystack := "Only the linked comment text appears in this document."
	r := Resolve(haystack, []string{"completely absent wording and nothing else", "linked comment text"}, nil)
	if r == nil {
		t.Fatal("expected the second candidate to match")
	}
	if got := haystack[r.Start:r.End]; got != "linked comment text" {
		t.Fatalf("matched %q", got)
	}
}

func TestResolveHintedApproximateFallback(t *testing.T) {
	haystack := strings.Repeat("x", 10000)
	primary := strings.Repeat("q", 500) // absent from the document

	r := Resolve(haystack, []string{primary}, intPtr(4000))
	if r == nil {
		t.Fatal("a present hint must always produce an anchor")
	}
	if r.Start != 4000 {
		t.Fatalf("approximate anchor starts at %d, want the hint position", r.Start)
	}
	if got := r.End - r.Start; got != approxSpanMax {
		t.Fatalf("approximate span = %d, want clamp to %d", got, approxSpanMax)
	}

	// Without candidates the span falls back to the default length.
	r = Resolve(haystack, nil, intPtr(200))
	if r == nil || r.End-r.Start != approxSpanDefault {
		t.Fatalf("default approximate span = %+v", r)
	}

	// Tiny primary text clamps up to the minimum span.
	r = Resolve(haystack, []string{"zz"}, intPtr(200))
	if r == nil || r.End-r.Start != approxSpanMin {
		t.Fatalf("minimum approximate span = %+v", r)
	}
}

func TestResolveHintClampedIntoBounds(t *testing.T) {
	haystack := "short document"
	r := Resolve(haystack, []string{"missing"}, intPtr(5000))
	if r == nil {
		t.Fatal("expected approximate anchor")
	}
	if r.Start > len(haystack) || r.End > len(haystack) || r.Start > r.End {
		t.Fatalf("anchor %+v breaches document bounds", r)
	}

	r = Resolve(haystack, []string{"document"}, intPtr(-40))
	if r == nil || haystack[r.Start:r.End] != "document" {
		t.Fatalf("negative hint should clamp and still refine, got %+v", r)
	}
}

func TestResolveNoMatch(t *testing.T) {
	if r := Resolve("", []string{"anything"}, intPtr(0)); r != nil {
		t.Fatalf("empty document must yield nil, got %+v", r)
	}
	if r := Resolve("some document text", []string{"absent wording entirely unrelated"}, nil); r != nil {
		t.Fatalf("no hint and no match must yield nil, got %+v", r)
	}
	if r := Resolve("some document text", nil, nil); r != nil {
		t.Fatalf("no candidates and no hint must yield nil, got %+v", r)
	}
}
