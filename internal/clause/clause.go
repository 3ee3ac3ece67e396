// Package clause segments contract text into clauses and assigns each a
// coarse type via keyword matching. Classification here is deliberately
// cheap; model-backed classifiers live behind the external intelligence
// service and are out of scope for this API.
package clause

import (
	"regexp"
	"strings"
)

var keywordTypes = []struct {
	clauseType string
	keywords   []string
}{
	{"warranty", []string{"warranty", "warranties", "express warranty", "implied warranty"}},
	{"indemnity", []string{"indemn", "hold harmless", "defend"}},
	{"limitation_of_liability", []string{"limitation of liability", "liability cap", "aggregate liability"}},
	{"termination", []string{"terminate", "termination", "for convenience", "for cause"}},
	{"ip_ownership", []string{"intellectual property", "ownership", "ip rights"}},
	{"confidentiality", []string{"confidential", "non-disclosure", "nda"}},
	{"force_majeure", []string{"force majeure", "acts of god", "beyond reasonable control"}},
	{"insurance", []string{"insurance", "coverage", "policy limits"}},
	{"governing_law", []string{"governing law", "jurisdiction", "venue"}},
}

const (
	keywordConfidence = 0.86
	otherConfidence   = 0.55
)

// Segment is one clause-sized block of the document, with its byte offset in
// the raw text so anchors can be hinted at clause granularity.
type Segment struct {
	Text  string
	Start int
}

var (
	blankLineRe     = regexp.MustCompile(`\n\s*\n`)
	sentenceSplitRe = regexp.MustCompile(`[.!?]\s+`)
)

// Split segments raw contract text into clause blocks separated by blank
// lines, falling back to sentences when the document is a single block.
func Split(rawText string) []Segment {
	segments := splitAt(rawText, blankLineRe)
	if len(segments) > 1 {
		return segments
	}
	return splitSentences(rawText)
}

func splitAt(rawText string, sep *regexp.Regexp) []Segment {
	var segments []Segment
	cursor := 0
	for _, loc := range sep.FindAllStringIndex(rawText, -1) {
		if seg, ok := trimSegment(rawText, cursor, loc[0]); ok {
			segments = append(segments, seg)
		}
		cursor = loc[1]
	}
	if seg, ok := trimSegment(rawText, cursor, len(rawText)); ok {
		segments = append(segments, seg)
	}
	return segments
}

func splitSentences(rawText string) []Segment {
	var segments []Segment
	cursor := 0
	for _, loc := range sentenceSplitRe.FindAllStringIndex(rawText, -1) {
		// Keep the terminating punctuation with the sentence.
		if seg, ok := trimSegment(rawText, cursor, loc[0]+1); ok {
			segments = append(segments, seg)
		}
		cursor = loc[1]
	}
	if seg, ok := trimSegment(rawText, cursor, len(rawText)); ok {
		segments = append(segments, seg)
	}
	return segments
}

func trimSegment(rawText string, from, to int) (Segment, bool) {
	block := rawText[from:to]
	trimmed := strings.TrimSpace(block)
	if trimmed == "" {
		return Segment{}, false
	}
	start := from + strings.Index(block, trimmed)
	return Segment{Text: trimmed, Start: start}, true
}

// Classify assigns a clause type by keyword lookup, first match wins.
func Classify(clauseText string) (clauseType string, confidence float64) {
	text := strings.ToLower(clauseText)
	for _, entry := range keywordTypes {
		for _, keyword := range entry.keywords {
			if strings.Contains(text, keyword) {
				return entry.clauseType, keywordConfidence
			}
		}
	}
	return "other", otherConfidence
}
