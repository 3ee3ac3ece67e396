// Package viewer turns a document's plain text into line-segmented markup a
// client can render and scroll. Each line carries its span in the original
// text so a resolved anchor range can be wrapped and scrolled to.
package viewer

import (
	"html/template"
	"strings"

	"github.com/kashamit951/nego/internal/anchor"
)

// placeholder keeps empty lines and empty highlighted sub-ranges visible so
// zero-height lines remain scroll targets.
const placeholder = "&nbsp;"

// Line is one rendered line of the document. Start and End give the line's
// half-open span in the original text, excluding the line feed. HTML is
// escaped and, on hit lines, has the highlighted sub-range wrapped in <mark>.
type Line struct {
	Number int    `json:"number"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Hit    bool   `json:"hit"`
	HTML   string `json:"html"`
}

// Render splits text on line feeds and produces one Line per segment. When
// highlight is non-nil, lines intersecting the (clamped) range are marked hit
// and the overlapping sub-range is wrapped distinctly from the rest of the
// line. An empty document renders as no lines at all.
func Render(text string, highlight *anchor.Range) []Line {
	if text == "" {
		return nil
	}

	hlStart, hlEnd, hasHighlight := clampHighlight(text, highlight)

	raw := strings.Split(text, "\n")
	lines := make([]Line, 0, len(raw))
	cursor := 0
	for i, segment := range raw {
		line := Line{
			Number: i,
			Start:  cursor,
			End:    cursor + len(segment),
		}
		if hasHighlight && line.Start < hlEnd && hlStart < line.End {
			line.Hit = true
			line.HTML = renderHit(segment, hlStart-line.Start, hlEnd-line.Start)
		} else {
			line.HTML = renderPlain(segment)
		}
		lines = append(lines, line)
		cursor = line.End + 1 // skip the removed line feed
	}
	return lines
}

// CharIndexToLine maps a character offset to its 0-based line number: the
// count of line feeds strictly before the offset. Offsets are clamped into
// [0, len(text)].
func CharIndexToLine(text string, index int) int {
	if index <= 0 {
		return 0
	}
	if index > len(text) {
		index = len(text)
	}
	return strings.Count(text[:index], "\n")
}

func clampHighlight(text string, highlight *anchor.Range) (start, end int, ok bool) {
	if highlight == nil {
		return 0, 0, false
	}
	start = highlight.Start
	if start < 0 {
		start = 0
	}
	if start > len(text) {
		start = len(text)
	}
	end = highlight.End
	if end < start {
		end = start
	}
	if end > len(text) {
		end = len(text)
	}
	return start, end, true
}

func renderPlain(segment string) string {
	if segment == "" {
		return placeholder
	}
	return template.HTMLEscapeString(segment)
}

// renderHit wraps the local sub-range [from, to) of segment in a <mark>
// element, clamping it into the line's own bounds first.
func renderHit(segment string, from, to int) string {
	if from < 0 {
		from = 0
	}
	if to > len(segment) {
		to = len(segment)
	}
	if to < from {
		to = from
	}

	marked := template.HTMLEscapeString(segment[from:to])
	if marked == "" {
		marked = placeholder
	}
	var b strings.Builder
	b.WriteString(template.HTMLEscapeString(segment[:from]))
	b.WriteString("<mark>")
	b.WriteString(marked)
	b.WriteString("</mark>")
	b.WriteString(template.HTMLEscapeString(segment[to:]))
	return b.String()
}
