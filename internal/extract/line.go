// Package extract pulls diagnosis mentions out of discharge narratives and
// documentation-clarification queries.
package extract

import (
	"regexp"
	"strings"
)

// Source tags where a mention came from.
type Source string

const (
	SourceCheckbox Source = "checkbox"
	SourceQuery    Source = "clarification-query"
)

// Mention is a raw diagnosis substring as it appeared in source text.
type Mention struct {
	Raw     string `json:"raw"`
	Source  Source `json:"source"`
	Checked bool   `json:"checked"`
}

// LineClass is the closed set of checklist line outcomes.
type LineClass int

const (
	LineNonItem LineClass = iota
	LineChecked
	LineUnchecked
)

// Marker notation: bracket style from warehouse exports, glyph style from
// the EMR's rendered checklists. Inner spacing inside brackets varies.
var markerRe = regexp.MustCompile(`\[\s*[Xx]\s*\]|\[\s*\]|\x{2611}|\x{2612}|\x{2610}`)

// checkedMarker reports whether a matched marker token means "checked".
func checkedMarker(token string) bool {
	switch token {
	case "☑", "☒": // ☑ ☒
		return true
	case "☐": // ☐
		return false
	}
	// Bracket notation: checked iff an X appears between the brackets.
	return strings.ContainsAny(token, "Xx")
}

// segment is a span of text owned by one marker (or no marker).
type segment struct {
	class LineClass
	text  string
}

// segments splits text at marker boundaries. Text before the first marker is
// a non-item segment; each marker owns the text up to the next marker or end.
// This handles both one-marker-per-line checklists and flattened exports
// where several items share a single line.
func segments(text string) []segment {
	locs := markerRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []segment{{class: LineNonItem, text: text}}
	}

	var segs []segment
	if lead := text[:locs[0][0]]; strings.TrimSpace(lead) != "" {
		segs = append(segs, segment{class: LineNonItem, text: lead})
	}

	for i, loc := range locs {
		token := text[loc[0]:loc[1]]
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}

		class := LineUnchecked
		if checkedMarker(token) {
			class = LineChecked
		}
		segs = append(segs, segment{class: class, text: text[loc[1]:end]})
	}

	return segs
}

// ClassifyLine classifies a single checklist line and returns the item text
// with the marker stripped. Lines whose first token is not a recognized
// marker are non-items.
func ClassifyLine(line string) (LineClass, string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return LineNonItem, ""
	}

	loc := markerRe.FindStringIndex(trimmed)
	if loc == nil || strings.TrimSpace(trimmed[:loc[0]]) != "" {
		return LineNonItem, trimmed
	}

	rest := strings.TrimSpace(trimmed[loc[1]:])
	if checkedMarker(trimmed[loc[0]:loc[1]]) {
		return LineChecked, rest
	}
	return LineUnchecked, rest
}
