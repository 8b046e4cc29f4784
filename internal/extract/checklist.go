package extract

import (
	"regexp"
	"strings"
)

// Config controls checklist and query extraction.
type Config struct {
	// SectionHeaders are phrases that open a checklist section inside a
	// larger document. Matching is case-insensitive.
	SectionHeaders []string
	// AllSections scans every checklist section instead of only the first.
	AllSections bool
	// MinMentionLen drops extracted fragments shorter than this many
	// characters. Template residue like "no" or "n/a" falls below it.
	MinMentionLen int
}

// DefaultSectionHeaders are the checklist lead-ins seen across the query
// templates in the corpus.
var DefaultSectionHeaders = []string{
	"clinically valid",
	"indicated below",
	"diagnosis checklist",
	"please indicate",
}

func (c Config) withDefaults() Config {
	if len(c.SectionHeaders) == 0 {
		c.SectionHeaders = DefaultSectionHeaders
	}
	if c.MinMentionLen == 0 {
		c.MinMentionLen = 4
	}
	return c
}

// Extractor parses checklist sections and clarification queries.
type Extractor struct {
	cfg       Config
	headerRes []*regexp.Regexp
}

// NewExtractor builds an Extractor, applying defaults for zero-valued config
// fields.
func NewExtractor(cfg Config) *Extractor {
	cfg = cfg.withDefaults()
	res := make([]*regexp.Regexp, 0, len(cfg.SectionHeaders))
	for _, h := range cfg.SectionHeaders {
		res = append(res, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(h)))
	}
	return &Extractor{cfg: cfg, headerRes: res}
}

// sectionStart returns the byte offset just past the first header phrase at
// or after from, or -1 when none matches.
func (e *Extractor) sectionStart(text string, from int) int {
	best := -1
	for _, re := range e.headerRes {
		loc := re.FindStringIndex(text[from:])
		if loc == nil {
			continue
		}
		end := from + loc[1]
		if best == -1 || end < best {
			best = end
		}
	}
	return best
}

// sectionHeaderLine matches lines that open a new named section, which ends
// the checklist span.
var sectionHeaderLine = regexp.MustCompile(`^[A-Za-z][A-Za-z /]{2,40}:\s*$`)

// sectionEnd returns the offset where the checklist section starting at
// start stops: the next named-section line, or end of text.
func sectionEnd(text string, start int) int {
	offset := start
	first := true
	for _, line := range strings.Split(text[start:], "\n") {
		// The first line is the tail of the header line itself and may
		// end with a colon. Never treat it as the terminator.
		if !first && sectionHeaderLine.MatchString(strings.TrimSpace(line)) && !markerRe.MatchString(line) {
			return offset
		}
		first = false
		offset += len(line) + 1
	}
	return len(text)
}

// ParseChecklist extracts checked items from the checklist section of a
// document. The section opens at the first configured header phrase; when no
// header is present the whole document is scanned. Unchecked and non-item
// lines are skipped.
func (e *Extractor) ParseChecklist(text string) []Mention {
	var mentions []Mention

	from := 0
	for {
		start := e.sectionStart(text, from)
		if start == -1 {
			if from == 0 {
				// No header anywhere. Standalone checklists arrive
				// without one, so scan the full text once.
				return e.collect(text, SourceCheckbox, nil)
			}
			return mentions
		}

		end := sectionEnd(text, start)
		mentions = append(mentions, e.collect(text[start:end], SourceCheckbox, mentions)...)

		if !e.cfg.AllSections {
			return mentions
		}
		from = end
		if from >= len(text) {
			return mentions
		}
	}
}

// collect runs marker segmentation over span and keeps checked items not
// already present in seen.
func (e *Extractor) collect(span string, src Source, seen []Mention) []Mention {
	var out []Mention
	for _, seg := range segments(span) {
		if seg.class != LineChecked {
			continue
		}
		raw := cleanItem(seg.text)
		if len(raw) < e.cfg.MinMentionLen {
			continue
		}
		if containsRaw(seen, raw) || containsRaw(out, raw) {
			continue
		}
		out = append(out, Mention{Raw: raw, Source: src, Checked: true})
	}
	return out
}

func containsRaw(ms []Mention, raw string) bool {
	for _, m := range ms {
		if strings.EqualFold(m.Raw, raw) {
			return true
		}
	}
	return false
}

// cleanItem trims an item fragment down to the diagnosis text: surrounding
// whitespace, stray list punctuation, and line breaks inside flattened
// exports.
func cleanItem(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "-*•:;,.")
	return strings.TrimSpace(s)
}
