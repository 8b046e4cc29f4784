package extract

import (
	"regexp"
	"strings"
)

// Diagnosis-bearing section headers in discharge narratives.
var documentedSectionRe = regexp.MustCompile(`(?im)^\s*(?:discharge|admitting|admission|principal|primary|secondary|final)\s+diagnos\w*\s*:?|^\s*(?:active\s+)?problem\s+list\s*:?|^\s*active\s+problems\s*:?`)

// documentedItemRe matches one listed diagnosis line inside such a section:
// numbered, bulleted, or bare.
var documentedItemRe = regexp.MustCompile(`^\s*(?:\d+[.)]\s*|[-*•#]\s*)?(.+?)\s*$`)

// DocumentedDiagnoses lists the diagnoses a narrative already names in its
// diagnosis sections. The prediction filter uses this to separate
// new-diagnosis suggestions from restatements of what the note documents.
func DocumentedDiagnoses(narrative string) []string {
	var out []string
	seen := make(map[string]struct{})

	for _, loc := range documentedSectionRe.FindAllStringIndex(narrative, -1) {
		span := narrative[loc[1]:]
		if end := sectionEnd(span, 0); end < len(span) {
			span = span[:end]
		}
		for _, line := range strings.Split(span, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			// A prose sentence is not a listed diagnosis.
			if strings.Count(line, " ") > 8 || strings.HasSuffix(line, ":") {
				continue
			}
			m := documentedItemRe.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			item := strings.Trim(m[1], ".,;")
			if len(item) < 4 {
				continue
			}
			key := strings.ToLower(item)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}
