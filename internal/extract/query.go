package extract

import (
	"regexp"
	"strings"

	apperrors "github.com/clindocs/cdi-eval/internal/pkg/errors"
)

// Trailer boilerplate appended by the query templates. Everything from the
// first of these onward is not diagnosis content.
var trailerRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)this documentation will become part`),
	regexp.MustCompile(`(?i)provider response`),
	regexp.MustCompile(`(?i)agree with wocn`),
}

// clarificationRe recognizes clarification language so that free-text
// queries without any checkbox still classify as queries rather than
// malformed input.
var clarificationRe = regexp.MustCompile(`(?i)physician clarification|clinically valid|indicated below|clarification`)

// stripTrailer truncates text at the earliest trailer phrase.
func stripTrailer(text string) string {
	cut := len(text)
	for _, re := range trailerRes {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] < cut {
			cut = loc[0]
		}
	}
	return text[:cut]
}

// ExtractQuery pulls the physician-confirmed diagnoses out of a
// clarification query. Only checked items count: an unchecked item records
// what the physician declined to confirm and never becomes a gold label.
//
// A query with clarification language but zero checked items is a real
// outcome, not a parse failure. It returns a NoExtractableDiagnosis error so
// callers can exclude the case from evaluable counts instead of scoring an
// empty gold set.
func (e *Extractor) ExtractQuery(caseID, text string) ([]Mention, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.EmptyInputError("query extractor")
	}

	body := stripTrailer(text)
	mentions := e.collect(body, SourceQuery, nil)
	if len(mentions) == 0 {
		return nil, apperrors.NoExtractableDiagnosisError(caseID)
	}
	return mentions, nil
}

// ExtractCase returns the gold mentions for a case. The clarification query
// is the authoritative source when present; a case exported without one
// falls back to the checklist section of its narrative, honoring the
// configured section handling.
func (e *Extractor) ExtractCase(caseID, queryText, narrative string) ([]Mention, error) {
	if strings.TrimSpace(queryText) != "" {
		return e.ExtractQuery(caseID, queryText)
	}
	if strings.TrimSpace(narrative) == "" {
		return nil, apperrors.EmptyInputError("case extractor")
	}

	mentions := e.ParseChecklist(stripTrailer(narrative))
	if len(mentions) == 0 {
		return nil, apperrors.NoExtractableDiagnosisError(caseID)
	}
	return mentions, nil
}

// HasClarificationLanguage reports whether text reads like a clarification
// query at all. Loaders use it to separate queries from narratives that
// landed in the wrong export column.
func HasClarificationLanguage(text string) bool {
	return clarificationRe.MatchString(text)
}
