// Package normalize canonicalizes free-text diagnosis strings for comparison.
package normalize

import (
	"strings"
	"unicode"

	"github.com/clindocs/cdi-eval/internal/pkg/errors"
)

// Label is a canonical diagnosis string with an optional category tag.
type Label struct {
	Canonical string `json:"canonical"`
	Category  string `json:"category,omitempty"`
}

// SetKind tags a label set as ground truth or model output.
type SetKind string

const (
	KindGold      SetKind = "gold"
	KindPredicted SetKind = "predicted"
)

// LabelSet is an unordered collection of unique labels scoped to one case.
type LabelSet struct {
	CaseID string  `json:"case_id"`
	Kind   SetKind `json:"kind"`
	Labels []Label `json:"labels"`
}

// NewLabelSet builds a label set, dropping duplicate canonical forms while
// preserving first-seen order.
func NewLabelSet(caseID string, kind SetKind, labels []Label) LabelSet {
	seen := make(map[string]struct{}, len(labels))
	unique := make([]Label, 0, len(labels))
	for _, l := range labels {
		if _, ok := seen[l.Canonical]; ok {
			continue
		}
		seen[l.Canonical] = struct{}{}
		unique = append(unique, l)
	}
	return LabelSet{CaseID: caseID, Kind: kind, Labels: unique}
}

// Normalizer canonicalizes diagnosis strings. It is a pure function of its
// synonym table: same input always yields the same output.
type Normalizer struct {
	table *SynonymTable
}

// New creates a normalizer with the given synonym table. A nil table disables
// synonym mapping but keeps the textual canonicalization rules.
func New(table *SynonymTable) *Normalizer {
	return &Normalizer{table: table}
}

// Normalize canonicalizes a raw diagnosis string: case-fold, strip
// punctuation, collapse whitespace, then map known synonyms to one canonical
// form. Normalization is idempotent. Blank input is a caller bug and returns
// an EMPTY_INPUT error.
func (n *Normalizer) Normalize(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", errors.EmptyInputError("normalizer")
	}

	s := Fold(raw)

	if n.table != nil {
		if canonical, ok := n.table.Canonical(s); ok {
			s = canonical
		}
	}

	return s, nil
}

// Label normalizes a raw diagnosis string into a Label.
func (n *Normalizer) Label(raw string) (Label, error) {
	canonical, err := n.Normalize(raw)
	if err != nil {
		return Label{}, err
	}
	return Label{Canonical: canonical}, nil
}

// LabelAll normalizes a batch of raw strings into a deduplicated label set.
// Blank entries are skipped: the upstream extractor already filters them, so
// one slipping through should not abort the whole case.
func (n *Normalizer) LabelAll(caseID string, kind SetKind, raws []string) LabelSet {
	labels := make([]Label, 0, len(raws))
	for _, raw := range raws {
		l, err := n.Label(raw)
		if err != nil {
			continue
		}
		labels = append(labels, l)
	}
	return NewLabelSet(caseID, kind, labels)
}

// Fold applies the textual canonicalization rules without synonym mapping:
// lowercase, strip punctuation that carries no clinical meaning, collapse
// whitespace.
func Fold(s string) string {
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '/':
			// Slash separates alternatives ("r/o", "CHF/HF"); folding
			// it to a space keeps the parts as distinct tokens.
			b.WriteByte(' ')
		}
		// Everything else (punctuation, symbols) is dropped.
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
