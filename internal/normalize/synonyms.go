package normalize

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed synonyms.yaml
var defaultSynonymsYAML []byte

// SynonymGroup maps equivalent phrasings to one canonical form.
type SynonymGroup struct {
	Canonical string   `yaml:"canonical"`
	Terms     []string `yaml:"terms"`
}

// synonymFile is the on-disk YAML layout.
type synonymFile struct {
	Groups []SynonymGroup `yaml:"groups"`
}

// SynonymTable holds clinical equivalence groups. It is external, mutable
// configuration loaded at construction time, never compiled-in logic.
type SynonymTable struct {
	groups []SynonymGroup
	index  map[string]string // folded term -> canonical
}

// NewSynonymTable builds a table from explicit groups. Terms and canonicals
// are folded on the way in so lookups stay idempotent with Normalize.
func NewSynonymTable(groups []SynonymGroup) *SynonymTable {
	t := &SynonymTable{
		groups: make([]SynonymGroup, 0, len(groups)),
		index:  make(map[string]string),
	}

	for _, g := range groups {
		canonical := Fold(g.Canonical)
		if canonical == "" {
			continue
		}

		folded := SynonymGroup{Canonical: canonical, Terms: make([]string, 0, len(g.Terms))}
		t.index[canonical] = canonical
		for _, term := range g.Terms {
			ft := Fold(term)
			if ft == "" {
				continue
			}
			folded.Terms = append(folded.Terms, ft)
			t.index[ft] = canonical
		}
		t.groups = append(t.groups, folded)
	}

	return t
}

// LoadSynonyms loads a synonym table from a YAML file.
func LoadSynonyms(path string) (*SynonymTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading synonyms file: %w", err)
	}

	var f synonymFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing synonyms file: %w", err)
	}

	return NewSynonymTable(f.Groups), nil
}

// DefaultSynonyms returns the built-in clinical equivalence table.
func DefaultSynonyms() *SynonymTable {
	var f synonymFile
	// The embedded file is validated by tests; a parse failure here would be
	// a build defect, so fall back to an empty table rather than panicking.
	if err := yaml.Unmarshal(defaultSynonymsYAML, &f); err != nil {
		return NewSynonymTable(nil)
	}
	return NewSynonymTable(f.Groups)
}

// Canonical returns the canonical form of a folded term, if the table knows it.
func (t *SynonymTable) Canonical(term string) (string, bool) {
	canonical, ok := t.index[term]
	return canonical, ok
}

// ShareGroup reports whether both strings mention the same equivalence group.
// Membership is by substring so qualified diagnoses ("acute on chronic
// diastolic heart failure") still hit their base group.
func (t *SynonymTable) ShareGroup(a, b string) bool {
	for _, g := range t.groups {
		if t.mentionsGroup(a, g) && t.mentionsGroup(b, g) {
			return true
		}
	}
	return false
}

func (t *SynonymTable) mentionsGroup(s string, g SynonymGroup) bool {
	if strings.Contains(s, g.Canonical) {
		return true
	}
	for _, term := range g.Terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}

// Len returns the number of groups in the table.
func (t *SynonymTable) Len() int {
	return len(t.groups)
}
