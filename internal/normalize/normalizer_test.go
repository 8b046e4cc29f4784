package normalize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clindocs/cdi-eval/internal/pkg/errors"
)

func TestFold(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase", "Severe Malnutrition", "severe malnutrition"},
		{"punctuation stripped", "Sepsis, clinically valid.", "sepsis clinically valid"},
		{"whitespace collapsed", "heart   failure\t acute", "heart failure acute"},
		{"hyphenated", "protein-calorie malnutrition", "proteincalorie malnutrition"},
		{"digits kept", "stage 3 pressure ulcer", "stage 3 pressure ulcer"},
		{"slash separates tokens", "R/O sepsis", "r o sepsis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fold(tt.input); got != tt.want {
				t.Errorf("Fold(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizer_Normalize(t *testing.T) {
	n := New(DefaultSynonyms())

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain diagnosis", "Hyponatremia", "hyponatremia"},
		{"synonym mapped", "CHF", "heart failure"},
		{"synonym with case and punctuation", "Congestive Heart Failure.", "heart failure"},
		{"aki abbreviation", "AKI", "acute kidney injury"},
		{"unknown passes through", "Cerebral edema", "cerebral edema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(tt.input)
			if err != nil {
				t.Fatalf("Normalize(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizer_Idempotent(t *testing.T) {
	n := New(DefaultSynonyms())

	inputs := []string{
		"Severe Protein-Calorie Malnutrition",
		"CHF",
		"Acute Hypoxic Respiratory Failure",
		"Type 2 NSTEMI",
		"stage 3 pressure ulcer, sacral, POA",
		"unrecognized free text diagnosis",
	}

	for _, input := range inputs {
		once, err := n.Normalize(input)
		if err != nil {
			t.Fatalf("Normalize(%q) error = %v", input, err)
		}

		twice, err := n.Normalize(once)
		if err != nil {
			t.Fatalf("Normalize(Normalize(%q)) error = %v", input, err)
		}

		if once != twice {
			t.Errorf("normalization not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}

func TestNormalizer_EmptyInput(t *testing.T) {
	n := New(nil)

	for _, input := range []string{"", "   ", "\t\n"} {
		_, err := n.Normalize(input)
		if err == nil {
			t.Fatalf("Normalize(%q) error = nil, want EMPTY_INPUT", input)
		}
		if !errors.IsEmptyInput(err) {
			t.Errorf("Normalize(%q) error = %v, want EMPTY_INPUT", input, err)
		}
	}
}

func TestNormalizer_NilTable(t *testing.T) {
	n := New(nil)

	got, err := n.Normalize("CHF")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	// Without a table the textual rules still apply, but no synonym mapping.
	if got != "chf" {
		t.Errorf("Normalize(CHF) = %q, want chf", got)
	}
}

func TestNewLabelSet_Dedup(t *testing.T) {
	set := NewLabelSet("case-1", KindGold, []Label{
		{Canonical: "sepsis"},
		{Canonical: "heart failure"},
		{Canonical: "sepsis"},
	})

	if len(set.Labels) != 2 {
		t.Fatalf("len(Labels) = %d, want 2", len(set.Labels))
	}

	if set.Labels[0].Canonical != "sepsis" || set.Labels[1].Canonical != "heart failure" {
		t.Errorf("order not preserved: %+v", set.Labels)
	}
}

func TestLabelAll_SkipsBlank(t *testing.T) {
	n := New(nil)

	set := n.LabelAll("case-1", KindPredicted, []string{"Sepsis", "  ", "Anemia"})
	if len(set.Labels) != 2 {
		t.Fatalf("len(Labels) = %d, want 2", len(set.Labels))
	}
	if set.Kind != KindPredicted {
		t.Errorf("Kind = %s, want predicted", set.Kind)
	}
}

func TestLoadSynonyms(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "synonyms.yaml")

	content := `
groups:
  - canonical: Demand Ischemia
    terms:
      - Type 2 NSTEMI
      - type 2 mi
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write synonyms file: %v", err)
	}

	table, err := LoadSynonyms(path)
	if err != nil {
		t.Fatalf("LoadSynonyms() error = %v", err)
	}

	if table.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", table.Len())
	}

	// Terms are folded on load.
	canonical, ok := table.Canonical("type 2 nstemi")
	if !ok || canonical != "demand ischemia" {
		t.Errorf("Canonical(type 2 nstemi) = %q, %v; want demand ischemia, true", canonical, ok)
	}
}

func TestSynonymTable_ShareGroup(t *testing.T) {
	table := DefaultSynonyms()

	tests := []struct {
		a, b string
		want bool
	}{
		{"acute on chronic diastolic heart failure", "chf", true},
		{"sepsis due to pneumonia", "urosepsis", true},
		{"stage 3 pressure ulcer of sacrum", "decubitus ulcer", true},
		{"cardiogenic shock", "respiratory failure", false},
		{"hyperkalemia", "hypokalemia", false},
	}

	for _, tt := range tests {
		if got := table.ShareGroup(Fold(tt.a), Fold(tt.b)); got != tt.want {
			t.Errorf("ShareGroup(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
