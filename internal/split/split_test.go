package split

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	apperrors "github.com/clindocs/cdi-eval/internal/pkg/errors"
)

func buildItems(perCategory map[string]int) []Item {
	var items []Item
	for cat, n := range perCategory {
		for i := 0; i < n; i++ {
			items = append(items, Item{ID: fmt.Sprintf("%s-%03d", cat, i), Category: cat})
		}
	}
	return items
}

func defaultFractions() Fractions {
	return Fractions{Train: 0.8, Val: 0.1, Test: 0.1}
}

func TestSplit_Proportions(t *testing.T) {
	perCategory := map[string]int{
		"sepsis":              137,
		"malnutrition":        103,
		"heart failure":       96,
		"acute kidney injury": 88,
		"anemia":              76,
	}
	items := buildItems(perCategory)
	if len(items) != 500 {
		t.Fatalf("test fixture has %d items, want 500", len(items))
	}

	a, err := Split(items, defaultFractions(), 42)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	if got := len(a.Train) + len(a.Val) + len(a.Test); got != 500 {
		t.Fatalf("assignment covers %d items, want 500", got)
	}

	count := func(set []Item, cat string) int {
		n := 0
		for _, it := range set {
			if it.Category == cat {
				n++
			}
		}
		return n
	}

	// Each per-category count must be within one of its exact target.
	for cat, size := range perCategory {
		checks := []struct {
			name string
			set  []Item
			frac float64
		}{
			{"train", a.Train, 0.8},
			{"val", a.Val, 0.1},
			{"test", a.Test, 0.1},
		}
		for _, c := range checks {
			got := count(c.set, cat)
			exact := float64(size) * c.frac
			if math.Abs(float64(got)-exact) >= 1 {
				t.Errorf("category %q %s count = %d, want within 1 of %v", cat, c.name, got, exact)
			}
		}
	}

	// No duplicates across sets.
	seen := make(map[string]string)
	for _, pair := range []struct {
		name string
		set  []Item
	}{{"train", a.Train}, {"val", a.Val}, {"test", a.Test}} {
		for _, it := range pair.set {
			if prev, dup := seen[it.ID]; dup {
				t.Errorf("item %s in both %s and %s", it.ID, prev, pair.name)
			}
			seen[it.ID] = pair.name
		}
	}
}

func TestSplit_SeedReproducible(t *testing.T) {
	items := buildItems(map[string]int{"sepsis": 40, "anemia": 30})

	a1, err := Split(items, defaultFractions(), 42)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	// Same items in a different order, same seed.
	shuffled := make([]Item, len(items))
	copy(shuffled, items)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	a2, err := Split(shuffled, defaultFractions(), 42)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	if len(a1.Train) != len(a2.Train) {
		t.Fatalf("train sizes differ: %d vs %d", len(a1.Train), len(a2.Train))
	}
	for i := range a1.Train {
		if a1.Train[i] != a2.Train[i] {
			t.Fatalf("train[%d] = %v vs %v, want identical assignment", i, a1.Train[i], a2.Train[i])
		}
	}

	// A different seed should move at least one item.
	a3, err := Split(items, defaultFractions(), 43)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	same := len(a3.Train) == len(a1.Train)
	if same {
		for i := range a1.Train {
			if a1.Train[i] != a3.Train[i] {
				same = false
				break
			}
		}
	}
	if same {
		t.Error("seed 42 and 43 produced identical train sets")
	}
}

func TestSplit_SmallCategoryGetsEachSplit(t *testing.T) {
	items := buildItems(map[string]int{"sepsis": 100, "rare": 3})

	a, err := Split(items, defaultFractions(), 1)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	for _, set := range []struct {
		name string
		set  []Item
	}{{"train", a.Train}, {"val", a.Val}, {"test", a.Test}} {
		found := false
		for _, it := range set.set {
			if it.Category == "rare" {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("%s has no item from the rare category", set.name)
		}
	}
}

func TestSplitStrict_InsufficientCategory(t *testing.T) {
	items := buildItems(map[string]int{"sepsis": 100, "rare": 2})

	_, err := SplitStrict(items, defaultFractions(), 1)
	if !apperrors.IsCode(err, apperrors.CodeInsufficientCategorySize) {
		t.Errorf("error = %v, want InsufficientCategorySize", err)
	}
}

func TestSplit_SmallCategoryBestEffort(t *testing.T) {
	items := buildItems(map[string]int{"sepsis": 100, "rare": 2})

	got, err := Split(items, defaultFractions(), 1)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if n := len(got.Train) + len(got.Val) + len(got.Test); n != 102 {
		t.Errorf("assigned = %d, want every item placed", n)
	}
	rareInTrain := 0
	for _, it := range got.Train {
		if it.Category == "rare" {
			rareInTrain++
		}
	}
	// Two items across 0.8/0.1/0.1 land in train by largest remainder.
	if rareInTrain != 2 {
		t.Errorf("rare items in train = %d, want 2", rareInTrain)
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	_, err := Split(nil, defaultFractions(), 1)
	if !apperrors.IsEmptyInput(err) {
		t.Errorf("error = %v, want EmptyInput", err)
	}
}

func TestSplit_InvalidFractions(t *testing.T) {
	items := buildItems(map[string]int{"sepsis": 10})

	tests := []struct {
		name string
		f    Fractions
	}{
		{"sum below one", Fractions{Train: 0.5, Val: 0.1, Test: 0.1}},
		{"negative", Fractions{Train: 1.2, Val: -0.1, Test: -0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Split(items, tt.f, 1); !apperrors.IsValidation(err) {
				t.Errorf("error = %v, want Validation", err)
			}
		})
	}
}

func TestSplit_TwoWay(t *testing.T) {
	items := buildItems(map[string]int{"sepsis": 10, "anemia": 10})

	a, err := Split(items, Fractions{Train: 0.9, Test: 0.1}, 5)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(a.Val) != 0 {
		t.Errorf("val = %d items, want 0 for a zero fraction", len(a.Val))
	}
	if len(a.Train)+len(a.Test) != 20 {
		t.Errorf("train+test = %d, want 20", len(a.Train)+len(a.Test))
	}
	if len(a.Test) == 0 {
		t.Error("test set empty, want at least one item per category share")
	}
}