// Package split partitions cases into train, validation, and test sets,
// stratified by diagnosis category.
package split

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	apperrors "github.com/clindocs/cdi-eval/internal/pkg/errors"
)

// Item is the minimal view of a case the splitter needs.
type Item struct {
	ID       string
	Category string
}

// Fractions are the target proportions. They must be non-negative and sum
// to 1.
type Fractions struct {
	Train float64
	Val   float64
	Test  float64
}

func (f Fractions) slice() [3]float64 { return [3]float64{f.Train, f.Val, f.Test} }

func (f Fractions) nonzero() int {
	n := 0
	for _, v := range f.slice() {
		if v > 0 {
			n++
		}
	}
	return n
}

// Validate checks the fractions are a proper partition.
func (f Fractions) Validate() error {
	sum := 0.0
	for _, v := range f.slice() {
		if v < 0 {
			return apperrors.ValidationError(fmt.Sprintf("split fraction must be non-negative, got %v", v))
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		return apperrors.ValidationError(fmt.Sprintf("split fractions must sum to 1, got %v", sum))
	}
	if f.nonzero() == 0 {
		return apperrors.ValidationError("at least one split fraction must be positive")
	}
	return nil
}

// Assignment is the result of one split, preserving per-split shuffle order.
type Assignment struct {
	Train []Item `json:"train"`
	Val   []Item `json:"val"`
	Test  []Item `json:"test"`
}

// Split stratifies items by category and assigns each stratum to the three
// sets with largest-remainder apportionment, so every per-category count is
// within one of its exact target. The same seed over the same items always
// produces the same assignment regardless of input order.
//
// A stratum with fewer items than positive fractions fills the larger
// splits first and leaves the rest empty.
func Split(items []Item, f Fractions, seed int64) (Assignment, error) {
	return split(items, f, seed, false)
}

// SplitStrict is Split with a minimum-coverage guarantee: every category
// must place at least one item in every positive split, and a category too
// small for that returns an InsufficientCategorySize error.
func SplitStrict(items []Item, f Fractions, seed int64) (Assignment, error) {
	return split(items, f, seed, true)
}

func split(items []Item, f Fractions, seed int64, strict bool) (Assignment, error) {
	if err := f.Validate(); err != nil {
		return Assignment{}, err
	}
	if len(items) == 0 {
		return Assignment{}, apperrors.EmptyInputError("splitter")
	}

	strata := make(map[string][]Item)
	for _, it := range items {
		strata[it.Category] = append(strata[it.Category], it)
	}

	categories := make([]string, 0, len(strata))
	for c := range strata {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	if strict {
		need := f.nonzero()
		for _, c := range categories {
			if len(strata[c]) < need {
				return Assignment{}, apperrors.InsufficientCategorySizeError(c, len(strata[c]), need)
			}
		}
	}

	rng := rand.New(rand.NewSource(seed))
	var out Assignment
	for _, c := range categories {
		stratum := strata[c]
		// Canonical order before shuffling makes the result a function
		// of (items, seed) alone.
		sort.Slice(stratum, func(i, j int) bool { return stratum[i].ID < stratum[j].ID })
		rng.Shuffle(len(stratum), func(i, j int) {
			stratum[i], stratum[j] = stratum[j], stratum[i]
		})

		counts := apportion(len(stratum), f)
		out.Train = append(out.Train, stratum[:counts[0]]...)
		out.Val = append(out.Val, stratum[counts[0]:counts[0]+counts[1]]...)
		out.Test = append(out.Test, stratum[counts[0]+counts[1]:]...)
	}
	return out, nil
}

// apportion distributes size across the three fractions by largest
// remainder, then guarantees every positive fraction at least one item.
func apportion(size int, f Fractions) [3]int {
	fracs := f.slice()
	var counts [3]int
	var remainders [3]float64
	assigned := 0
	for i, v := range fracs {
		exact := float64(size) * v
		counts[i] = int(math.Floor(exact))
		remainders[i] = exact - float64(counts[i])
		assigned += counts[i]
	}

	for assigned < size {
		best := -1
		for i := range fracs {
			if fracs[i] == 0 {
				continue
			}
			if best == -1 || remainders[i] > remainders[best] {
				best = i
			}
		}
		counts[best]++
		remainders[best] = -1
		assigned++
	}

	// A positive fraction may still round to zero in a small stratum.
	// With fewer items than positive fractions the guarantee is
	// impossible, so the largest-remainder result stands.
	if size < f.nonzero() {
		return counts
	}
	for i, v := range fracs {
		if v > 0 && counts[i] == 0 {
			donor := 0
			for j := range counts {
				if counts[j] > counts[donor] {
					donor = j
				}
			}
			counts[donor]--
			counts[i]++
		}
	}
	return counts
}
