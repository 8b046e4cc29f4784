package predict

import (
	"strings"

	"github.com/clindocs/cdi-eval/internal/extract"
	"github.com/clindocs/cdi-eval/internal/normalize"
)

// FilterDocumented removes predictions the narrative already documents in
// its diagnosis sections. A prediction that extends a documented diagnosis
// with more detail ("acute hypoxic respiratory failure" over "respiratory
// failure") is a specificity upgrade and is kept: querying for it is exactly
// what a documentation specialist would do.
func FilterDocumented(predictions []string, narrative string) []string {
	documented := extract.DocumentedDiagnoses(narrative)
	if len(documented) == 0 {
		return predictions
	}

	folded := make([]string, len(documented))
	for i, d := range documented {
		folded[i] = normalize.Fold(d)
	}

	var kept []string
	for _, p := range predictions {
		fp := normalize.Fold(p)
		if fp == "" {
			continue
		}
		restated := false
		for _, fd := range folded {
			if fd == "" {
				continue
			}
			if fp == fd {
				restated = true
				break
			}
			// Documented text subsumes the prediction: the note already
			// says at least as much.
			if phraseContains(fd, fp) {
				restated = true
				break
			}
		}
		if !restated {
			kept = append(kept, p)
		}
	}
	return kept
}

// phraseContains reports whether haystack contains needle as a whole
// phrase.
func phraseContains(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}
