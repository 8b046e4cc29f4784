// Package match pairs gold diagnosis labels with predicted labels and scores
// how alike two labels are.
package match

import (
	"sort"
	"strings"

	"github.com/clindocs/cdi-eval/internal/normalize"
)

// Score bands for the non-tokenized signals. Exact outranks synonym
// equivalence, which outranks containment, so the greedy pass prefers the
// stronger evidence when one label could pair with several.
const (
	scoreExact       = 1.0
	scoreSynonym     = 0.95
	scoreContainment = 0.9
)

// stopWords are tokens that carry no diagnostic identity. Severity and
// acuity modifiers are included so "acute kidney injury" and "kidney injury"
// overlap fully.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "with": {}, "without": {},
	"and": {}, "or": {}, "in": {}, "on": {}, "to": {}, "for": {},
	"due": {}, "by": {}, "at": {}, "from": {}, "secondary": {},
	"acute": {}, "chronic": {}, "severe": {}, "mild": {}, "moderate": {},
	"unspecified": {}, "disease": {}, "disorder": {}, "syndrome": {},
	"history": {},
}

// ruledOutPhrases mark a label that records absence rather than presence.
var ruledOutPhrases = []string{"ruled out", "rule out", "r o"}

func ruledOut(canonical string) bool {
	padded := " " + canonical + " "
	for _, p := range ruledOutPhrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}

func contentTokens(canonical string) []string {
	fields := strings.Fields(canonical)
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; !stop {
			out = append(out, f)
		}
	}
	return out
}

// tokenOverlap is the Jaccard index over stop-word-filtered tokens.
func tokenOverlap(a, b string) float64 {
	ta, tb := contentTokens(a), contentTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(ta))
	for _, t := range ta {
		set[t] = struct{}{}
	}

	inter := 0
	seen := make(map[string]struct{}, len(tb))
	for _, t := range tb {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			inter++
		}
	}
	union := len(set) + len(seen) - inter
	return float64(inter) / float64(union)
}

// Score rates the similarity of two canonical labels in [0, 1]. A "ruled
// out" phrase on exactly one side forces zero: a declined diagnosis must
// never pair with an asserted one, whatever the surface overlap.
func (m *Matcher) Score(gold, pred string) float64 {
	if gold == "" || pred == "" {
		return 0
	}
	if ruledOut(gold) != ruledOut(pred) {
		return 0
	}
	if gold == pred {
		return scoreExact
	}
	if m.table != nil && m.table.ShareGroup(gold, pred) {
		return scoreSynonym
	}
	if containment(gold, pred) {
		return scoreContainment
	}
	return tokenOverlap(gold, pred)
}

// containment reports whether one label subsumes the other as a whole
// phrase. Tiny labels are excluded so "flu" inside "fluid overload" does not
// count.
func containment(a, b string) bool {
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) < 4 {
		return false
	}
	return strings.Contains(" "+longer+" ", " "+shorter+" ")
}

func sortLabels(labels []normalize.Label) {
	sort.Slice(labels, func(i, j int) bool {
		return labels[i].Canonical < labels[j].Canonical
	})
}
