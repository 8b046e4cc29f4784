// Package metrics aggregates match results into recall, precision, and F1,
// overall and per diagnosis category.
package metrics

import (
	"sort"

	"github.com/clindocs/cdi-eval/internal/match"
)

// Uncategorized collects false positives whose predicted label carries no
// category. Only predictions can land here: gold labels always have the
// category their case was stratified under.
const Uncategorized = "uncategorized"

// Counts are the raw confusion counts for one category.
type Counts struct {
	TP int `json:"tp"`
	FN int `json:"fn"`
	FP int `json:"fp"`
}

// Recall is TP / (TP + FN), or 0 when the category has no gold labels.
func (c Counts) Recall() float64 {
	if c.TP+c.FN == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FN)
}

// Precision is TP / (TP + FP), or 0 when nothing was predicted.
func (c Counts) Precision() float64 {
	if c.TP+c.FP == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FP)
}

// F1 is the harmonic mean of recall and precision, or 0 when both are 0.
func (c Counts) F1() float64 {
	r, p := c.Recall(), c.Precision()
	if r+p == 0 {
		return 0
	}
	return 2 * r * p / (r + p)
}

func (c *Counts) add(o Counts) {
	c.TP += o.TP
	c.FN += o.FN
	c.FP += o.FP
}

// CategoryMetrics is the reported view of one category.
type CategoryMetrics struct {
	Category  string  `json:"category"`
	Counts    Counts  `json:"counts"`
	Recall    float64 `json:"recall"`
	Precision float64 `json:"precision"`
	F1        float64 `json:"f1"`
}

// CaseCounts tallies case dispositions.
type CaseCounts struct {
	Evaluated    int `json:"evaluated"`
	NotEvaluable int `json:"not_evaluable"`
	Failed       int `json:"failed"`
}

// Total is every case the run touched, whatever its disposition.
func (c CaseCounts) Total() int {
	return c.Evaluated + c.NotEvaluable + c.Failed
}

// Summary is a full aggregation snapshot.
type Summary struct {
	Overall    CategoryMetrics   `json:"overall"`
	Categories []CategoryMetrics `json:"categories"`
	Cases      CaseCounts        `json:"cases"`
}

// Aggregator accumulates match results. It is not safe for concurrent use;
// run one per worker and Merge at the end.
type Aggregator struct {
	byCategory map[string]*Counts
	overall    Counts
	cases      CaseCounts
}

func NewAggregator() *Aggregator {
	return &Aggregator{byCategory: make(map[string]*Counts)}
}

func (a *Aggregator) category(name string) *Counts {
	if name == "" {
		name = Uncategorized
	}
	c, ok := a.byCategory[name]
	if !ok {
		c = &Counts{}
		a.byCategory[name] = c
	}
	return c
}

// Observe folds one evaluated case into the running counts. Matched pairs
// count as true positives under the gold label's category, missed gold
// labels as false negatives, and unmatched predictions as false positives
// under the predicted label's category.
func (a *Aggregator) Observe(res match.Result) {
	a.cases.Evaluated++

	for _, p := range res.Pairs {
		a.category(p.Gold.Category).TP++
		a.overall.TP++
	}
	for _, g := range res.MissedGold {
		a.category(g.Category).FN++
		a.overall.FN++
	}
	for _, p := range res.Unmatched {
		a.category(p.Category).FP++
		a.overall.FP++
	}
}

// ObserveNotEvaluable records a case with no extractable gold diagnosis.
// It contributes to case counts only, never to the confusion counts.
func (a *Aggregator) ObserveNotEvaluable() {
	a.cases.NotEvaluable++
}

// ObserveFailed records a case whose prediction could not be obtained.
func (a *Aggregator) ObserveFailed() {
	a.cases.Failed++
}

// Merge folds another aggregator into this one. Merge is commutative and
// associative, so sharded workers can combine in any order.
func (a *Aggregator) Merge(o *Aggregator) {
	for name, c := range o.byCategory {
		a.category(name).add(*c)
	}
	a.overall.add(o.overall)
	a.cases.Evaluated += o.cases.Evaluated
	a.cases.NotEvaluable += o.cases.NotEvaluable
	a.cases.Failed += o.cases.Failed
}

func view(name string, c Counts) CategoryMetrics {
	return CategoryMetrics{
		Category:  name,
		Counts:    c,
		Recall:    c.Recall(),
		Precision: c.Precision(),
		F1:        c.F1(),
	}
}

// Summary snapshots the current counts. Categories are sorted by name.
func (a *Aggregator) Summary() Summary {
	cats := make([]CategoryMetrics, 0, len(a.byCategory))
	for name, c := range a.byCategory {
		cats = append(cats, view(name, *c))
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Category < cats[j].Category })

	return Summary{
		Overall:    view("overall", a.overall),
		Categories: cats,
		Cases:      a.cases,
	}
}
