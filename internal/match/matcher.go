package match

import (
	"context"
	"sort"

	"github.com/clindocs/cdi-eval/internal/normalize"
	"github.com/clindocs/cdi-eval/internal/pkg/logger"
)

// Judge decides whether two labels name the same clinical condition when the
// lexical signals are inconclusive.
type Judge interface {
	Equivalent(ctx context.Context, a, b string) (bool, error)
}

// Config controls pairing behavior.
type Config struct {
	// Threshold is the minimum similarity score for a lexical match.
	Threshold float64
	// JudgeBandLow is the lower edge of the uncertainty band. Candidate
	// pairs scoring in [JudgeBandLow, Threshold) are referred to the
	// judge when one is configured.
	JudgeBandLow float64
}

func (c Config) withDefaults() Config {
	if c.Threshold == 0 {
		c.Threshold = 0.5
	}
	if c.JudgeBandLow == 0 {
		c.JudgeBandLow = 0.2
	}
	return c
}

// Pair is one committed gold/predicted pairing.
type Pair struct {
	Gold      normalize.Label `json:"gold"`
	Predicted normalize.Label `json:"predicted"`
	Score     float64         `json:"score"`
	ByJudge   bool            `json:"by_judge,omitempty"`
}

// Result partitions both label sets. Every gold label lands in exactly one
// of Pairs or MissedGold; every predicted label in exactly one of Pairs or
// Unmatched.
type Result struct {
	CaseID     string            `json:"case_id"`
	Pairs      []Pair            `json:"pairs"`
	MissedGold []normalize.Label `json:"missed_gold"`
	Unmatched  []normalize.Label `json:"unmatched"`
}

// Matcher pairs gold and predicted labels one-to-one.
type Matcher struct {
	cfg   Config
	table *normalize.SynonymTable
	judge Judge
	log   *logger.Logger
}

// New builds a Matcher. table may be nil, in which case synonym equivalence
// contributes nothing to scores.
func New(cfg Config, table *normalize.SynonymTable, log *logger.Logger) *Matcher {
	if log == nil {
		log = logger.Default()
	}
	return &Matcher{cfg: cfg.withDefaults(), table: table, log: log}
}

// WithJudge enables judge consultation for candidate pairs inside the
// uncertainty band.
func (m *Matcher) WithJudge(j Judge) *Matcher {
	m.judge = j
	return m
}

type candidate struct {
	gi, pi  int
	score   float64
	byJudge bool
}

// Match pairs the two sets greedily. Candidates are taken in descending
// score order; equal scores break ties by gold canonical, then predicted
// canonical, so a run is reproducible regardless of input order. A judge
// verdict can only add matches for pairs the lexical score left uncertain,
// and a judge failure degrades that pair to unmatched rather than failing
// the case.
func (m *Matcher) Match(ctx context.Context, gold, pred normalize.LabelSet) Result {
	res := Result{CaseID: gold.CaseID}

	var cands []candidate
	for gi, g := range gold.Labels {
		for pi, p := range pred.Labels {
			score := m.Score(g.Canonical, p.Canonical)
			switch {
			case score >= m.cfg.Threshold:
				cands = append(cands, candidate{gi: gi, pi: pi, score: score})
			case m.judge != nil && score >= m.cfg.JudgeBandLow:
				ok, err := m.judge.Equivalent(ctx, g.Canonical, p.Canonical)
				if err != nil {
					m.log.WithError(err).Warn("judge unavailable, keeping lexical verdict",
						"gold", g.Canonical, "predicted", p.Canonical)
					continue
				}
				if ok {
					cands = append(cands, candidate{gi: gi, pi: pi, score: score, byJudge: true})
				}
			}
		}
	}

	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.score != b.score {
			return a.score > b.score
		}
		ga, gb := gold.Labels[a.gi].Canonical, gold.Labels[b.gi].Canonical
		if ga != gb {
			return ga < gb
		}
		return pred.Labels[a.pi].Canonical < pred.Labels[b.pi].Canonical
	})

	goldUsed := make([]bool, len(gold.Labels))
	predUsed := make([]bool, len(pred.Labels))
	for _, c := range cands {
		if goldUsed[c.gi] || predUsed[c.pi] {
			continue
		}
		goldUsed[c.gi] = true
		predUsed[c.pi] = true
		res.Pairs = append(res.Pairs, Pair{
			Gold:      gold.Labels[c.gi],
			Predicted: pred.Labels[c.pi],
			Score:     c.score,
			ByJudge:   c.byJudge,
		})
	}

	for gi, g := range gold.Labels {
		if !goldUsed[gi] {
			res.MissedGold = append(res.MissedGold, g)
		}
	}
	for pi, p := range pred.Labels {
		if !predUsed[pi] {
			res.Unmatched = append(res.Unmatched, p)
		}
	}
	sortLabels(res.MissedGold)
	sortLabels(res.Unmatched)

	return res
}
