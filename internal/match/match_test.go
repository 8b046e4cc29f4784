package match

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/clindocs/cdi-eval/internal/normalize"
)

func mkSet(caseID string, kind normalize.SetKind, names ...string) normalize.LabelSet {
	labels := make([]normalize.Label, len(names))
	for i, n := range names {
		labels[i] = normalize.Label{Canonical: n}
	}
	return normalize.NewLabelSet(caseID, kind, labels)
}

func TestMatcher_Score(t *testing.T) {
	m := New(Config{}, normalize.DefaultSynonyms(), nil)

	tests := []struct {
		name string
		gold string
		pred string
		want float64
	}{
		{"exact", "sepsis", "sepsis", 1.0},
		{"synonym group", "congestive heart failure", "heart failure", scoreSynonym},
		{"ruled out one side", "sepsis ruled out", "sepsis", 0},
		{"r o abbreviation", "r o sepsis", "sepsis", 0},
		{"ruled out both sides", "sepsis ruled out", "sepsis ruled out", 1.0},
		{"full token overlap", "community acquired pneumonia", "pneumonia community acquired", 1.0},
		{"weak token overlap", "hypertensive emergency", "hypertension emergency", 1.0 / 3.0},
		{"no overlap", "pneumonia", "cellulitis", 0},
		{"empty side", "", "sepsis", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Score(tt.gold, tt.pred)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Score(%q, %q) = %v, want %v", tt.gold, tt.pred, got, tt.want)
			}
		})
	}
}

func TestMatcher_Score_Containment(t *testing.T) {
	// Nil table isolates the containment signal from synonym groups.
	m := New(Config{}, nil, nil)

	if got := m.Score("acute on chronic heart failure", "heart failure"); got != scoreContainment {
		t.Errorf("Score() = %v, want %v", got, scoreContainment)
	}
	// Substrings that are not whole phrases do not count.
	if got := m.Score("flu", "fluid overload"); got != 0 {
		t.Errorf("Score() = %v, want 0", got)
	}
}

func TestMatcher_Match_OneToOne(t *testing.T) {
	m := New(Config{}, normalize.DefaultSynonyms(), nil)

	gold := mkSet("c1", normalize.KindGold, "heart failure", "severe malnutrition")
	pred := mkSet("c1", normalize.KindPredicted, "heart failure", "heart failure exacerbation", "cellulitis")

	res := m.Match(context.Background(), gold, pred)

	if len(res.Pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(res.Pairs))
	}
	p := res.Pairs[0]
	if p.Gold.Canonical != "heart failure" || p.Predicted.Canonical != "heart failure" || p.Score != 1.0 {
		t.Errorf("pair = %+v, want exact heart failure pair", p)
	}
	if len(res.MissedGold) != 1 || res.MissedGold[0].Canonical != "severe malnutrition" {
		t.Errorf("missed = %v, want [severe malnutrition]", res.MissedGold)
	}
	if len(res.Unmatched) != 2 {
		t.Errorf("unmatched = %v, want 2 predictions", res.Unmatched)
	}
}

func TestMatcher_Match_TieBreak(t *testing.T) {
	m := New(Config{}, nil, nil)

	// Both gold labels overlap the single prediction with the same score.
	// The lexicographically smaller gold label wins the pairing.
	gold := mkSet("c2", normalize.KindGold, "chronic anemia", "acute anemia")
	pred := mkSet("c2", normalize.KindPredicted, "anemia")

	res := m.Match(context.Background(), gold, pred)

	if len(res.Pairs) != 1 || res.Pairs[0].Gold.Canonical != "acute anemia" {
		t.Fatalf("pairs = %+v, want acute anemia paired", res.Pairs)
	}
	if len(res.MissedGold) != 1 || res.MissedGold[0].Canonical != "chronic anemia" {
		t.Errorf("missed = %v, want [chronic anemia]", res.MissedGold)
	}
	if len(res.Unmatched) != 0 {
		t.Errorf("unmatched = %v, want empty", res.Unmatched)
	}
}

func TestMatcher_Match_Partition(t *testing.T) {
	m := New(Config{}, normalize.DefaultSynonyms(), nil)

	gold := mkSet("c3", normalize.KindGold, "sepsis", "acute kidney injury", "anemia", "hyponatremia")
	pred := mkSet("c3", normalize.KindPredicted, "aki", "iron deficiency anemia", "pneumonia")

	res := m.Match(context.Background(), gold, pred)

	if got := len(res.Pairs) + len(res.MissedGold); got != len(gold.Labels) {
		t.Errorf("gold partition covers %d labels, want %d", got, len(gold.Labels))
	}
	if got := len(res.Pairs) + len(res.Unmatched); got != len(pred.Labels) {
		t.Errorf("predicted partition covers %d labels, want %d", got, len(pred.Labels))
	}
}

func TestMatcher_Match_Deterministic(t *testing.T) {
	m := New(Config{}, normalize.DefaultSynonyms(), nil)
	ctx := context.Background()

	gold := []string{"acute anemia", "chronic anemia", "sepsis due to uti", "heart failure"}
	pred := []string{"anemia", "congestive heart failure", "sepsis", "hypothyroidism"}

	base := m.Match(ctx, mkSet("c7", normalize.KindGold, gold...), mkSet("c7", normalize.KindPredicted, pred...))

	again := m.Match(ctx, mkSet("c7", normalize.KindGold, gold...), mkSet("c7", normalize.KindPredicted, pred...))
	if !reflect.DeepEqual(base, again) {
		t.Errorf("repeated Match differs:\n%+v\n%+v", base, again)
	}

	revGold := make([]string, len(gold))
	revPred := make([]string, len(pred))
	for i, g := range gold {
		revGold[len(gold)-1-i] = g
	}
	for i, p := range pred {
		revPred[len(pred)-1-i] = p
	}
	permuted := m.Match(ctx, mkSet("c7", normalize.KindGold, revGold...), mkSet("c7", normalize.KindPredicted, revPred...))
	if !reflect.DeepEqual(base, permuted) {
		t.Errorf("Match depends on input order:\n%+v\n%+v", base, permuted)
	}
}

func TestMatcher_Match_EmptySets(t *testing.T) {
	m := New(Config{}, nil, nil)

	res := m.Match(context.Background(),
		mkSet("c4", normalize.KindGold),
		mkSet("c4", normalize.KindPredicted, "sepsis"))
	if len(res.Pairs) != 0 || len(res.MissedGold) != 0 || len(res.Unmatched) != 1 {
		t.Errorf("result = %+v, want single unmatched prediction", res)
	}

	res = m.Match(context.Background(),
		mkSet("c4", normalize.KindGold, "sepsis"),
		mkSet("c4", normalize.KindPredicted))
	if len(res.Pairs) != 0 || len(res.MissedGold) != 1 || len(res.Unmatched) != 0 {
		t.Errorf("result = %+v, want single missed gold label", res)
	}
}

type fakeJudge struct {
	verdict bool
	err     error
	calls   int
}

func (f *fakeJudge) Equivalent(_ context.Context, _, _ string) (bool, error) {
	f.calls++
	return f.verdict, f.err
}

func TestMatcher_Match_JudgeBand(t *testing.T) {
	// Score for this pair is 0.25: inside [JudgeBandLow, Threshold).
	gold := mkSet("c5", normalize.KindGold, "troponin elevation demand")
	pred := mkSet("c5", normalize.KindPredicted, "demand ischemia")

	t.Run("judge confirms", func(t *testing.T) {
		j := &fakeJudge{verdict: true}
		m := New(Config{}, nil, nil).WithJudge(j)

		res := m.Match(context.Background(), gold, pred)
		if j.calls != 1 {
			t.Errorf("judge calls = %d, want 1", j.calls)
		}
		if len(res.Pairs) != 1 || !res.Pairs[0].ByJudge {
			t.Fatalf("pairs = %+v, want one judge-confirmed pair", res.Pairs)
		}
	})

	t.Run("judge denies", func(t *testing.T) {
		j := &fakeJudge{verdict: false}
		m := New(Config{}, nil, nil).WithJudge(j)

		res := m.Match(context.Background(), gold, pred)
		if len(res.Pairs) != 0 || len(res.MissedGold) != 1 || len(res.Unmatched) != 1 {
			t.Errorf("result = %+v, want no pairs", res)
		}
	})

	t.Run("judge failure falls back to lexical verdict", func(t *testing.T) {
		j := &fakeJudge{err: errors.New("upstream timeout")}
		m := New(Config{}, nil, nil).WithJudge(j)

		res := m.Match(context.Background(), gold, pred)
		if len(res.Pairs) != 0 || len(res.MissedGold) != 1 || len(res.Unmatched) != 1 {
			t.Errorf("result = %+v, want no pairs", res)
		}
	})

	t.Run("judge not consulted above threshold", func(t *testing.T) {
		j := &fakeJudge{verdict: false}
		m := New(Config{}, nil, nil).WithJudge(j)

		m.Match(context.Background(),
			mkSet("c6", normalize.KindGold, "sepsis"),
			mkSet("c6", normalize.KindPredicted, "sepsis"))
		if j.calls != 0 {
			t.Errorf("judge calls = %d, want 0", j.calls)
		}
	})
}
