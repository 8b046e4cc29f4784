package evaluation

import (
	"time"

	"github.com/clindocs/cdi-eval/internal/dataset"
	"github.com/clindocs/cdi-eval/internal/match"
	"github.com/clindocs/cdi-eval/internal/metrics"
)

// Outcome is the disposition of one case.
type Outcome string

const (
	OutcomeEvaluated    Outcome = "evaluated"
	OutcomeNotEvaluable Outcome = "not_evaluable"
	OutcomeFailed       Outcome = "failed"
)

// CaseResult is the full evaluation record for one case.
type CaseResult struct {
	CaseID    string       `json:"case_id"`
	Category  string       `json:"category,omitempty"`
	Outcome   Outcome      `json:"outcome"`
	Gold      []string     `json:"gold,omitempty"`
	Predicted []string     `json:"predicted,omitempty"`
	Match     match.Result `json:"match,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Counts returns the confusion counts this case contributed.
func (r CaseResult) Counts() metrics.Counts {
	return metrics.Counts{
		TP: len(r.Match.Pairs),
		FN: len(r.Match.MissedGold),
		FP: len(r.Match.Unmatched),
	}
}

// RunReport is the output of a batch run.
type RunReport struct {
	Summary  metrics.Summary    `json:"summary"`
	Results  []CaseResult       `json:"results"`
	Load     dataset.LoadReport `json:"load,omitempty"`
	Started  time.Time          `json:"started"`
	Duration time.Duration      `json:"duration"`
}

// CaseCompletedPayload is published on eval.case.completed.
type CaseCompletedPayload struct {
	CaseID   string         `json:"case_id"`
	Category string         `json:"category,omitempty"`
	Outcome  Outcome        `json:"outcome"`
	Counts   metrics.Counts `json:"counts"`
}

// CaseFailedPayload is published on eval.case.failed.
type CaseFailedPayload struct {
	CaseID string `json:"case_id"`
	Reason string `json:"reason"`
}

// BatchCompletedPayload is published on eval.batch.completed.
type BatchCompletedPayload struct {
	Cases     metrics.CaseCounts `json:"cases"`
	Recall    float64            `json:"recall"`
	Precision float64            `json:"precision"`
	F1        float64            `json:"f1"`
	Duration  string             `json:"duration"`
}
