// Package evaluation runs cases end to end: extract gold labels, obtain
// predictions, pair them, and aggregate the counts into a report.
package evaluation

import (
	"context"

	"github.com/clindocs/cdi-eval/internal/dataset"
	"github.com/clindocs/cdi-eval/internal/extract"
	"github.com/clindocs/cdi-eval/internal/match"
	"github.com/clindocs/cdi-eval/internal/normalize"
	apperrors "github.com/clindocs/cdi-eval/internal/pkg/errors"
	"github.com/clindocs/cdi-eval/internal/pkg/logger"
)

// Predictor obtains raw diagnosis predictions for a case.
type Predictor interface {
	Predict(ctx context.Context, c dataset.Case) ([]string, error)
}

// Evaluator scores a single case.
type Evaluator struct {
	extractor  *extract.Extractor
	normalizer *normalize.Normalizer
	predictor  Predictor
	matcher    *match.Matcher
	log        *logger.Logger
}

// NewEvaluator wires the pipeline stages together.
func NewEvaluator(ex *extract.Extractor, n *normalize.Normalizer, p Predictor, m *match.Matcher, log *logger.Logger) *Evaluator {
	if log == nil {
		log = logger.Default()
	}
	return &Evaluator{extractor: ex, normalizer: n, predictor: p, matcher: m, log: log}
}

// EvaluateCase runs one case through the full pipeline. It never returns an
// error: every failure mode is a disposition recorded on the result, so a
// bad case cannot abort a batch.
func (e *Evaluator) EvaluateCase(ctx context.Context, c dataset.Case) CaseResult {
	res := CaseResult{CaseID: c.ID, Category: c.Category}
	log := e.log.WithCase(c.ID)

	mentions, err := e.extractor.ExtractCase(c.ID, c.QueryText, c.Narrative)
	if err != nil {
		if apperrors.IsNoExtractableDiagnosis(err) {
			res.Outcome = OutcomeNotEvaluable
			log.Debug("case has no extractable gold diagnosis")
			return res
		}
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		log.WithError(err).Warn("gold extraction failed")
		return res
	}

	raws := make([]string, len(mentions))
	for i, m := range mentions {
		raws[i] = m.Raw
	}
	res.Gold = raws

	gold := e.normalizer.LabelAll(c.ID, normalize.KindGold, raws)
	for i := range gold.Labels {
		// Gold labels inherit the category the case was filed under.
		gold.Labels[i].Category = c.Category
	}

	predictions, err := e.predictor.Predict(ctx, c)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		log.WithError(err).Warn("prediction failed")
		return res
	}
	res.Predicted = predictions

	pred := e.normalizer.LabelAll(c.ID, normalize.KindPredicted, predictions)
	for i := range pred.Labels {
		// Metrics bucket by the case's category on both sides, so a
		// false positive counts against the case it was predicted for.
		pred.Labels[i].Category = c.Category
	}

	res.Match = e.matcher.Match(ctx, gold, pred)
	res.Outcome = OutcomeEvaluated
	return res
}
