package evaluation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clindocs/cdi-eval/internal/bus"
	"github.com/clindocs/cdi-eval/internal/dataset"
	"github.com/clindocs/cdi-eval/internal/metrics"
	"github.com/clindocs/cdi-eval/internal/pkg/logger"
)

const eventSource = "cdi-eval"

// RunnerConfig controls batch execution.
type RunnerConfig struct {
	// Workers is the number of cases evaluated concurrently.
	Workers int
	// CheckpointFile persists completed results for resume. Empty disables
	// checkpointing.
	CheckpointFile string
	// CheckpointEvery saves the checkpoint after this many completions.
	CheckpointEvery int
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = 10
	}
	return c
}

// Runner evaluates a batch of cases concurrently.
type Runner struct {
	eval *Evaluator
	cfg  RunnerConfig
	bus  bus.Bus
	log  *logger.Logger
}

// NewRunner builds a Runner. A nil bus disables event publishing.
func NewRunner(eval *Evaluator, cfg RunnerConfig, b bus.Bus, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Default()
	}
	return &Runner{eval: eval, cfg: cfg.withDefaults(), bus: b, log: log}
}

// Run evaluates every case and aggregates the results. Previously completed
// cases found in the checkpoint are reused without re-evaluation, so an
// interrupted run resumes where it stopped. The returned report lists
// results in case-ID order regardless of completion order.
func (r *Runner) Run(ctx context.Context, cases []dataset.Case) (*RunReport, error) {
	started := time.Now()

	cp, err := LoadCheckpoint(r.cfg.CheckpointFile)
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint: %w", err)
	}
	if n := len(cp.Results); n > 0 {
		r.log.Info("resuming from checkpoint", "completed", n)
	}

	var (
		mu        sync.Mutex
		completed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for _, c := range cases {
		if _, done := cp.Results[c.ID]; done {
			continue
		}
		c := c

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res := r.eval.EvaluateCase(gctx, c)
			r.publishCase(gctx, res)

			mu.Lock()
			cp.Results[c.ID] = res
			completed++
			save := completed%r.cfg.CheckpointEvery == 0
			if save {
				if err := cp.Save(r.cfg.CheckpointFile); err != nil {
					r.log.WithError(err).Warn("checkpoint save failed")
				}
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// Save whatever finished before the cancellation.
		if serr := cp.Save(r.cfg.CheckpointFile); serr != nil {
			r.log.WithError(serr).Warn("checkpoint save failed")
		}
		return nil, err
	}
	if err := cp.Save(r.cfg.CheckpointFile); err != nil {
		r.log.WithError(err).Warn("checkpoint save failed")
	}

	report := r.buildReport(cases, cp, started)
	r.publishBatch(ctx, report)
	return report, nil
}

func (r *Runner) buildReport(cases []dataset.Case, cp *Checkpoint, started time.Time) *RunReport {
	agg := metrics.NewAggregator()
	results := make([]CaseResult, 0, len(cases))

	for _, c := range cases {
		res, ok := cp.Results[c.ID]
		if !ok {
			continue
		}
		results = append(results, res)
		switch res.Outcome {
		case OutcomeEvaluated:
			agg.Observe(res.Match)
		case OutcomeNotEvaluable:
			agg.ObserveNotEvaluable()
		case OutcomeFailed:
			agg.ObserveFailed()
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].CaseID < results[j].CaseID })

	return &RunReport{
		Summary:  agg.Summary(),
		Results:  results,
		Started:  started,
		Duration: time.Since(started),
	}
}

func (r *Runner) publishCase(ctx context.Context, res CaseResult) {
	if r.bus == nil {
		return
	}

	event := bus.NewEvent(bus.TopicCaseCompleted, eventSource, CaseCompletedPayload{
		CaseID:   res.CaseID,
		Category: res.Category,
		Outcome:  res.Outcome,
		Counts:   res.Counts(),
	})
	if err := r.bus.Publish(ctx, bus.TopicCaseCompleted, event); err != nil {
		r.log.WithError(err).Warn("failed to publish case event")
	}

	if res.Outcome == OutcomeFailed {
		failed := bus.NewEvent(bus.TopicCaseFailed, eventSource, CaseFailedPayload{
			CaseID: res.CaseID,
			Reason: res.Error,
		})
		if err := r.bus.Publish(ctx, bus.TopicCaseFailed, failed); err != nil {
			r.log.WithError(err).Warn("failed to publish failure event")
		}
	}
}

func (r *Runner) publishBatch(ctx context.Context, report *RunReport) {
	if r.bus == nil {
		return
	}

	event := bus.NewEvent(bus.TopicBatchCompleted, eventSource, BatchCompletedPayload{
		Cases:     report.Summary.Cases,
		Recall:    report.Summary.Overall.Recall,
		Precision: report.Summary.Overall.Precision,
		F1:        report.Summary.Overall.F1,
		Duration:  report.Duration.String(),
	})
	if err := r.bus.Publish(ctx, bus.TopicBatchCompleted, event); err != nil {
		r.log.WithError(err).Warn("failed to publish batch event")
	}
}
