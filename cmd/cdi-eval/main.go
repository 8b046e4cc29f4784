// Package main provides the cdi-eval binary: parse, split, and evaluate
// clinical documentation integrity query datasets.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clindocs/cdi-eval/internal/bus"
	"github.com/clindocs/cdi-eval/internal/cache"
	"github.com/clindocs/cdi-eval/internal/config"
	"github.com/clindocs/cdi-eval/internal/dataset"
	"github.com/clindocs/cdi-eval/internal/evaluation"
	"github.com/clindocs/cdi-eval/internal/extract"
	"github.com/clindocs/cdi-eval/internal/judge"
	"github.com/clindocs/cdi-eval/internal/match"
	"github.com/clindocs/cdi-eval/internal/normalize"
	apperrors "github.com/clindocs/cdi-eval/internal/pkg/errors"
	"github.com/clindocs/cdi-eval/internal/pkg/logger"
	"github.com/clindocs/cdi-eval/internal/predict"
	"github.com/clindocs/cdi-eval/internal/split"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cdi-eval",
		Short: "CDI Eval - clinical documentation query evaluation",
		Long: `CDI Eval scores diagnosis predictions against the gold labels embedded in
physician clarification queries.

Run 'cdi-eval parse' to inspect gold-label extraction without calling a model.
Run 'cdi-eval evaluate' to run the full prediction and matching pipeline.
Run 'cdi-eval split' to produce a stratified train/validation/test split.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("format", "text", "output format (text, json)")

	rootCmd.AddCommand(
		parseCmd(),
		evaluateCmd(),
		splitCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return cfg, logger.New(level, cfg.Log.Format), nil
}

func loadSynonyms(cfg *config.Config) (*normalize.SynonymTable, error) {
	if cfg.Match.SynonymsFile == "" {
		return normalize.DefaultSynonyms(), nil
	}
	return normalize.LoadSynonyms(cfg.Match.SynonymsFile)
}

func loadCases(log *logger.Logger, path string) ([]dataset.Case, dataset.LoadReport, error) {
	cases, lr, err := dataset.NewLoader(log).Load(path)
	if err != nil {
		return nil, lr, err
	}
	log.Info("dataset loaded",
		"cases", lr.Loaded,
		"repaired", lr.Repaired,
		"malformed", lr.Malformed,
	)
	return cases, lr, nil
}

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <cases.csv>",
		Short: "Extract gold labels without calling a model",
		Long: `Parse runs gold-label extraction over every case and reports what the
evaluator would score against. Use it to vet a dataset before spending
model calls on it.

With --output it also writes a cleaned CSV: repaired rows, inferred
categories, and the extracted gold labels, loadable by the other
subcommands.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")

			cases, _, err := loadCases(log, args[0])
			if err != nil {
				return err
			}

			ex := extract.NewExtractor(extract.Config{
				AllSections:   cfg.Extract.AllSections,
				MinMentionLen: cfg.Extract.MinMentionLen,
			})

			type parsed struct {
				CaseID   string   `json:"case_id"`
				Category string   `json:"category,omitempty"`
				Gold     []string `json:"gold,omitempty"`
				Skipped  string   `json:"skipped,omitempty"`
			}

			var out []parsed
			var evaluable int
			for _, c := range cases {
				p := parsed{CaseID: c.ID, Category: c.Category}
				mentions, err := ex.ExtractCase(c.ID, c.QueryText, c.Narrative)
				switch {
				case apperrors.IsNoExtractableDiagnosis(err):
					p.Skipped = "no extractable diagnosis"
				case err != nil:
					p.Skipped = err.Error()
				default:
					for _, m := range mentions {
						p.Gold = append(p.Gold, m.Raw)
					}
					evaluable++
				}
				out = append(out, p)
			}

			if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
				gold := make(map[string][]string, len(out))
				for _, p := range out {
					gold[p.CaseID] = p.Gold
				}
				if err := writeCleanedCSV(outPath, cases, gold); err != nil {
					return err
				}
				log.Info("cleaned dataset written", "path", outPath, "cases", len(cases))
			}

			if format == "json" {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			for _, p := range out {
				if p.Skipped != "" {
					fmt.Printf("%s\tskipped: %s\n", p.CaseID, p.Skipped)
					continue
				}
				for _, g := range p.Gold {
					fmt.Printf("%s\t%s\n", p.CaseID, g)
				}
			}
			fmt.Printf("\n%d/%d cases evaluable\n", evaluable, len(cases))
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "write a cleaned CSV of the repaired cases")

	return cmd
}

// writeCleanedCSV emits the repaired cases under the loader's canonical
// column names, plus the extracted gold labels, so the output round-trips
// through the other subcommands.
func writeCleanedCSV(path string, cases []dataset.Case, gold map[string][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"id", "narrative", "query", "category", "discharge_date", "query_date", "gold"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, c := range cases {
		row := []string{
			c.ID,
			c.Narrative,
			c.QueryText,
			c.Category,
			formatDate(c.DischargeDate),
			formatDate(c.QueryDate),
			strings.Join(gold[c.ID], "; "),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <cases.csv>",
		Short: "Run the full prediction and matching pipeline",
		Long: `Evaluate obtains model predictions for every case, pairs them against
extracted gold labels, and writes summary.json, results.csv, and
discoveries.csv into the output directory.

An interrupted run resumes from the checkpoint file on the next invocation.`,
		Args: cobra.ExactArgs(1),
		RunE: runEvaluate,
	}

	cmd.Flags().StringP("output", "o", "", "output directory (overrides config)")
	cmd.Flags().String("checkpoint", "", "checkpoint file (overrides config)")
	cmd.Flags().Int("workers", 0, "concurrent cases (overrides config)")
	cmd.Flags().Bool("judge", false, "enable the semantic equivalence judge")
	cmd.Flags().String("journal", "", "append published events to this JSONL file")

	return cmd
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		cfg.Eval.OutputDir = out
	}
	if cp, _ := cmd.Flags().GetString("checkpoint"); cp != "" {
		cfg.Eval.CheckpointFile = cp
	}
	if w, _ := cmd.Flags().GetInt("workers"); w > 0 {
		cfg.Eval.Workers = w
	}
	if on, _ := cmd.Flags().GetBool("judge"); on {
		cfg.Judge.Enabled = true
	}
	journalPath, _ := cmd.Flags().GetString("journal")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cases, lr, err := loadCases(log, args[0])
	if err != nil {
		return err
	}

	table, err := loadSynonyms(cfg)
	if err != nil {
		return err
	}

	resultCache, err := cache.New(cfg.Cache)
	if err != nil {
		return err
	}

	eventBus, err := bus.NewBus(cfg.Bus)
	if err != nil {
		return err
	}
	defer eventBus.Close()

	if journalPath != "" {
		journal, err := bus.NewEventJournal(journalPath, true)
		if err != nil {
			return err
		}
		// JournaledBus.Close closes the journal with the inner bus.
		eventBus = bus.NewJournaledBus(eventBus, journal, log)
	}

	predictor, err := predict.New(cfg.Prediction, resultCache, log)
	if err != nil {
		return err
	}

	matcher := match.New(match.Config{Threshold: cfg.Match.Threshold}, table, log)
	var hybrid *judge.Hybrid
	if cfg.Judge.Enabled {
		hybrid, err = judge.New(judge.Options{
			Model:   cfg.Judge.Model,
			APIKey:  cfg.Prediction.APIKey,
			BaseURL: cfg.Prediction.BaseURL,
			Timeout: cfg.Judge.Timeout,
		}, table, resultCache, log)
		if err != nil {
			return err
		}
		matcher = matcher.WithJudge(hybrid)
	}

	evaluator := evaluation.NewEvaluator(
		extract.NewExtractor(extract.Config{
			AllSections:   cfg.Extract.AllSections,
			MinMentionLen: cfg.Extract.MinMentionLen,
		}),
		normalize.New(table),
		predictor,
		matcher,
		log,
	)
	runner := evaluation.NewRunner(evaluator, evaluation.RunnerConfig{
		Workers:         cfg.Eval.Workers,
		CheckpointFile:  cfg.Eval.CheckpointFile,
		CheckpointEvery: cfg.Eval.CheckpointEvery,
	}, eventBus, log)

	report, err := runner.Run(ctx, cases)
	if err != nil {
		return err
	}
	report.Load = lr

	if err := evaluation.WriteReport(report, cfg.Eval.OutputDir); err != nil {
		return err
	}
	if hybrid != nil {
		stats := hybrid.Stats()
		log.Info("judge stats",
			"rule_hits", stats.RuleHits,
			"cache_hits", stats.CacheHits,
			"llm_calls", stats.LLMCalls,
			"errors", stats.Errors,
		)
	}

	printSummary(report, cfg.Eval.OutputDir)
	return nil
}

func printSummary(report *evaluation.RunReport, outputDir string) {
	s := report.Summary
	fmt.Printf("cases: %d evaluated, %d not evaluable, %d failed\n",
		s.Cases.Evaluated, s.Cases.NotEvaluable, s.Cases.Failed)
	fmt.Printf("overall: recall %.3f  precision %.3f  f1 %.3f\n",
		s.Overall.Recall, s.Overall.Precision, s.Overall.F1)
	for _, cat := range s.Categories {
		fmt.Printf("  %-28s recall %.3f  precision %.3f  f1 %.3f\n",
			cat.Category, cat.Recall, cat.Precision, cat.F1)
	}
	fmt.Printf("artifacts written to %s\n", outputDir)
}

func splitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split <cases.csv>",
		Short: "Produce a stratified train/validation/test split",
		Long: `Split partitions the dataset by category so every split preserves the
category distribution. The same seed over the same cases always yields
the same assignment.`,
		Args: cobra.ExactArgs(1),
		RunE: runSplit,
	}

	cmd.Flags().StringP("output", "o", "splits.json", "assignment output file")
	cmd.Flags().Int64("seed", 0, "shuffle seed (overrides config)")

	return cmd
}

func runSplit(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	outPath, _ := cmd.Flags().GetString("output")
	if seed, _ := cmd.Flags().GetInt64("seed"); seed != 0 {
		cfg.Split.Seed = seed
	}

	cases, _, err := loadCases(log, args[0])
	if err != nil {
		return err
	}

	items := make([]split.Item, len(cases))
	for i, c := range cases {
		items[i] = split.Item{ID: c.ID, Category: c.Category}
	}

	fractions := split.Fractions{
		Train: cfg.Split.Train,
		Val:   cfg.Split.Validation,
		Test:  cfg.Split.Test,
	}
	splitFn := split.Split
	if cfg.Split.RequireAllSplits {
		splitFn = split.SplitStrict
	}
	assignment, err := splitFn(items, fractions, cfg.Split.Seed)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(assignment, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return err
	}

	eventBus, err := bus.NewBus(cfg.Bus)
	if err != nil {
		return err
	}
	defer eventBus.Close()
	event := bus.NewEvent(bus.TopicSplitCompleted, "cdi-eval", map[string]int{
		"train":      len(assignment.Train),
		"validation": len(assignment.Val),
		"test":       len(assignment.Test),
	})
	if err := eventBus.Publish(context.Background(), bus.TopicSplitCompleted, event); err != nil {
		log.WithError(err).Warn("failed to publish split event")
	}

	fmt.Printf("train %d, validation %d, test %d -> %s\n",
		len(assignment.Train), len(assignment.Val), len(assignment.Test), outPath)
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cdi-eval %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}
