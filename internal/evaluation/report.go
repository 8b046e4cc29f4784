package evaluation

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// WriteReport writes the run artifacts into dir: summary.json with the
// aggregate metrics, results.csv with one row per case, and discoveries.csv
// listing unmatched predictions worth a second look.
func WriteReport(report *RunReport, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	if err := writeSummary(report, filepath.Join(dir, "summary.json")); err != nil {
		return err
	}
	if err := writeResults(report.Results, filepath.Join(dir, "results.csv")); err != nil {
		return err
	}
	return writeDiscoveries(report.Results, filepath.Join(dir, "discoveries.csv"))
}

func writeSummary(report *RunReport, path string) error {
	data, err := json.MarshalIndent(report.Summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}

func writeResults(results []CaseResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"case_id", "category", "outcome", "gold", "predicted", "tp", "fn", "fp", "recall", "error"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing results header: %w", err)
	}
	for _, r := range results {
		counts := r.Counts()
		row := []string{
			r.CaseID,
			r.Category,
			string(r.Outcome),
			strings.Join(r.Gold, "; "),
			strings.Join(r.Predicted, "; "),
			strconv.Itoa(counts.TP),
			strconv.Itoa(counts.FN),
			strconv.Itoa(counts.FP),
			strconv.FormatFloat(counts.Recall(), 'f', 3, 64),
			r.Error,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing result row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// writeDiscoveries lists predictions that matched no gold label. These are
// either model noise or conditions the physician query never asked about,
// which makes them candidates for chart review.
func writeDiscoveries(results []CaseResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing discoveries: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"case_id", "category", "prediction"}); err != nil {
		return fmt.Errorf("writing discoveries header: %w", err)
	}
	for _, r := range results {
		if r.Outcome != OutcomeEvaluated {
			continue
		}
		for _, p := range r.Match.Unmatched {
			if err := w.Write([]string{r.CaseID, p.Category, p.Canonical}); err != nil {
				return fmt.Errorf("writing discovery row: %w", err)
			}
		}
	}
	w.Flush()
	return w.Error()
}
