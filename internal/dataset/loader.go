package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"regexp"
	"strings"

	apperrors "github.com/clindocs/cdi-eval/internal/pkg/errors"
	"github.com/clindocs/cdi-eval/internal/pkg/logger"
)

// LoadReport accounts for every row in an export file.
type LoadReport struct {
	Loaded    int `json:"loaded"`
	Repaired  int `json:"repaired"`
	Malformed int `json:"malformed"`
}

// Column aliases across export generations, keyed by canonical name.
var columnAliases = map[string][]string{
	"id":             {"id", "case_id", "encounter_id"},
	"narrative":      {"narrative", "discharge_summary", "note_text"},
	"query":          {"query", "query_text", "clarification_query"},
	"category":       {"category", "query_category"},
	"discharge_date": {"discharge_date", "dc_date"},
	"query_date":     {"query_date", "query_sent_date"},
}

// rowStartRe matches the beginning of a logical row: a case identifier
// containing at least one digit, then the field separator. Continuation
// fragments from broken rows start with prose and fail this test.
var rowStartRe = regexp.MustCompile(`^\s*"?[A-Za-z_.-]*\d[A-Za-z0-9_.-]*"?\s*,`)

// Loader reads cases from CSV exports.
type Loader struct {
	log *logger.Logger
}

func NewLoader(log *logger.Logger) *Loader {
	if log == nil {
		log = logger.Default()
	}
	return &Loader{log: log}
}

// Load reads the export file at path.
func (l *Loader) Load(path string) ([]Case, LoadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadReport{}, apperrors.InternalError("open export file", err)
	}
	defer f.Close()
	return l.Read(f)
}

// Read parses a CSV export. The warehouse occasionally emits narrative text
// with raw newlines outside quotes, which splits one logical row across
// several lines. Lines that do not start with a case identifier are folded
// back into the row above before parsing; fragments with no row to attach
// to are counted as malformed and dropped.
func (l *Loader) Read(r io.Reader) ([]Case, LoadReport, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, LoadReport{}, apperrors.InternalError("read export file", err)
	}

	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, LoadReport{}, apperrors.ValidationError("export file has no header row")
	}

	header, err := parseRecord(lines[0])
	if err != nil {
		return nil, LoadReport{}, apperrors.ValidationError("export file header is not valid CSV")
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, LoadReport{}, err
	}

	rows, mendedRows, report := l.repair(lines[1:])

	var cases []Case
	for i, row := range rows {
		rec, err := parseRecord(row)
		if err != nil {
			report.Malformed++
			l.log.WithError(err).Warn("skipping unparseable row")
			continue
		}
		rec = collapseOverflow(rec, len(header), cols["narrative"])
		if len(rec) < len(header) {
			report.Malformed++
			l.log.Warn("skipping short row", "fields", len(rec), "want", len(header))
			continue
		}

		c, ok := l.buildCase(cols, rec)
		if !ok {
			report.Malformed++
			continue
		}
		cases = append(cases, c)
		report.Loaded++
		if mendedRows[i] {
			report.Repaired++
		}
	}

	if len(cases) == 0 {
		return nil, report, apperrors.EmptyInputError("dataset loader")
	}
	return cases, report, nil
}

// repair merges continuation lines into the row above. It returns the
// logical rows, a parallel mended flag per row, and a report carrying any
// orphan fragments seen before the first real row. Lines inside an open
// quoted field are ordinary multiline CSV, merged without counting as a
// repair.
func (l *Loader) repair(lines []string) ([]string, []bool, LoadReport) {
	var (
		rows    []string
		mended  []bool
		report  LoadReport
		inQuote bool
	)
	for _, line := range lines {
		if !inQuote && strings.TrimSpace(line) == "" {
			continue
		}
		switch {
		case !inQuote && rowStartRe.MatchString(line):
			rows = append(rows, line)
			mended = append(mended, false)
		case len(rows) == 0:
			report.Malformed++
			l.log.Warn("dropping orphan continuation line")
		default:
			last := len(rows) - 1
			if inQuote {
				rows[last] += "\n" + line
			} else {
				// An unquoted field cannot hold a newline, so the
				// mend joins with a space instead.
				rows[last] += " " + line
				mended[last] = true
			}
		}
		if strings.Count(line, `"`)%2 == 1 {
			inQuote = !inQuote
		}
	}
	return rows, mended, report
}

// parseRecord parses a single logical row. Quoted fields may span the
// newlines the repair pass re-joined.
func parseRecord(row string) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(row))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.Read()
}

// collapseOverflow re-joins surplus fields caused by unquoted commas in the
// narrative: the extra fields are folded back into the narrative column so
// the trailing columns line up again.
func collapseOverflow(rec []string, want, narrIdx int) []string {
	extra := len(rec) - want
	if extra <= 0 || narrIdx < 0 || narrIdx >= len(rec) {
		return rec
	}
	merged := strings.Join(rec[narrIdx:narrIdx+extra+1], ",")
	out := make([]string, 0, want)
	out = append(out, rec[:narrIdx]...)
	out = append(out, merged)
	out = append(out, rec[narrIdx+extra+1:]...)
	return out
}

func mapColumns(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}

	cols := make(map[string]int)
	for canonical, aliases := range columnAliases {
		cols[canonical] = -1
		for _, a := range aliases {
			if i, ok := index[a]; ok {
				cols[canonical] = i
				break
			}
		}
	}
	for _, required := range []string{"id", "narrative", "query"} {
		if cols[required] == -1 {
			return nil, apperrors.ValidationError("export file missing required column: " + required)
		}
	}
	return cols, nil
}

func (l *Loader) buildCase(cols map[string]int, rec []string) (Case, bool) {
	field := func(name string) string {
		i := cols[name]
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	c := Case{
		ID:            field("id"),
		Narrative:     field("narrative"),
		QueryText:     field("query"),
		Category:      field("category"),
		DischargeDate: parseDate(field("discharge_date")),
		QueryDate:     parseDate(field("query_date")),
	}
	if c.ID == "" || (c.Narrative == "" && c.QueryText == "") {
		l.log.Warn("dropping malformed row", "case_id", c.ID)
		return Case{}, false
	}
	if c.Category == "" {
		c.Category = Categorize(c.QueryText)
	}
	return c, true
}
