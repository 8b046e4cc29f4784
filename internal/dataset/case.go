// Package dataset loads evaluation cases from warehouse CSV exports.
package dataset

import (
	"strings"
	"time"
)

// Case is one discharge narrative with its documentation-clarification
// query.
type Case struct {
	ID            string    `json:"id"`
	Narrative     string    `json:"narrative"`
	QueryText     string    `json:"query_text"`
	Category      string    `json:"category,omitempty"`
	DischargeDate time.Time `json:"discharge_date,omitempty"`
	QueryDate     time.Time `json:"query_date,omitempty"`
}

// QueryOffsetDays is the number of days between discharge and the query
// being raised, or 0 when either date is missing.
func (c Case) QueryOffsetDays() int {
	if c.DischargeDate.IsZero() || c.QueryDate.IsZero() {
		return 0
	}
	return int(c.QueryDate.Sub(c.DischargeDate).Hours() / 24)
}

// Date layouts seen across the export generations.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"1/2/2006",
	"01/02/2006",
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
