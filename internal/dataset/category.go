package dataset

import "strings"

// categoryKeywords maps a query category to phrases that identify it.
// Checked in order so more specific categories win over generic ones.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"pressure injury", []string{"pressure ulcer", "pressure injury", "decubitus", "wocn"}},
	{"malnutrition", []string{"malnutrition", "protein calorie", "cachexia"}},
	{"sepsis", []string{"sepsis", "septic", "bacteremia"}},
	{"heart failure", []string{"heart failure", "chf", "cardiomyopathy", "systolic dysfunction", "diastolic dysfunction"}},
	{"respiratory failure", []string{"respiratory failure", "hypoxic", "hypercapnic", "ventilator"}},
	{"acute kidney injury", []string{"kidney injury", "renal failure", "aki", "atn"}},
	{"anemia", []string{"anemia", "blood loss"}},
	{"encephalopathy", []string{"encephalopathy", "altered mental status"}},
	{"demand ischemia", []string{"demand ischemia", "troponin", "nstemi type 2", "type 2 mi"}},
	{"electrolyte derangement", []string{"hyponatremia", "hypernatremia", "hypokalemia", "hyperkalemia"}},
}

// Categorize infers the diagnosis category a query is about from its text.
// Returns "" when no keyword matches; metrics report those under an
// uncategorized bucket.
func Categorize(queryText string) string {
	lower := strings.ToLower(queryText)
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.category
			}
		}
	}
	return ""
}
