package predict

import (
	"encoding/json"
	"strings"

	apperrors "github.com/clindocs/cdi-eval/internal/pkg/errors"
)

// unwrapFences strips a markdown code fence around a JSON payload. Models
// often return ```json ... ``` despite being asked for bare JSON.
func unwrapFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// Drop the language tag on the opening fence line.
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// objectPayload covers the field names models use for the diagnosis list.
type objectPayload struct {
	MissedDiagnoses []json.RawMessage `json:"missed_diagnoses"`
	Diagnoses       []json.RawMessage `json:"diagnoses"`
}

type itemPayload struct {
	Diagnosis string `json:"diagnosis"`
	Name      string `json:"name"`
}

// ParseResponse decodes a model response into a list of diagnosis strings.
// Accepted shapes: a JSON array of strings, an array of objects with a
// diagnosis field, or an object wrapping either under "missed_diagnoses" or
// "diagnoses", any of them optionally inside a markdown fence. Anything else
// is a PredictionResponseInvalid error: an unusable response must be counted
// as a failed case, never scored as an empty prediction.
func ParseResponse(content string) ([]string, error) {
	body := unwrapFences(content)
	if body == "" {
		return nil, apperrors.PredictionInvalidError("empty response body", nil)
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		var obj objectPayload
		if err := json.Unmarshal([]byte(body), &obj); err != nil {
			return nil, apperrors.PredictionInvalidError("response is not valid JSON", err)
		}
		items = obj.MissedDiagnoses
		if items == nil {
			items = obj.Diagnoses
		}
		if items == nil {
			return nil, apperrors.PredictionInvalidError("response object has no diagnosis list", nil)
		}
	}

	out := make([]string, 0, len(items))
	for _, raw := range items {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
			continue
		}
		var item itemPayload
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, apperrors.PredictionInvalidError("diagnosis entry is neither string nor object", err)
		}
		name := strings.TrimSpace(item.Diagnosis)
		if name == "" {
			name = strings.TrimSpace(item.Name)
		}
		if name == "" {
			return nil, apperrors.PredictionInvalidError("diagnosis entry has no name", nil)
		}
		out = append(out, name)
	}
	return out, nil
}
