package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clindocs/cdi-eval/internal/cache"
	"github.com/clindocs/cdi-eval/internal/normalize"
	apperrors "github.com/clindocs/cdi-eval/internal/pkg/errors"
)

func answer(w http.ResponseWriter, content string) {
	resp := map[string]any{
		"id":     "resp-1",
		"object": "chat.completion",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func newTestJudge(t *testing.T, handler http.HandlerFunc) *Hybrid {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	h, err := New(Options{APIKey: "test-key", BaseURL: srv.URL + "/v1"},
		normalize.DefaultSynonyms(), cache.NewMemory(10), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h
}

func TestHybrid_RulesSettleWithoutModel(t *testing.T) {
	h := newTestJudge(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no model call expected for rule-settled pairs")
	})

	tests := []struct {
		a, b string
	}{
		{"sepsis", "sepsis"},
		{"Sepsis", "sepsis."},
		{"CHF", "congestive heart failure"},
		{"acute kidney injury", "AKI"},
	}
	for _, tt := range tests {
		ok, err := h.Equivalent(context.Background(), tt.a, tt.b)
		if err != nil {
			t.Fatalf("Equivalent(%q, %q) error = %v", tt.a, tt.b, err)
		}
		if !ok {
			t.Errorf("Equivalent(%q, %q) = false, want true", tt.a, tt.b)
		}
	}

	stats := h.Stats()
	if stats.RuleHits != len(tests) || stats.LLMCalls != 0 {
		t.Errorf("stats = %+v, want %d rule hits and no model calls", stats, len(tests))
	}
}

func TestHybrid_BlankSides(t *testing.T) {
	h := newTestJudge(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no model call expected for blank input")
	})
	if ok, err := h.Equivalent(context.Background(), "  ", "sepsis"); ok || err != nil {
		t.Errorf("Equivalent(blank) = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestHybrid_ModelVerdictCached(t *testing.T) {
	calls := 0
	h := newTestJudge(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		answer(w, "Yes")
	})

	ctx := context.Background()
	ok, err := h.Equivalent(ctx, "demand ischemia", "type two myocardial injury")
	if err != nil {
		t.Fatalf("Equivalent() error = %v", err)
	}
	if !ok {
		t.Error("Equivalent() = false, want true")
	}

	// Same pair in the opposite order hits the cache.
	ok, err = h.Equivalent(ctx, "type two myocardial injury", "demand ischemia")
	if err != nil {
		t.Fatalf("Equivalent() error = %v", err)
	}
	if !ok {
		t.Error("cached Equivalent() = false, want true")
	}

	if calls != 1 {
		t.Errorf("model calls = %d, want 1", calls)
	}
	stats := h.Stats()
	if stats.LLMCalls != 1 || stats.CacheHits != 1 {
		t.Errorf("stats = %+v, want one model call and one cache hit", stats)
	}
}

func TestHybrid_ModelSaysNo(t *testing.T) {
	h := newTestJudge(t, func(w http.ResponseWriter, r *http.Request) {
		answer(w, "no")
	})

	ok, err := h.Equivalent(context.Background(), "cellulitis", "osteomyelitis")
	if err != nil {
		t.Fatalf("Equivalent() error = %v", err)
	}
	if ok {
		t.Error("Equivalent() = true, want false")
	}
}

func TestHybrid_ModelFailure(t *testing.T) {
	h := newTestJudge(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := h.Equivalent(context.Background(), "cellulitis", "osteomyelitis")
	if !apperrors.IsCode(err, apperrors.CodeUnavailable) {
		t.Errorf("error = %v, want ServiceUnavailable", err)
	}
	if h.Stats().Errors != 1 {
		t.Errorf("stats = %+v, want one error", h.Stats())
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(Options{}, nil, nil, nil); !apperrors.IsValidation(err) {
		t.Errorf("error = %v, want Validation", err)
	}
}
