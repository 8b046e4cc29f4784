// Package judge decides semantic equivalence of diagnosis pairs, using
// lexical rules first and a model only for pairs the rules cannot settle.
package judge

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/clindocs/cdi-eval/internal/cache"
	"github.com/clindocs/cdi-eval/internal/normalize"
	apperrors "github.com/clindocs/cdi-eval/internal/pkg/errors"
	"github.com/clindocs/cdi-eval/internal/pkg/hash"
	"github.com/clindocs/cdi-eval/internal/pkg/logger"
)

const systemPrompt = `You decide whether two clinical diagnosis phrases name the same condition.
Answer with exactly one word: yes or no.`

// Options configures a Hybrid judge.
type Options struct {
	Model   string
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Stats counts how verdicts were reached.
type Stats struct {
	RuleHits  int `json:"rule_hits"`
	CacheHits int `json:"cache_hits"`
	LLMCalls  int `json:"llm_calls"`
	Errors    int `json:"errors"`
}

// Hybrid answers equivalence queries. Rules are free and deterministic, so
// they run first; only unsettled pairs cost a model call, and those verdicts
// are cached by pair.
type Hybrid struct {
	table  *normalize.SynonymTable
	client *openai.Client
	model  string
	cache  cache.Cache
	log    *logger.Logger

	mu    sync.Mutex
	stats Stats
}

// New builds a Hybrid judge. A nil cache disables verdict caching.
func New(opts Options, table *normalize.SynonymTable, c cache.Cache, log *logger.Logger) (*Hybrid, error) {
	if opts.APIKey == "" {
		return nil, apperrors.ValidationError("judge API key is required")
	}
	if opts.Model == "" {
		opts.Model = "gpt-5-nano"
	}
	if log == nil {
		log = logger.Default()
	}
	if c == nil {
		c = cache.Nop{}
	}

	clientConfig := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		clientConfig.BaseURL = opts.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: opts.Timeout}

	return &Hybrid{
		table:  table,
		client: openai.NewClientWithConfig(clientConfig),
		model:  opts.Model,
		cache:  c,
		log:    log,
	}, nil
}

// Equivalent reports whether a and b name the same condition. Both sides
// are canonicalized before any comparison, so callers may pass raw text.
func (h *Hybrid) Equivalent(ctx context.Context, a, b string) (bool, error) {
	fa, fb := normalize.Fold(a), normalize.Fold(b)
	if fa == "" || fb == "" {
		return false, nil
	}

	if fa == fb || (h.table != nil && h.table.ShareGroup(fa, fb)) {
		h.bump(func(s *Stats) { s.RuleHits++ })
		return true, nil
	}

	// Equivalence is symmetric; one key covers both orders.
	if fb < fa {
		fa, fb = fb, fa
	}
	key := "judge:" + hash.PairKey(fa, fb)

	if v, ok, err := h.cache.Get(ctx, key); err != nil {
		h.log.WithError(err).Warn("judge cache read failed")
	} else if ok {
		h.bump(func(s *Stats) { s.CacheHits++ })
		return v == "yes", nil
	}

	verdict, err := h.ask(ctx, fa, fb)
	if err != nil {
		h.bump(func(s *Stats) { s.Errors++ })
		return false, err
	}

	value := "no"
	if verdict {
		value = "yes"
	}
	if err := h.cache.Set(ctx, key, value); err != nil {
		h.log.WithError(err).Warn("judge cache write failed")
	}
	return verdict, nil
}

func (h *Hybrid) ask(ctx context.Context, a, b string) (bool, error) {
	h.bump(func(s *Stats) { s.LLMCalls++ })

	resp, err := h.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: h.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Phrase A: " + a + "\nPhrase B: " + b},
		},
		Temperature: 0,
	})
	if err != nil {
		return false, apperrors.ServiceUnavailableError("judge service").WithDetail("cause", err.Error())
	}
	if len(resp.Choices) == 0 {
		return false, apperrors.InternalError("judge response has no choices", nil)
	}

	answer := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
	return strings.HasPrefix(answer, "yes"), nil
}

func (h *Hybrid) bump(f func(*Stats)) {
	h.mu.Lock()
	f(&h.stats)
	h.mu.Unlock()
}

// Stats returns a snapshot of verdict counters.
func (h *Hybrid) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}
