// Package predict obtains missing-diagnosis predictions from an external
// model service.
package predict

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/clindocs/cdi-eval/internal/cache"
	"github.com/clindocs/cdi-eval/internal/config"
	"github.com/clindocs/cdi-eval/internal/dataset"
	apperrors "github.com/clindocs/cdi-eval/internal/pkg/errors"
	"github.com/clindocs/cdi-eval/internal/pkg/hash"
	"github.com/clindocs/cdi-eval/internal/pkg/logger"
)

// Predictor calls the model service and returns raw diagnosis strings.
type Predictor struct {
	client  *openai.Client
	cfg     config.PredictionConfig
	limiter *rate.Limiter
	cache   cache.Cache
	log     *logger.Logger

	// sleep is indirected for tests.
	sleep func(context.Context, time.Duration) error
}

// New builds a Predictor. A nil cache disables caching.
func New(cfg config.PredictionConfig, c cache.Cache, log *logger.Logger) (*Predictor, error) {
	if cfg.APIKey == "" {
		return nil, apperrors.ValidationError("prediction API key is required")
	}
	if log == nil {
		log = logger.Default()
	}
	if c == nil {
		c = cache.Nop{}
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60), 1)
	}

	return &Predictor{
		client:  openai.NewClientWithConfig(clientConfig),
		cfg:     cfg,
		limiter: limiter,
		cache:   c,
		log:     log,
		sleep:   sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Predict returns the diagnoses the model believes the case narrative
// supports but does not document. Responses are cached by model and
// narrative content, so re-runs and resumed runs skip paid calls.
func (p *Predictor) Predict(ctx context.Context, c dataset.Case) ([]string, error) {
	if c.Narrative == "" {
		return nil, apperrors.EmptyInputError("predictor")
	}

	key := hash.NarrativeKey(p.cfg.Model, c.Narrative)
	if cached, ok, err := p.cache.Get(ctx, key); err != nil {
		p.log.WithCase(c.ID).WithError(err).Warn("prediction cache read failed")
	} else if ok {
		var out []string
		if err := json.Unmarshal([]byte(cached), &out); err == nil {
			return p.finish(out, c), nil
		}
		p.log.WithCase(c.ID).Warn("dropping undecodable cache entry")
	}

	content, err := p.complete(ctx, c)
	if err != nil {
		return nil, err
	}

	out, err := ParseResponse(content)
	if err != nil {
		return nil, err
	}

	if encoded, merr := json.Marshal(out); merr == nil {
		if err := p.cache.Set(ctx, key, string(encoded)); err != nil {
			p.log.WithCase(c.ID).WithError(err).Warn("prediction cache write failed")
		}
	}
	return p.finish(out, c), nil
}

func (p *Predictor) finish(predictions []string, c dataset.Case) []string {
	if p.cfg.FilterDocumented {
		return FilterDocumented(predictions, c.Narrative)
	}
	return predictions
}

// complete performs the chat call with bounded retries. Rate limits and
// server errors back off exponentially; anything else fails immediately.
func (p *Predictor) complete(ctx context.Context, c dataset.Case) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: p.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(c.Narrative)},
		},
		Temperature: 0,
	}

	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt)+1) * time.Second
			p.log.WithCase(c.ID).Warn("retrying prediction call",
				"attempt", attempt, "delay", delay, "error", lastErr)
			if err := p.sleep(ctx, delay); err != nil {
				return "", apperrors.TimeoutError("prediction call")
			}
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return "", apperrors.TimeoutError("prediction rate limit wait")
		}

		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = err
			if retryable(err) {
				continue
			}
			return "", apperrors.ServiceUnavailableError("prediction service").WithDetail("cause", err.Error())
		}
		if len(resp.Choices) == 0 {
			return "", apperrors.PredictionInvalidError("response has no choices", nil)
		}
		return resp.Choices[0].Message.Content, nil
	}

	return "", apperrors.Wrap(apperrors.CodeUnavailable, "prediction retries exhausted", lastErr)
}

// retryable reports whether an API error is transient: rate limiting,
// server-side failure, or a transport error.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	// Transport-level failures arrive as url.Error values.
	return !errors.Is(err, context.Canceled)
}
