// Package llm parses diary entries with an OpenAI-compatible chat model.
// It is the slow path of the pipeline and only runs when the heuristics
// are not confident enough.
package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kaptinlin/jsonrepair"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/hrygo/diarysense/nlp"
)

// Parser extracts actions from text with a language model. Failures never
// propagate as errors: a failed parse is an empty result carrying the
// failure in Errors, and the pipeline degrades to the heuristic output.
type Parser interface {
	Parse(ctx context.Context, text string) nlp.LLMParseResult
}

// Config holds the OpenAI parser settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32

	Timeout       time.Duration // per attempt, default 10s
	MaxRetries    int           // total attempts, default 3
	RatePerMinute int           // 0 disables the limiter
	MaxConcurrent int64         // 0 disables the semaphore
}

// OpenAIParser calls a chat completion endpoint in JSON-object mode.
type OpenAIParser struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	maxRetries  int

	limiter *rate.Limiter
	sem     *semaphore.Weighted
}

// NewOpenAIParser builds a parser from config. Zero values get the
// defaults the service ships with.
func NewOpenAIParser(cfg Config) *OpenAIParser {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = newHTTPClient()

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	p := &OpenAIParser{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
		maxRetries:  maxRetries,
	}
	if cfg.RatePerMinute > 0 {
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), cfg.RatePerMinute)
	}
	if cfg.MaxConcurrent > 0 {
		p.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	return p
}

// Parse runs the model over text and returns the extracted actions.
func (p *OpenAIParser) Parse(ctx context.Context, text string) nlp.LLMParseResult {
	start := time.Now()

	fail := func(err error) nlp.LLMParseResult {
		slog.Warn("llm parse failed", "model", p.model, "error", err)
		return nlp.LLMParseResult{
			ParseResult: nlp.ParseResult{
				LatencyMs: time.Since(start).Milliseconds(),
				Errors:    []string{"LLM parsing failed: " + err.Error()},
			},
			ModelName: p.model,
		}
	}

	if p.sem != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return fail(errors.Wrap(err, "acquire llm slot"))
		}
		defer p.sem.Release(1)
	}
	if p.limiter != nil && !p.limiter.Allow() {
		return fail(errors.New("llm rate limit exceeded"))
	}

	content, usage, err := p.completeWithRetry(ctx, text)
	if err != nil {
		return fail(err)
	}

	actions, err := decodeActions(content)
	if err != nil {
		return fail(err)
	}

	result := nlp.LLMParseResult{
		ParseResult: nlp.ParseResult{
			Actions:    actions,
			Confidence: nlp.MeanConfidence(actions),
			LatencyMs:  time.Since(start).Milliseconds(),
		},
		ModelName:  p.model,
		TokensUsed: usage.TotalTokens,
	}

	slog.Debug("llm parse ok",
		"model", p.model,
		"actions", len(actions),
		"tokens", usage.TotalTokens,
		"latency_ms", result.LatencyMs,
	)
	return result
}

// completeWithRetry performs the chat completion with exponential backoff
// on transient failures. Client-side errors abort immediately.
func (p *OpenAIParser) completeWithRetry(ctx context.Context, text string) (string, openai.Usage, error) {
	var content string
	var usage openai.Usage

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.Multiplier = 2
	policy.MaxInterval = 2 * time.Second

	attempt := 0
	op := func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		req := openai.ChatCompletionRequest{
			Model:       p.model,
			MaxTokens:   p.maxTokens,
			Temperature: p.temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(text)},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		}

		resp, err := p.client.CreateChatCompletion(attemptCtx, req)
		if err != nil {
			if !isTransient(err) {
				return backoff.Permanent(err)
			}
			slog.Debug("llm attempt failed", "attempt", attempt, "error", err)
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("empty response from LLM")
		}

		content = resp.Choices[0].Message.Content
		usage = resp.Usage
		return nil
	}

	wrapped := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(p.maxRetries-1)), ctx)
	if err := backoff.Retry(op, wrapped); err != nil {
		return "", openai.Usage{}, err
	}
	return content, usage, nil
}

// isTransient reports whether an error is worth retrying. Timeouts,
// network faults, 429 and 5xx responses are; other API errors are not.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// llmAction mirrors the JSON schema the prompt demands.
type llmAction struct {
	Category             string  `json:"category"`
	Subcategory          *string `json:"subcategory"`
	Action               string  `json:"action"`
	Type                 string  `json:"type"`
	EstimatedTimeMinutes int     `json:"estimated_time_minutes"`
	Confidence           float64 `json:"confidence"`
	AchievementWeight    *int    `json:"achievement_weight"`
}

type llmResponse struct {
	Actions []llmAction `json:"actions"`
}

// decodeActions parses the model output, repairing slightly malformed
// JSON once before giving up. Unknown action types degrade to activity,
// confidences are clamped, negative weights are schema violations.
func decodeActions(content string) ([]nlp.RawAction, error) {
	var resp llmResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(content)
		if repairErr != nil {
			return nil, errors.Wrap(err, "invalid LLM response format")
		}
		if err := json.Unmarshal([]byte(repaired), &resp); err != nil {
			return nil, errors.Wrap(err, "invalid LLM response format")
		}
	}

	actions := make([]nlp.RawAction, 0, len(resp.Actions))
	for _, a := range resp.Actions {
		if strings.TrimSpace(a.Category) == "" || strings.TrimSpace(a.Action) == "" {
			return nil, errors.New("invalid LLM response format: missing category or action")
		}
		if a.AchievementWeight != nil && *a.AchievementWeight < 0 {
			return nil, errors.New("invalid LLM response format: negative achievement_weight")
		}
		actionType := nlp.ActionType(a.Type)
		if actionType != nlp.ActionTypeActivity && actionType != nlp.ActionTypeAchievement {
			actionType = nlp.ActionTypeActivity
		}
		minutes := a.EstimatedTimeMinutes
		actions = append(actions, nlp.RawAction{
			Category:             a.Category,
			Subcategory:          a.Subcategory,
			Action:               a.Action,
			Type:                 actionType,
			EstimatedTimeMinutes: &minutes,
			Confidence:           nlp.ClampConfidence(a.Confidence),
			AchievementWeight:    a.AchievementWeight,
			Source:               nlp.SourceLLM,
		})
	}
	return actions, nil
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
