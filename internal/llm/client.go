// Package llm wraps the OpenAI chat-completion API behind the narrow
// single-shot interface the rest of the system consumes. The model receives
// only the text it is given; no tools, no retrieval.
package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Config holds OpenAI-compatible API parameters.
type Config struct {
	APIKey      string
	BaseURL     string // empty for api.openai.com
	Model       string
	Temperature float32
	MaxTokens   int
	// RequestsPerMinute throttles outbound calls across all goroutines.
	// Zero disables throttling.
	RequestsPerMinute int
	// MaxRetries bounds transparent retries of transient API errors.
	MaxRetries int
}

// Client is a rate-limited, retrying chat-completion client.
type Client struct {
	api        *openai.Client
	model      string
	temp       float32
	maxTokens  int
	maxRetries int
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// New creates a Client from cfg.
func New(cfg Config, logger *slog.Logger) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 2
	}

	return &Client{
		api:        openai.NewClientWithConfig(apiCfg),
		model:      cfg.Model,
		temp:       cfg.Temperature,
		maxTokens:  cfg.MaxTokens,
		maxRetries: retries,
		limiter:    limiter,
		logger:     logger.With(slog.String("component", "llm")),
	}
}

// Complete sends one system+user prompt pair and returns the raw completion
// text. Transient API failures are retried with exponential backoff; the
// caller's context bounds the whole attempt including retries.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("llm: rate limit wait: %w", err)
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temp,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	var content string
	attempt := 0
	op := func() error {
		attempt++
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			c.logger.Warn("chat completion failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty choices")
		}
		content = resp.Choices[0].Message.Content
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)),
		ctx,
	)
	if err := backoff.Retry(op, bo); err != nil {
		return "", fmt.Errorf("llm: complete: %w", err)
	}

	c.logger.Debug("chat completion ok", slog.Int("attempts", attempt))
	return content, nil
}
