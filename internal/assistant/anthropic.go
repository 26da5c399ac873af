package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dukerupert/indivisible/internal/model"
)

const (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 1024
)

type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	BaseURL   string
	Timeout   time.Duration
}

// AnthropicCompleter calls the Messages API once per completion. Retries are
// disabled so a failed call surfaces immediately.
type AnthropicCompleter struct {
	client    anthropic.Client
	modelName string
	maxTokens int
}

func NewAnthropicCompleter(cfg AnthropicConfig) *AnthropicCompleter {
	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	} else {
		opts = append(opts, option.WithRequestTimeout(60*time.Second))
	}

	return &AnthropicCompleter{
		client:    anthropic.NewClient(opts...),
		modelName: modelName,
		maxTokens: maxTokens,
	}
}

// Complete returns the first text block of the reply, or "" when the reply
// carries no text.
func (c *AnthropicCompleter) Complete(ctx context.Context, system string, turns []Turn) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.modelName),
		MaxTokens: int64(c.maxTokens),
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages:  make([]anthropic.MessageParam, 0, len(turns)),
	}
	for _, t := range turns {
		block := anthropic.NewTextBlock(t.Content)
		if t.Role == model.RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", classifyError(err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", nil
}

// classifyError maps SDK failures onto ErrCompletion with a short reason.
func classifyError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: authentication failed: %v", ErrCompletion, err)
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: rate limited: %v", ErrCompletion, err)
		case apiErr.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: model not found: %v", ErrCompletion, err)
		case apiErr.StatusCode >= 500:
			return fmt.Errorf("%w: upstream error %d: %v", ErrCompletion, apiErr.StatusCode, err)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "context length", "too many tokens", "prompt is too long"):
		return fmt.Errorf("%w: context too long: %v", ErrCompletion, err)
	case errors.Is(err, context.DeadlineExceeded) || containsAny(msg, "timeout", "deadline exceeded"):
		return fmt.Errorf("%w: timed out: %v", ErrCompletion, err)
	case containsAny(msg, "connection", "eof", "dial", "refused"):
		return fmt.Errorf("%w: connection error: %v", ErrCompletion, err)
	}
	return fmt.Errorf("%w: %v", ErrCompletion, err)
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
