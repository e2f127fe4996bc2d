package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/orbitalhq/orbital/internal/apperrors"
	"github.com/orbitalhq/orbital/internal/resilience"
	"github.com/orbitalhq/orbital/pkg/models"
)

// AnthropicConfig configures an AnthropicClient.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int
	Retry        resilience.Config
}

// AnthropicClient implements Client against Anthropic's Messages API. Graph
// nodes only ever see the Client interface; this is the one concrete
// implementation wired into cmd/orbitalctl by default.
type AnthropicClient struct {
	client       anthropic.Client
	defaultModel string
	maxTokens    int
	retry        resilience.Config
}

// NewAnthropicClient builds an AnthropicClient from config, applying
// defaults for an unset model, token cap and retry policy.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: anthropic API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = resilience.DefaultConfig()
	}

	return &AnthropicClient{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		maxTokens:    cfg.MaxTokens,
		retry:        retry,
	}, nil
}

// Complete sends req as a single non-streaming Messages.New call, retried
// through internal/resilience for transient failures.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Completion, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  convertMessages(req.Messages),
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}

	var completion Completion
	result := resilience.Do(ctx, c.retry, func(opCtx context.Context) error {
		msg, err := c.client.Messages.New(opCtx, params)
		if err != nil {
			return classifyAnthropicError(err)
		}
		completion = toCompletion(msg)
		return nil
	})
	if result.Err != nil {
		return Completion{}, fmt.Errorf("anthropic completion failed after %d attempt(s): %w", result.Attempts, result.Err)
	}
	return completion, nil
}

func convertMessages(messages []models.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case models.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(block))
		case models.RoleUser, models.RoleTool:
			out = append(out, anthropic.NewUserMessage(block))
		default:
			// System messages travel via params.System, not the turn list;
			// a stray one here is folded in as a user turn so it isn't lost.
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func toCompletion(msg *anthropic.Message) Completion {
	var text strings.Builder
	for _, block := range msg.Content {
		if b := block.AsAny(); b != nil {
			if textBlock, ok := b.(anthropic.TextBlock); ok {
				text.WriteString(textBlock.Text)
			}
		}
	}
	return Completion{
		Text:         text.String(),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}
}

// classifyAnthropicError wraps rate-limit and server errors as retryable so
// internal/resilience's default predicate picks them up.
func classifyAnthropicError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "timeout") {
		return &apperrors.RetryableError{Cause: err}
	}
	return err
}
