package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is the Claude model used when none is configured.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

// Anthropic sends prompts through the Anthropic Messages API.
type Anthropic struct {
	client *anthropic.Client
	model  string
}

// NewAnthropic creates an Anthropic adapter. SDK-level retries are disabled;
// retrying is decided by the caller from the classified error.
func NewAnthropic(cfg Config) *Anthropic {
	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Anthropic{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (a *Anthropic) Name() string { return ProviderAnthropic }

// Complete sends one non-streamed Messages request.
func (a *Anthropic) Complete(ctx context.Context, req *Request) (*Response, error) {
	const op = "anthropic complete"

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.F(anthropic.Model(a.model)),
		MaxTokens:   anthropic.F(int64(maxTokens)),
		Temperature: anthropic.F(req.Temperature),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		}),
	}
	if req.System != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(req.System),
		})
	}

	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropicError(ctx, op, err)
	}

	for _, block := range message.Content {
		if block.Type == anthropic.ContentBlockTypeText && strings.TrimSpace(block.Text) != "" {
			return &Response{
				Text:  block.Text,
				Model: string(message.Model),
				Usage: Usage{
					InputTokens:  message.Usage.InputTokens,
					OutputTokens: message.Usage.OutputTokens,
				},
			}, nil
		}
	}

	return nil, &Error{Kind: KindMalformedResponse, Op: op, Err: fmt.Errorf("no text content in Claude response")}
}

// classifyAnthropicError maps SDK errors onto the Kind taxonomy.
func classifyAnthropicError(ctx context.Context, op string, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &Error{
			Kind:       kindForStatus(apiErr.StatusCode),
			Op:         op,
			StatusCode: apiErr.StatusCode,
			Err:        err,
		}
	}
	return transportError(ctx, op, err)
}

// ValidateAnthropicKey validates an Anthropic API key by making a minimal API call.
// Returns nil if the key is valid, or an error describing the problem.
func ValidateAnthropicKey(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return &Error{Kind: KindConfigurationMissing, Op: "validate key", Err: fmt.Errorf("API key is empty")}
	}

	client := NewAnthropic(Config{APIKey: apiKey, Model: string(anthropic.ModelClaude3_5HaikuLatest)})

	// Using Haiku with max 1 token to minimize cost
	return Validate(ctx, client)
}

// KeyHint returns the last 4 characters of an API key for display purposes.
func KeyHint(apiKey string) string {
	if len(apiKey) < 4 {
		return "****"
	}
	return apiKey[len(apiKey)-4:]
}
