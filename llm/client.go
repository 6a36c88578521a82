// Package llm provides the transport adapters used to reach hosted language
// models. Each adapter turns a prompt into a single complete (non-streamed)
// response and classifies failures into the Kind taxonomy so callers can
// decide whether another attempt is worthwhile.
package llm

import (
	"context"
	"fmt"
	"time"
)

const (
	// ProviderOpenRouter selects the OpenAI-compatible OpenRouter endpoint.
	ProviderOpenRouter = "openrouter"
	// ProviderAnthropic selects the Anthropic Messages API.
	ProviderAnthropic = "anthropic"

	// DefaultTimeout bounds a single request to the model endpoint.
	DefaultTimeout = 90 * time.Second
)

// Request is a single prompt sent to a model.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	// JSON asks the endpoint for a JSON object response when it supports it.
	JSON bool
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Response is the complete text returned by a model.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Client is implemented by every model adapter.
// Implementations must be safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	Name() string
}

// Config selects and configures an adapter.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// New creates a client for the configured provider.
// A blank API key is reported as KindConfigurationMissing.
func New(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, &Error{
			Kind: KindConfigurationMissing,
			Op:   "new client",
			Err:  fmt.Errorf("no API key configured for provider %q", cfg.Provider),
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	switch cfg.Provider {
	case ProviderOpenRouter, "":
		return NewOpenRouter(cfg), nil
	case ProviderAnthropic:
		return NewAnthropic(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// Validate makes a one-token call to confirm the client's credential works.
// A reply with no usable text still proves the key was accepted.
func Validate(ctx context.Context, c Client) error {
	_, err := c.Complete(ctx, &Request{Prompt: "hi", MaxTokens: 1})
	if err != nil && !IsKind(err, KindMalformedResponse) {
		return fmt.Errorf("API key validation failed: %w", err)
	}
	return nil
}
