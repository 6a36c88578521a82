package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// DefaultOpenRouterURL is the OpenRouter API root.
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"
	// DefaultOpenRouterModel is a free-tier model with JSON output support.
	DefaultOpenRouterModel = "meta-llama/llama-3.3-70b-instruct:free"
)

// OpenRouter talks to any OpenAI-compatible chat completions endpoint.
type OpenRouter struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenRouter creates an OpenRouter adapter. The HTTP client timeout is the
// hard per-request cutoff.
func NewOpenRouter(cfg Config) *OpenRouter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenRouterURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenRouterModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OpenRouter{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (o *OpenRouter) Name() string { return ProviderOpenRouter }

// Complete sends one non-streamed chat completion request.
func (o *OpenRouter) Complete(ctx context.Context, req *Request) (*Response, error) {
	const op = "openrouter complete"

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := chatRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      false,
	}
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	httpResp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, op, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, transportError(ctx, op, fmt.Errorf("reading response: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, statusError(op, httpResp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &Error{Kind: KindMalformedResponse, Op: op, Err: fmt.Errorf("parsing response: %w", err)}
	}

	// OpenRouter reports some upstream failures inside a 200 body.
	if result.Error != nil {
		code := result.Error.Code
		if code < http.StatusBadRequest {
			code = http.StatusBadGateway
		}
		return nil, statusError(op, code, result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return nil, &Error{Kind: KindMalformedResponse, Op: op, Err: fmt.Errorf("no choices in response")}
	}
	text := result.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return nil, &Error{Kind: KindMalformedResponse, Op: op, Err: fmt.Errorf("empty text content in response")}
	}

	model := result.Model
	if model == "" {
		model = o.model
	}

	return &Response{
		Text:  text,
		Model: model,
		Usage: Usage{
			InputTokens:  result.Usage.PromptTokens,
			OutputTokens: result.Usage.CompletionTokens,
		},
	}, nil
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
	Error   *chatError   `json:"error,omitempty"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

type chatError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
