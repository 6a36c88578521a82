package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codecritic/codecritic/llm"
	"github.com/codecritic/codecritic/redact"
	"github.com/codecritic/codecritic/storage"
	"golang.org/x/sync/semaphore"
)

// ErrEmptyCode is returned when a review request carries no code.
var ErrEmptyCode = errors.New("code must not be empty")

const (
	// DefaultTemperature is the sampling temperature for reviews and chat.
	DefaultTemperature = 0.7

	// DefaultMaxTokens caps the review response.
	DefaultMaxTokens = 2000

	// DefaultChatMaxTokens caps a chat reply.
	DefaultChatMaxTokens = 1000

	// DefaultMaxConcurrent limits in-flight model calls per Reviewer.
	DefaultMaxConcurrent = 8
)

// Options tunes a Reviewer. Zero fields take their defaults.
type Options struct {
	Temperature   float64
	MaxTokens     int
	ChatMaxTokens int
	ChatWindow    int
	MaxConcurrent int64
	Retry         RetryPolicy
	RedactSecrets bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Temperature:   DefaultTemperature,
		MaxTokens:     DefaultMaxTokens,
		ChatMaxTokens: DefaultChatMaxTokens,
		ChatWindow:    DefaultChatWindow,
		MaxConcurrent: DefaultMaxConcurrent,
		Retry:         DefaultRetryPolicy(),
	}
}

// Reviewer runs the review pipeline: prompt construction, model invocation,
// response validation and bounded retry. It is safe for concurrent use.
type Reviewer struct {
	client  llm.Client
	opts    Options
	retrier *Retrier
	sem     *semaphore.Weighted
	history storage.HistoryStore
	logger  *slog.Logger
}

// NewReviewer creates a Reviewer. client may be nil when no credential is
// configured; Review and Chat then fail with KindConfigurationMissing.
func NewReviewer(client llm.Client, opts Options, logger *slog.Logger) *Reviewer {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultOptions()
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaults.MaxTokens
	}
	if opts.ChatMaxTokens <= 0 {
		opts.ChatMaxTokens = defaults.ChatMaxTokens
	}
	if opts.ChatWindow <= 0 {
		opts.ChatWindow = defaults.ChatWindow
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaults.MaxConcurrent
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = defaults.Retry
	}

	return &Reviewer{
		client:  client,
		opts:    opts,
		retrier: NewRetrier(opts.Retry, logger),
		sem:     semaphore.NewWeighted(opts.MaxConcurrent),
		logger:  logger,
	}
}

// SetHistoryStore enables saving reviews for requests that carry a UserID.
func (r *Reviewer) SetHistoryStore(store storage.HistoryStore) {
	r.history = store
}

// Configured reports whether a model client is available.
func (r *Reviewer) Configured() bool {
	return r.client != nil
}

// Review produces a structured report for req.Code.
//
// Empty code is rejected with ErrEmptyCode before anything else happens.
// Transient failures are retried under the configured policy; the caller
// sees either a result, an *ExhaustedError, a *FatalError, or the context's
// error if ctx ends first.
func (r *Reviewer) Review(ctx context.Context, req *ReviewRequest) (*ReviewResult, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, ErrEmptyCode
	}
	if r.client == nil {
		return nil, configurationMissing("review")
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = DefaultLanguage
	}

	code, redacted := r.redact(req.Code)
	prompt := BuildReviewPrompt(code, language)
	if redacted {
		prompt.User += redactionNote
	}

	r.logger.Info("starting review",
		"language", language,
		"code_length", len(req.Code),
		"provider", r.client.Name(),
	)

	start := time.Now()
	result, err := r.retrier.Run(ctx, "review", func(ctx context.Context, attempt int) (*ReviewResult, error) {
		resp, err := r.complete(ctx, &llm.Request{
			System:      prompt.System,
			Prompt:      prompt.User,
			Temperature: r.opts.Temperature,
			MaxTokens:   r.opts.MaxTokens,
			JSON:        true,
		})
		if err != nil {
			return nil, err
		}

		r.logger.Info("model usage",
			"operation", "review",
			"attempt", attempt,
			"model", resp.Model,
			"input_tokens", resp.Usage.InputTokens,
			"output_tokens", resp.Usage.OutputTokens,
		)

		payload := ParsePayload(resp.Text)
		r.logger.Debug("parsed model response", "attempt", attempt, "payload", payload.Kind.String())
		return Coerce(payload)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("review complete",
		"score", result.OverallScore,
		"bugs", len(result.Bugs),
		"security_issues", len(result.SecurityIssues),
		"duration", time.Since(start),
	)

	if req.UserID != "" && r.history != nil {
		r.saveHistory(ctx, req, language, result)
	}

	return result, nil
}

// Chat answers a follow-up question about a previous review with a single
// model call. Failures are returned as-is and never retried.
func (r *Reviewer) Chat(ctx context.Context, req *ChatRequest) (string, error) {
	if strings.TrimSpace(req.Message) == "" {
		return "", ErrEmptyMessage
	}
	if r.client == nil {
		return "", configurationMissing("chat")
	}

	scrubbed := *req
	var redacted bool
	scrubbed.Code, redacted = r.redact(req.Code)
	prompt := BuildChatPrompt(&scrubbed, r.opts.ChatWindow)
	if redacted {
		prompt.User += redactionNote
	}

	resp, err := r.complete(ctx, &llm.Request{
		System:      prompt.System,
		Prompt:      prompt.User,
		Temperature: r.opts.Temperature,
		MaxTokens:   r.opts.ChatMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat failed: %w", err)
	}

	r.logger.Info("model usage",
		"operation", "chat",
		"model", resp.Model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)

	return strings.TrimSpace(resp.Text), nil
}

// complete makes one model call while holding a concurrency slot.
func (r *Reviewer) complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.sem.Release(1)

	return r.client.Complete(ctx, req)
}

// redact masks secret values when enabled and reports whether any were found.
func (r *Reviewer) redact(code string) (string, bool) {
	if !r.opts.RedactSecrets {
		return code, false
	}
	if n := redact.Count(code); n > 0 {
		r.logger.Info("redacted secrets from code", "count", n)
		return redact.Secrets(code), true
	}
	return code, false
}

// saveHistory stores the finished review. Failures are logged, not returned.
func (r *Reviewer) saveHistory(ctx context.Context, req *ReviewRequest, language string, result *ReviewResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		r.logger.Warn("failed to encode review for history", "error", err)
		return
	}

	rec := &storage.HistoryRecord{
		UserID:      req.UserID,
		Language:    language,
		CodeSnippet: storage.Snippet(req.Code),
		FullCode:    req.Code,
		Result:      raw,
	}
	if err := r.history.SaveHistory(ctx, rec); err != nil {
		r.logger.Warn("failed to save review history", "user_id", req.UserID, "error", err)
		return
	}
	r.logger.Debug("saved review history", "user_id", req.UserID, "id", rec.ID)
}

func configurationMissing(op string) error {
	return &llm.Error{
		Kind: llm.KindConfigurationMissing,
		Op:   op,
		Err:  errors.New("model API key is not configured"),
	}
}
