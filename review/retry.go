package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codecritic/codecritic/llm"
)

const (
	// DefaultMaxAttempts caps the number of model calls per review.
	DefaultMaxAttempts = 3

	// DefaultRetryDelay is the fixed pause between attempts.
	DefaultRetryDelay = 2 * time.Second
)

// RetryPolicy bounds the attempt loop. The delay is fixed, not exponential.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy returns the policy used for reviews.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultRetryDelay}
}

// attemptState is a state of the retry state machine.
type attemptState int

const (
	stateAttempting attemptState = iota
	stateBackoff
	stateSuccess
	stateExhausted
	stateFatal
)

func (s attemptState) String() string {
	switch s {
	case stateAttempting:
		return "attempting"
	case stateBackoff:
		return "backoff"
	case stateSuccess:
		return "success"
	case stateExhausted:
		return "exhausted"
	case stateFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// retryable lists the failure kinds that move the machine to backoff.
// Anything else, including unclassified errors, is fatal.
var retryable = map[llm.Kind]bool{
	llm.KindTransport:         true,
	llm.KindRateLimited:       true,
	llm.KindMalformedResponse: true,
	llm.KindSchemaViolation:   true,
}

// IsRetryable reports whether err is a transient failure worth another attempt.
func IsRetryable(err error) bool {
	return err != nil && retryable[llm.KindOf(err)]
}

// nextState is the transition taken after attempt number attempt failed with err.
func nextState(err error, attempt, maxAttempts int) attemptState {
	if !IsRetryable(err) {
		return stateFatal
	}
	if attempt >= maxAttempts {
		return stateExhausted
	}
	return stateBackoff
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("review failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// FatalError is returned when an attempt failed in a way retrying cannot fix.
type FatalError struct {
	Attempts int
	Err      error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("review failed on attempt %d (not retryable): %v", e.Attempts, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// AttemptFunc performs one attempt. attempt starts at 1.
type AttemptFunc func(ctx context.Context, attempt int) (*ReviewResult, error)

// Retrier drives attempts sequentially through the retry state machine.
type Retrier struct {
	policy RetryPolicy
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a Retrier. A cap below one is raised to one.
func NewRetrier(policy RetryPolicy, logger *slog.Logger) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Delay < 0 {
		policy.Delay = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{
		policy: policy,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Policy returns the effective policy.
func (r *Retrier) Policy() RetryPolicy {
	return r.policy
}

// Run executes fn until it succeeds, fails fatally, or the attempt cap is
// reached. Cancelling ctx stops the loop during an attempt or a backoff.
func (r *Retrier) Run(ctx context.Context, op string, fn AttemptFunc) (*ReviewResult, error) {
	state := stateAttempting
	attempt := 1
	var result *ReviewResult
	var lastErr error

	for {
		switch state {
		case stateAttempting:
			result, lastErr = fn(ctx, attempt)
			if lastErr == nil && result == nil {
				lastErr = &llm.Error{Kind: llm.KindMalformedResponse, Op: op, Err: fmt.Errorf("empty result")}
			}
			if lastErr == nil {
				state = stateSuccess
				continue
			}
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%s canceled after %d attempt(s): %w", op, attempt, ctx.Err())
			}
			state = nextState(lastErr, attempt, r.policy.MaxAttempts)

		case stateBackoff:
			r.logger.Warn("retrying after transient error",
				"operation", op,
				"attempt", attempt,
				"max_attempts", r.policy.MaxAttempts,
				"delay", r.policy.Delay,
				"kind", llm.KindOf(lastErr),
				"error", lastErr,
			)
			if err := r.sleep(ctx, r.policy.Delay); err != nil {
				return nil, fmt.Errorf("%s canceled during backoff after %d attempt(s): %w", op, attempt, err)
			}
			attempt++
			state = stateAttempting

		case stateSuccess:
			if attempt > 1 {
				r.logger.Info("succeeded after retry", "operation", op, "attempt", attempt)
			}
			return result, nil

		case stateExhausted:
			r.logger.Error("retries exhausted", "operation", op, "attempts", attempt, "error", lastErr)
			return nil, &ExhaustedError{Attempts: attempt, Last: lastErr}

		case stateFatal:
			r.logger.Error("non-retryable failure", "operation", op, "attempt", attempt, "error", lastErr)
			return nil, &FatalError{Attempts: attempt, Err: lastErr}
		}
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
