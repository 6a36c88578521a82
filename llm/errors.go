package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a failure of the model pipeline.
type Kind string

const (
	// KindTransport covers network, DNS and timeout failures and upstream 5xx.
	KindTransport Kind = "transport"
	// KindRateLimited means the upstream refused the call due to load or quota.
	KindRateLimited Kind = "rate_limited"
	// KindMalformedResponse means a response arrived but held nothing usable.
	KindMalformedResponse Kind = "malformed_response"
	// KindSchemaViolation means the response parsed but did not fit the result schema.
	KindSchemaViolation Kind = "schema_violation"
	// KindAuth means the credential was rejected.
	KindAuth Kind = "auth"
	// KindConfigurationMissing means no credential was configured at all.
	KindConfigurationMissing Kind = "configuration_missing"
	// KindInvalidRequest means the upstream rejected the request itself.
	KindInvalidRequest Kind = "invalid_request"
)

// Error is a classified model pipeline failure.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// kindForStatus maps an upstream HTTP status code to a Kind.
func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests || status == 529:
		return KindRateLimited
	case status == http.StatusRequestTimeout || status >= 500:
		return KindTransport
	default:
		return KindInvalidRequest
	}
}

// statusError builds an Error for a non-2xx upstream response.
func statusError(op string, status int, body string) *Error {
	return &Error{
		Kind:       kindForStatus(status),
		Op:         op,
		StatusCode: status,
		Err:        fmt.Errorf("%s", truncate(body, 300)),
	}
}

// transportError wraps a failure to complete the HTTP exchange.
// Context cancellation by the caller is passed through unclassified so the
// retry loop stops instead of treating it as a transient network fault.
func transportError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTransport, Op: op, Err: fmt.Errorf("timeout: %w", err)}
	}
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
