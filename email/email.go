// Package email delivers account emails.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultBrevoURL is Brevo's transactional email endpoint.
	DefaultBrevoURL = "https://api.brevo.com/v3/smtp/email"

	sendTimeout = 30 * time.Second
)

// Sender delivers account emails.
type Sender interface {
	SendVerification(ctx context.Context, to, token string) error
	SendWelcome(ctx context.Context, to string) error
}

// VerificationLink returns the frontend URL that confirms token.
func VerificationLink(frontendURL, token string) string {
	return frontendURL + "/verify-email?token=" + url.QueryEscape(token)
}

var verificationTmpl = template.Must(template.New("verify").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
  <h2>Verify your email</h2>
  <p>Thanks for signing up for {{.Product}}. Confirm your address to start saving your review history.</p>
  <p><a href="{{.Link}}">Verify email</a></p>
  <p>If the button does not work, paste this link into your browser:<br>{{.Link}}</p>
</body>
</html>`))

var welcomeTmpl = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
  <h2>Welcome to {{.Product}}</h2>
  <p>Your email is verified. Paste some code and get an instant review.</p>
  <p><a href="{{.Link}}">Open {{.Product}}</a></p>
</body>
</html>`))

// Brevo sends email through Brevo's HTTP API.
type Brevo struct {
	apiKey      string
	fromEmail   string
	fromName    string
	frontendURL string
	endpoint    string
	client      *http.Client
}

// NewBrevo creates a Brevo sender.
func NewBrevo(apiKey, fromEmail, fromName, frontendURL string) *Brevo {
	return &Brevo{
		apiKey:      apiKey,
		fromEmail:   fromEmail,
		fromName:    fromName,
		frontendURL: frontendURL,
		endpoint:    DefaultBrevoURL,
		client:      &http.Client{Timeout: sendTimeout},
	}
}

// SetEndpoint overrides the API endpoint.
func (b *Brevo) SetEndpoint(endpoint string) {
	b.endpoint = endpoint
}

type brevoAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoMessage struct {
	Sender      brevoAddress   `json:"sender"`
	To          []brevoAddress `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

type templateData struct {
	Product string
	Link    string
}

// SendVerification emails the verification link for token.
func (b *Brevo) SendVerification(ctx context.Context, to, token string) error {
	body, err := render(verificationTmpl, templateData{Product: b.fromName, Link: VerificationLink(b.frontendURL, token)})
	if err != nil {
		return err
	}
	return b.send(ctx, to, "Verify your email - "+b.fromName, body)
}

// SendWelcome emails a welcome note after verification.
func (b *Brevo) SendWelcome(ctx context.Context, to string) error {
	body, err := render(welcomeTmpl, templateData{Product: b.fromName, Link: b.frontendURL})
	if err != nil {
		return err
	}
	return b.send(ctx, to, "Welcome to "+b.fromName, body)
}

func (b *Brevo) send(ctx context.Context, to, subject, html string) error {
	payload, err := json.Marshal(brevoMessage{
		Sender:      brevoAddress{Email: b.fromEmail, Name: b.fromName},
		To:          []brevoAddress{{Email: to}},
		Subject:     subject,
		HTMLContent: html,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("api-key", b.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("brevo API error: %d - %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func render(tmpl *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return buf.String(), nil
}

// LogSender logs emails instead of sending them. It is used when no email
// provider is configured so verification links are still reachable in development.
type LogSender struct {
	frontendURL string
	logger      *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(frontendURL string, logger *slog.Logger) *LogSender {
	return &LogSender{frontendURL: frontendURL, logger: logger}
}

// SendVerification logs the verification link.
func (l *LogSender) SendVerification(ctx context.Context, to, token string) error {
	l.logger.Warn("email delivery not configured, logging verification link",
		"to", to,
		"link", VerificationLink(l.frontendURL, token),
	)
	return nil
}

// SendWelcome logs that a welcome email would have been sent.
func (l *LogSender) SendWelcome(ctx context.Context, to string) error {
	l.logger.Info("email delivery not configured, skipping welcome email", "to", to)
	return nil
}

var (
	_ Sender = (*Brevo)(nil)
	_ Sender = (*LogSender)(nil)
)
