package email

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBrevoSendVerification(t *testing.T) {
	var got brevoMessage
	var apiKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("api-key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"messageId":"<abc@smtp-relay>"}`))
	}))
	defer server.Close()

	b := NewBrevo("brevo-key", "noreply@example.com", "Code Critic", "https://app.example.com")
	b.SetEndpoint(server.URL)

	if err := b.SendVerification(context.Background(), "dev@example.com", "tok 1"); err != nil {
		t.Fatalf("SendVerification() error = %v", err)
	}

	if apiKey != "brevo-key" {
		t.Errorf("api-key header = %q", apiKey)
	}
	if got.Sender.Email != "noreply@example.com" || len(got.To) != 1 || got.To[0].Email != "dev@example.com" {
		t.Errorf("addresses = %+v / %+v", got.Sender, got.To)
	}
	if !strings.Contains(got.HTMLContent, "https://app.example.com/verify-email?token=tok+1") {
		t.Errorf("link missing from body:\n%s", got.HTMLContent)
	}
}

func TestBrevoErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"unauthorized"}`))
	}))
	defer server.Close()

	b := NewBrevo("bad", "noreply@example.com", "Code Critic", "https://app.example.com")
	b.SetEndpoint(server.URL)

	err := b.SendWelcome(context.Background(), "dev@example.com")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("SendWelcome() error = %v, want a 401 error", err)
	}
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogSender("http://localhost:3000", slog.New(slog.NewTextHandler(&buf, nil)))

	if err := l.SendVerification(context.Background(), "dev@example.com", "abc"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "verify-email?token=abc") {
		t.Errorf("log missing link: %s", buf.String())
	}
}
