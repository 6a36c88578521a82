package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestOpenRouter(url string) *OpenRouter {
	return NewOpenRouter(Config{
		APIKey:  "test-key",
		Model:   "test-model",
		BaseURL: url,
		Timeout: 5 * time.Second,
	})
}

func TestOpenRouter_Complete(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("Missing or wrong Authorization header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decoding request: %v", err)
		}

		resp := chatResponse{
			Model: "test-model",
			Choices: []chatChoice{
				{Message: chatMessage{Role: "assistant", Content: `{"summary":"ok"}`}},
			},
			Usage: chatUsage{PromptTokens: 12, CompletionTokens: 34},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	o := newTestOpenRouter(server.URL)
	resp, err := o.Complete(context.Background(), &Request{
		System:      "system text",
		Prompt:      "user text",
		Temperature: 0.7,
		MaxTokens:   2000,
		JSON:        true,
	})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}

	if resp.Text != `{"summary":"ok"}` {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 34 {
		t.Errorf("Usage = %+v", resp.Usage)
	}

	if got.Stream {
		t.Error("request must not ask for streaming")
	}
	if got.MaxTokens != 2000 {
		t.Errorf("MaxTokens = %d, want 2000", got.MaxTokens)
	}
	if got.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", got.Temperature)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Errorf("ResponseFormat = %+v, want json_object", got.ResponseFormat)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "user text" {
		t.Errorf("Messages = %+v", got.Messages)
	}
}

func TestOpenRouter_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{name: "unauthorized", status: 401, body: `{"error":{"message":"bad key"}}`, want: KindAuth},
		{name: "forbidden", status: 403, body: `{}`, want: KindAuth},
		{name: "rate limited", status: 429, body: `{}`, want: KindRateLimited},
		{name: "server error", status: 502, body: `bad gateway`, want: KindTransport},
		{name: "bad request", status: 400, body: `{}`, want: KindInvalidRequest},
		{name: "not json", status: 200, body: `<html>`, want: KindMalformedResponse},
		{name: "no choices", status: 200, body: `{"choices":[]}`, want: KindMalformedResponse},
		{name: "empty content", status: 200, body: `{"choices":[{"message":{"role":"assistant","content":"  "}}]}`, want: KindMalformedResponse},
		{name: "error in body", status: 200, body: `{"error":{"code":429,"message":"slow down"}}`, want: KindRateLimited},
		{name: "error in body without code", status: 200, body: `{"error":{"message":"provider down"}}`, want: KindTransport},
		{name: "error in body with non-error code", status: 200, body: `{"error":{"code":200,"message":"upstream hiccup"}}`, want: KindTransport},
		{name: "error in body with negative code", status: 200, body: `{"error":{"code":-1,"message":"provider crashed"}}`, want: KindTransport},
		{name: "error in body with bad request", status: 200, body: `{"error":{"code":400,"message":"context too long"}}`, want: KindInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestOpenRouter(server.URL).Complete(context.Background(), &Request{Prompt: "x"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := KindOf(err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q (err: %v)", got, tt.want, err)
			}
		})
	}
}

func TestOpenRouter_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	o := NewOpenRouter(Config{APIKey: "k", BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	_, err := o.Complete(context.Background(), &Request{Prompt: "x"})
	if !IsKind(err, KindTransport) {
		t.Errorf("expected transport error, got %v", err)
	}
}

func TestOpenRouter_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := newTestOpenRouter(server.URL).Complete(ctx, &Request{Prompt: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if KindOf(err) != "" {
		t.Errorf("caller cancellation should not be classified, got kind %q", KindOf(err))
	}
}
