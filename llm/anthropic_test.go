package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAnthropic_Complete(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Error("Missing or wrong x-api-key header")
		}
		json.NewDecoder(r.Body).Decode(&got)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "{\"summary\":\"fine\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 20}
		}`))
	}))
	defer server.Close()

	a := NewAnthropic(Config{APIKey: "test-key", Model: "claude-test", BaseURL: server.URL, Timeout: 5 * time.Second})
	resp, err := a.Complete(context.Background(), &Request{
		System:      "be a reviewer",
		Prompt:      "review this",
		Temperature: 0.7,
		MaxTokens:   2000,
	})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}

	if resp.Text != `{"summary":"fine"}` {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 20 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
	if got["max_tokens"] != float64(2000) {
		t.Errorf("max_tokens = %v, want 2000", got["max_tokens"])
	}
	if got["temperature"] != 0.7 {
		t.Errorf("temperature = %v, want 0.7", got["temperature"])
	}
	if stream, ok := got["stream"]; ok && stream != false {
		t.Errorf("stream = %v, want false or absent", stream)
	}
}

func TestAnthropic_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   Kind
	}{
		{name: "unauthorized", status: 401, want: KindAuth},
		{name: "rate limited", status: 429, want: KindRateLimited},
		{name: "overloaded", status: 529, want: KindRateLimited},
		{name: "server error", status: 500, want: KindTransport},
		{name: "bad request", status: 400, want: KindInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"type":"error","error":{"type":"some_error","message":"nope"}}`))
			}))
			defer server.Close()

			a := NewAnthropic(Config{APIKey: "k", BaseURL: server.URL, Timeout: 5 * time.Second})
			_, err := a.Complete(context.Background(), &Request{Prompt: "x"})
			if got := KindOf(err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q (err: %v)", got, tt.want, err)
			}
		})
	}
}

func TestAnthropic_NoTextContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"m","content":[],"usage":{"input_tokens":1,"output_tokens":0}}`))
	}))
	defer server.Close()

	a := NewAnthropic(Config{APIKey: "k", BaseURL: server.URL})
	_, err := a.Complete(context.Background(), &Request{Prompt: "x"})
	if !IsKind(err, KindMalformedResponse) {
		t.Errorf("expected malformed response, got %v", err)
	}
}

func TestKeyHint(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"sk-or-v1-abcdef1234", "1234"},
		{"abc", "****"},
		{"", "****"},
	}
	for _, tt := range tests {
		if got := KeyHint(tt.key); got != tt.want {
			t.Errorf("KeyHint(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
