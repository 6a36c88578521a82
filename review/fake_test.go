package review

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/codecritic/codecritic/llm"
)

// step is one scripted reply of fakeClient.
type step struct {
	text string
	err  error
}

// fakeClient replays scripted replies in order and records every request.
type fakeClient struct {
	mu       sync.Mutex
	steps    []step
	requests []*llm.Request
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.steps) == 0 {
		return nil, &llm.Error{Kind: llm.KindTransport, Op: "fake", Err: io.ErrUnexpectedEOF}
	}
	s := f.steps[0]
	f.steps = f.steps[1:]
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Text: s.text, Model: "fake-model", Usage: llm.Usage{InputTokens: 10, OutputTokens: 20}}, nil
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const validReview = `{"overall_score": 88, "summary": "Solid.", "strengths": ["readable"], "bugs": [], "security_issues": [], "performance_tips": [], "refactoring_suggestions": []}`
