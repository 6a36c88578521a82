package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codecritic/codecritic/review"
)

func TestLanguageFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"main.go", "go"},
		{"app/Handler.TSX", "typescript"},
		{"script.py", "python"},
		{"-", review.DefaultLanguage},
		{"Makefile", review.DefaultLanguage},
	}

	for _, tt := range tests {
		if got := languageFromPath(tt.path); got != tt.want {
			t.Errorf("languageFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestReadInput(t *testing.T) {
	got, err := readInput("-", strings.NewReader("from stdin"))
	if err != nil || got != "from stdin" {
		t.Errorf("readInput(-) = %q, %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "x.go")
	if err := os.WriteFile(path, []byte("package x"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = readInput(path, nil)
	if err != nil || got != "package x" {
		t.Errorf("readInput(file) = %q, %v", got, err)
	}

	if _, err := readInput(filepath.Join(t.TempDir(), "missing.go"), nil); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestWriteText(t *testing.T) {
	line := 7
	result := &review.ReviewResult{
		OverallScore: 64,
		Summary:      "Mostly fine.",
		Strengths:    []string{"readable"},
		Bugs: []review.Bug{
			{Line: &line, Severity: review.SeverityHigh, Description: "nil map write", Suggestion: "make the map first"},
		},
		SecurityIssues: []review.SecurityIssue{
			{Severity: review.SeverityLow, Description: "logs the token"},
		},
		ComplexityAnalysis: &review.ComplexityAnalysis{TimeComplexity: "O(n)", SpaceComplexity: "O(1)"},
	}

	var buf bytes.Buffer
	writeText(&buf, result)
	out := buf.String()

	for _, want := range []string{
		"Score: 64/100",
		"+ readable",
		"[high] line 7: nil map write",
		"fix: make the map first",
		"[low] logs the token",
		"Complexity: time O(n), space O(1)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Performance:") {
		t.Error("empty sections should be omitted")
	}
}
