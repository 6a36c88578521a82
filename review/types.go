package review

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Severity is the expected vocabulary for bug and security findings.
// The model is asked for these values but they are not enforced.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// SeverityRank returns a numeric rank for sorting (higher = more severe).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Bug is a defect found in the reviewed code.
type Bug struct {
	Line        *int     `json:"line"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion"`
}

// SecurityIssue is a vulnerability found in the reviewed code.
type SecurityIssue struct {
	Line           *int     `json:"line"`
	Severity       Severity `json:"severity"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
}

// PerformanceTip is an optimization opportunity.
type PerformanceTip struct {
	Line         *int   `json:"line"`
	Description  string `json:"description"`
	Optimization string `json:"optimization"`
}

// RefactoringSuggestion proposes replacement code for a line range.
type RefactoringSuggestion struct {
	LineRange    string `json:"line_range"`
	Description  string `json:"description"`
	CurrentCode  string `json:"current_code"`
	ImprovedCode string `json:"improved_code"`
}

// ComplexityAnalysis describes algorithmic cost in Big-O terms.
type ComplexityAnalysis struct {
	TimeComplexity        string `json:"time_complexity"`
	SpaceComplexity       string `json:"space_complexity"`
	Explanation           string `json:"explanation"`
	OptimizationPotential string `json:"optimization_potential"`
}

// ReviewResult is the structured report returned for a code snippet.
// OverallScore is always an integer in [MinScore, MaxScore] once the result
// has passed through Coerce.
type ReviewResult struct {
	OverallScore           int                     `json:"overall_score"`
	Summary                string                  `json:"summary"`
	Strengths              []string                `json:"strengths"`
	Bugs                   []Bug                   `json:"bugs"`
	SecurityIssues         []SecurityIssue         `json:"security_issues"`
	PerformanceTips        []PerformanceTip        `json:"performance_tips"`
	RefactoringSuggestions []RefactoringSuggestion `json:"refactoring_suggestions"`
	ComplexityAnalysis     *ComplexityAnalysis     `json:"complexity_analysis,omitempty"`
}

// normalize replaces nil lists with empty ones so the JSON form always
// carries arrays.
func (r *ReviewResult) normalize() {
	if r.Strengths == nil {
		r.Strengths = []string{}
	}
	if r.Bugs == nil {
		r.Bugs = []Bug{}
	}
	if r.SecurityIssues == nil {
		r.SecurityIssues = []SecurityIssue{}
	}
	if r.PerformanceTips == nil {
		r.PerformanceTips = []PerformanceTip{}
	}
	if r.RefactoringSuggestions == nil {
		r.RefactoringSuggestions = []RefactoringSuggestion{}
	}
}

// HighestSeverity returns the most severe bug or security severity, or "".
func (r *ReviewResult) HighestSeverity() Severity {
	var highest Severity
	for _, b := range r.Bugs {
		if SeverityRank(b.Severity) > SeverityRank(highest) {
			highest = b.Severity
		}
	}
	for _, s := range r.SecurityIssues {
		if SeverityRank(s.Severity) > SeverityRank(highest) {
			highest = s.Severity
		}
	}
	return highest
}

// ReviewRequest is a snippet submitted for review.
type ReviewRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`

	// UserID, when set, causes the finished review to be saved to history.
	UserID string `json:"-"`
}

// ChatTurn is one prior message in a follow-up conversation.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a follow-up question about a previous review.
type ChatRequest struct {
	Message       string        `json:"message"`
	Code          string        `json:"code"`
	Language      string        `json:"language"`
	ReviewContext *ReviewContext `json:"review_context"`
	ChatHistory   []ChatTurn    `json:"chat_history"`
}

// ReviewContext is the part of an earlier report that a chat turn needs.
// It decodes leniently from a full report: the score goes through the same
// coercion as model output, falling back to DefaultScore, and each findings
// list only contributes its length.
type ReviewContext struct {
	OverallScore    int
	Bugs            int
	SecurityIssues  int
	PerformanceTips int
}

// NewReviewContext summarizes r for a chat request.
func NewReviewContext(r *ReviewResult) *ReviewContext {
	if r == nil {
		return nil
	}
	return &ReviewContext{
		OverallScore:    r.OverallScore,
		Bugs:            len(r.Bugs),
		SecurityIssues:  len(r.SecurityIssues),
		PerformanceTips: len(r.PerformanceTips),
	}
}

func (c *ReviewContext) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return fmt.Errorf("review_context must be an object: %w", err)
	}

	raw, present := fields["overall_score"]
	score, err := coerceScore(raw, present)
	if err != nil {
		score = DefaultScore
	}

	*c = ReviewContext{
		OverallScore:    score,
		Bugs:            listLen(fields["bugs"]),
		SecurityIssues:  listLen(fields["security_issues"]),
		PerformanceTips: listLen(fields["performance_tips"]),
	}
	return nil
}

func listLen(v any) int {
	items, _ := v.([]any)
	return len(items)
}
