// Package review turns a code snippet into a structured review report using a
// hosted language model, and answers follow-up questions about that report.
package review

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/codecritic/codecritic/redact"
)

// DefaultLanguage is used when the caller does not declare a language.
const DefaultLanguage = "auto"

const systemPrompt = `You are an expert code reviewer. Analyze the submitted code and provide:
1. Quality score (0-100)
2. Brief summary (1-2 sentences)
3. Top 2-3 strengths
4. Critical bugs only (max 5)
5. Security issues (max 3)
6. Performance tips (max 3)
7. Key refactoring suggestions (max 2)
8. Complexity analysis (time and space complexity in Big-O notation)

Be concise, specific, and actionable. Focus on critical issues.

Severity values must be one of: "critical", "high", "medium", "low".
Line numbers refer to the submitted code, starting at 1. Use null when a finding has no single line.

Respond with ONLY a JSON object in exactly this shape, no markdown code blocks or other text:
{
  "overall_score": 85,
  "summary": "Brief overall assessment.",
  "strengths": ["What is good about the code"],
  "bugs": [
    {"line": 12, "severity": "high", "description": "What is wrong", "suggestion": "How to fix it"}
  ],
  "security_issues": [
    {"line": 4, "severity": "critical", "description": "Type of vulnerability", "recommendation": "How to fix it"}
  ],
  "performance_tips": [
    {"line": 20, "description": "Performance concern", "optimization": "Optimization suggestion"}
  ],
  "refactoring_suggestions": [
    {"line_range": "10-15", "description": "What needs refactoring and why", "current_code": "current snippet", "improved_code": "improved snippet"}
  ],
  "complexity_analysis": {
    "time_complexity": "O(n)",
    "space_complexity": "O(1)",
    "explanation": "Why",
    "optimization_potential": "What could be improved"
  }
}

Rules for the response:
1. "overall_score" must be an integer between 0 and 100
2. "summary" and "strengths" are required
3. Use empty arrays when there are no findings of a kind
4. Return ONLY valid JSON`

const reviewPromptTemplate = `Review this %s code:

%s

Focus on critical issues. Keep responses brief.`

// redactionNote is appended to the user prompt when secret values were masked.
const redactionNote = "\n\nNote: secret values in this code were replaced with " + redact.Placeholder +
	" before it was sent. Each " + redact.Placeholder + " stands for a hardcoded credential literal; report it as such."

// Prompt is the instruction payload sent to the model.
type Prompt struct {
	System string
	User   string
}

// BuildReviewPrompt constructs the review prompt for a snippet. It is pure:
// the code is embedded verbatim in a fenced block tagged with language.
func BuildReviewPrompt(code, language string) Prompt {
	language = languageTag(language)
	return Prompt{
		System: systemPrompt,
		User:   fmt.Sprintf(reviewPromptTemplate, language, fenceCode(code, language)),
	}
}

// GetSystemPrompt returns the fixed reviewer persona and output contract.
func GetSystemPrompt() string {
	return systemPrompt
}

// languageTag reduces a declared language to a single fence info word: it is
// cut at the first whitespace and loses any backticks, so it can neither end
// the fence line nor open a fence of its own. An empty tag becomes
// DefaultLanguage.
func languageTag(language string) string {
	language = strings.TrimSpace(language)
	if i := strings.IndexFunc(language, unicode.IsSpace); i >= 0 {
		language = language[:i]
	}
	language = strings.ReplaceAll(language, "`", "")
	if language == "" {
		return DefaultLanguage
	}
	return language
}

// fenceCode wraps code in a markdown fence tagged with language. The fence is
// one backtick longer than the longest backtick run inside the code so the
// code can never close it early.
func fenceCode(code, language string) string {
	fence := codeFence(code)
	return fence + language + "\n" + code + "\n" + fence
}

// codeFence returns the backtick fence to use around code.
func codeFence(code string) string {
	longest, run := 0, 0
	for _, r := range code {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	n := 3
	if longest >= n {
		n = longest + 1
	}
	return strings.Repeat("`", n)
}
