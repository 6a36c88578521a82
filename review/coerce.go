package review

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/codecritic/codecritic/llm"
)

const (
	// DefaultScore is substituted when the model omits overall_score.
	DefaultScore = 70
	// MinScore and MaxScore bound overall_score.
	MinScore = 0
	MaxScore = 100
)

// Coerce turns a classified payload into a ReviewResult.
//
// Structured payloads pass through. Untyped mappings are mapped field by
// field: overall_score is the only lenient field (numeric strings and floats
// are truncated, out-of-range values clamped, a missing score becomes
// DefaultScore); summary and strengths are required and every other field
// must already have the right shape. Unparseable payloads are rejected as
// malformed responses.
func Coerce(p Payload) (*ReviewResult, error) {
	switch p.Kind {
	case PayloadStructured:
		if p.Result == nil {
			return nil, &llm.Error{Kind: llm.KindMalformedResponse, Op: "coerce response", Err: fmt.Errorf("structured payload without result")}
		}
		return p.Result, nil
	case PayloadUntyped:
		return fromFields(p.Fields)
	default:
		err := p.Err
		if err == nil {
			err = fmt.Errorf("unparseable response")
		}
		return nil, &llm.Error{Kind: llm.KindMalformedResponse, Op: "parse response", Err: err}
	}
}

// ParseResult parses and coerces raw model text in one step.
func ParseResult(text string) (*ReviewResult, error) {
	return Coerce(ParsePayload(text))
}

func fromFields(fields map[string]any) (*ReviewResult, error) {
	var result ReviewResult

	rawScore, present := fields["overall_score"]
	score, err := coerceScore(rawScore, present)
	if err != nil {
		return nil, err
	}
	result.OverallScore = score

	summary, ok := fields["summary"]
	if !ok {
		return nil, schemaViolation("missing required field %q", "summary")
	}
	if result.Summary, ok = summary.(string); !ok {
		return nil, schemaViolation("field %q must be a string, got %T", "summary", summary)
	}

	strengths, ok := fields["strengths"]
	if !ok {
		return nil, schemaViolation("missing required field %q", "strengths")
	}
	items, ok := strengths.([]any)
	if !ok {
		return nil, schemaViolation("field %q must be a list, got %T", "strengths", strengths)
	}
	result.Strengths = make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, schemaViolation("strengths[%d] must be a string, got %T", i, item)
		}
		result.Strengths = append(result.Strengths, s)
	}

	if err := checkFindings(fields); err != nil {
		return nil, err
	}

	optional := []struct {
		key string
		dst any
	}{
		{"bugs", &result.Bugs},
		{"security_issues", &result.SecurityIssues},
		{"performance_tips", &result.PerformanceTips},
		{"refactoring_suggestions", &result.RefactoringSuggestions},
		{"complexity_analysis", &result.ComplexityAnalysis},
	}
	for _, f := range optional {
		if err := decodeField(fields, f.key, f.dst); err != nil {
			return nil, err
		}
	}

	result.normalize()
	return &result, nil
}

// coerceScore normalizes overall_score to an integer in [MinScore, MaxScore].
func coerceScore(v any, present bool) (int, error) {
	if !present || v == nil {
		return DefaultScore, nil
	}

	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, schemaViolation("overall_score %q is not a number", n.String())
		}
		f = parsed
	case float64:
		f = n
	case int:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, schemaViolation("overall_score %q is not numeric", n)
		}
		f = parsed
	default:
		return 0, schemaViolation("overall_score has unsupported type %T", v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, schemaViolation("overall_score %v is not finite", f)
	}

	return clampScore(int(math.Trunc(f))), nil
}

func clampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// findingRequirements lists, per findings list, the keys every element must
// carry as strings. line is optional everywhere.
var findingRequirements = []struct {
	key      string
	required []string
}{
	{"bugs", []string{"severity", "description", "suggestion"}},
	{"security_issues", []string{"severity", "description", "recommendation"}},
	{"performance_tips", []string{"description", "optimization"}},
	{"refactoring_suggestions", []string{"line_range", "description", "current_code", "improved_code"}},
}

var complexityRequired = []string{"time_complexity", "space_complexity"}

// checkFindings rejects findings that omit a required key. Absent and null
// lists are accepted.
func checkFindings(fields map[string]any) error {
	for _, f := range findingRequirements {
		v, ok := fields[f.key]
		if !ok || v == nil {
			continue
		}
		items, ok := v.([]any)
		if !ok {
			return schemaViolation("field %q must be a list, got %T", f.key, v)
		}
		for i, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				return schemaViolation("%s[%d] must be an object, got %T", f.key, i, item)
			}
			if err := requireStrings(obj, f.required, fmt.Sprintf("%s[%d]", f.key, i)); err != nil {
				return err
			}
		}
	}

	if v, ok := fields["complexity_analysis"]; ok && v != nil {
		obj, ok := v.(map[string]any)
		if !ok {
			return schemaViolation("field %q must be an object, got %T", "complexity_analysis", v)
		}
		return requireStrings(obj, complexityRequired, "complexity_analysis")
	}
	return nil
}

func requireStrings(obj map[string]any, keys []string, where string) error {
	for _, key := range keys {
		v, ok := obj[key]
		if !ok {
			return schemaViolation("%s: missing required field %q", where, key)
		}
		if _, ok := v.(string); !ok {
			return schemaViolation("%s.%s must be a string, got %T", where, key, v)
		}
	}
	return nil
}

// decodeField re-decodes an optional field into its typed destination.
// Absent and null fields leave dst untouched.
func decodeField(fields map[string]any, key string, dst any) error {
	v, ok := fields[key]
	if !ok || v == nil {
		return nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return schemaViolation("field %q: %v", key, err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(dst); err != nil {
		return schemaViolation("field %q has the wrong shape: %v", key, err)
	}
	return nil
}

func schemaViolation(format string, args ...any) error {
	return &llm.Error{
		Kind: llm.KindSchemaViolation,
		Op:   "coerce response",
		Err:  fmt.Errorf(format, args...),
	}
}
