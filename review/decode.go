package review

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// PayloadKind tags how much structure was recovered from a model response.
type PayloadKind int

const (
	// PayloadUnparseable means no JSON object could be found.
	PayloadUnparseable PayloadKind = iota
	// PayloadUntyped means a JSON object was found but does not strictly match ReviewResult.
	PayloadUntyped
	// PayloadStructured means the object decoded strictly into a valid ReviewResult.
	PayloadStructured
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadStructured:
		return "structured"
	case PayloadUntyped:
		return "untyped"
	default:
		return "unparseable"
	}
}

// Payload is the validator's input: exactly one of Result, Fields or Err is
// meaningful depending on Kind.
type Payload struct {
	Kind   PayloadKind
	Result *ReviewResult
	Fields map[string]any
	Err    error
	Raw    string
}

// requiredFields must be present for a payload to count as structured.
var requiredFields = []string{"overall_score", "summary", "strengths"}

// ParsePayload classifies raw model text.
func ParsePayload(text string) Payload {
	cleaned := cleanResponse(text)
	if cleaned == "" {
		return Payload{Kind: PayloadUnparseable, Raw: text, Err: errors.New("empty response")}
	}

	obj, ok := extractObject(cleaned)
	if !ok {
		return Payload{Kind: PayloadUnparseable, Raw: text, Err: fmt.Errorf("no JSON object in response: %s", truncateString(cleaned, 120))}
	}

	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(obj))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return Payload{Kind: PayloadUnparseable, Raw: text, Err: fmt.Errorf("failed to parse response as JSON: %w", err)}
	}

	if result, ok := decodeStrict(obj, fields); ok {
		return Payload{Kind: PayloadStructured, Result: result, Raw: text}
	}

	return Payload{Kind: PayloadUntyped, Fields: fields, Raw: text}
}

// decodeStrict decodes obj into a ReviewResult only if it already conforms:
// required keys present with the right JSON types, no unknown keys, and an
// integral score within range, and complete findings.
func decodeStrict(obj []byte, fields map[string]any) (*ReviewResult, bool) {
	for _, key := range requiredFields {
		if _, ok := fields[key]; !ok {
			return nil, false
		}
	}
	if checkFindings(fields) != nil {
		return nil, false
	}
	if _, ok := fields["overall_score"].(json.Number); !ok {
		return nil, false
	}
	if _, ok := fields["summary"].(string); !ok {
		return nil, false
	}
	if _, ok := fields["strengths"].([]any); !ok {
		return nil, false
	}

	var result ReviewResult
	dec := json.NewDecoder(bytes.NewReader(obj))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&result); err != nil {
		return nil, false
	}
	if result.OverallScore < MinScore || result.OverallScore > MaxScore {
		return nil, false
	}

	result.normalize()
	return &result, true
}

// cleanResponse removes markdown code blocks and other formatting.
func cleanResponse(response string) string {
	response = strings.TrimSpace(response)

	// Remove ```json and ``` wrappers
	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}

	response = strings.TrimSuffix(response, "```")

	return strings.TrimSpace(response)
}

// extractObject returns the outermost {...} span, tolerating prose around it.
func extractObject(s string) ([]byte, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	return []byte(s[start : end+1]), true
}

// truncateString truncates a string to maxLen and adds "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
