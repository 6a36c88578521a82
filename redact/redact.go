// Package redact strips credentials out of source code before it is sent to
// a hosted model.
package redact

import (
	"regexp"
	"strings"
)

// Placeholder replaces every detected secret value.
const Placeholder = "[REDACTED]"

// secretPattern matches a secret. value is the capture group holding the
// secret itself; 0 means the whole match. Everything outside that group
// (key names, operators, quotes, prefixes) is kept so the code still reads
// as the same assignment.
type secretPattern struct {
	re    *regexp.Regexp
	value int
}

// secretPatterns are regex heuristics for common secret types.
var secretPatterns = []secretPattern{
	// Generic API keys after common key names
	{regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`), 2},
	// AWS access key IDs
	{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), 0},
	// AWS secret access keys
	{regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`), 2},
	// Quoted secrets/tokens/passwords in assignments
	{regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`), 2},
	{regexp.MustCompile(`(?i)(Bearer\s+)([A-Za-z0-9._-]{20,})`), 2},
	// JWTs
	{regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`), 0},
	// PEM private key bodies; the BEGIN/END lines stay
	{regexp.MustCompile(`-----BEGIN ((?:RSA|EC|OPENSSH|DSA) )?PRIVATE KEY-----([\s\S]*?)-----END ((?:RSA|EC|OPENSSH|DSA) )?PRIVATE KEY-----`), 2},
	{regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`), 0},
	{regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`), 0},
	{regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`), 0},
	{regexp.MustCompile(`sk-or-v1-[A-Za-z0-9]{20,}`), 0},
	{regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`), 0},
}

// Secrets replaces detected secret values in text with Placeholder.
// Line breaks inside a redacted value are kept so line numbers do not move.
func Secrets(text string) string {
	out, _ := scrub(text)
	return out
}

// Count returns how many secret values Secrets would replace.
func Count(text string) int {
	_, n := scrub(text)
	return n
}

func scrub(text string) (string, int) {
	total := 0
	for _, p := range secretPatterns {
		var n int
		text, n = p.replace(text)
		total += n
	}
	return text, total
}

func (p secretPattern) replace(text string) (string, int) {
	matches := p.re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, 0
	}

	var sb strings.Builder
	last, n := 0, 0
	for _, m := range matches {
		start, end := m[2*p.value], m[2*p.value+1]
		if start < 0 {
			continue
		}
		secret := text[start:end]
		// Already redacted by an earlier pattern.
		if strings.HasPrefix(secret, Placeholder) {
			continue
		}
		sb.WriteString(text[last:start])
		sb.WriteString(Placeholder)
		sb.WriteString(strings.Repeat("\n", strings.Count(secret, "\n")))
		last = end
		n++
	}
	sb.WriteString(text[last:])
	return sb.String(), n
}
