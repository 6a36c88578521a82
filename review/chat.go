package review

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultChatWindow is the number of prior turns forwarded to the model.
const DefaultChatWindow = 6

// ErrEmptyMessage is returned when a chat request has no message.
var ErrEmptyMessage = errors.New("message must not be empty")

const chatSystemPrompt = `You are a helpful code review assistant. You previously reviewed a code snippet. The developer is now asking a follow-up question about the code or your review.

Be helpful, concise, and specific. If asked to clarify, provide concrete examples. If asked to reconsider, evaluate their argument fairly and either:
1. Acknowledge their point and withdraw your concern
2. Explain why you still think the issue is worth addressing

Keep responses short and focused. Answer in plain text or markdown, not JSON.`

const chatPromptTemplate = `The developer is asking about this %s code:

%s

Summary of your previous review:
%s

Recent conversation:
%s

The developer's latest message:
%s

Respond helpfully and concisely.`

// BuildChatPrompt builds the single-turn prompt for a follow-up question. Only the
// last window turns of the history are included, oldest first.
func BuildChatPrompt(req *ChatRequest, window int) Prompt {
	language := languageTag(req.Language)

	return Prompt{
		System: chatSystemPrompt,
		User: fmt.Sprintf(chatPromptTemplate,
			language,
			fenceCode(req.Code, language),
			summarizeReview(req.ReviewContext),
			renderHistory(recentTurns(req.ChatHistory, window)),
			req.Message,
		),
	}
}

// summarizeReview renders the compact view of a prior review used in chat.
func summarizeReview(c *ReviewContext) string {
	if c == nil {
		return "No prior review available."
	}
	return fmt.Sprintf("Score %d/100. %d bug(s), %d security issue(s), %d performance tip(s).",
		c.OverallScore, c.Bugs, c.SecurityIssues, c.PerformanceTips)
}

// recentTurns returns the last window turns. A non-positive window keeps none.
func recentTurns(history []ChatTurn, window int) []ChatTurn {
	if window <= 0 {
		return nil
	}
	if len(history) <= window {
		return history
	}
	return history[len(history)-window:]
}

func renderHistory(turns []ChatTurn) string {
	if len(turns) == 0 {
		return "(none)"
	}

	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString(speaker(t.Role))
		sb.WriteString(": ")
		sb.WriteString(t.Content)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func speaker(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "assistant", "ai", "bot":
		return "Assistant"
	default:
		return "User"
	}
}
