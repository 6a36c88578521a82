package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/codecritic/codecritic/llm"
	"github.com/codecritic/codecritic/review"
)

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req review.ReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// A valid token is optional here; it only decides whether history is kept.
	if claims, err := s.bearerClaims(r); err == nil {
		req.UserID = claims.UserID
	}

	result, err := s.reviewer.Review(r.Context(), &req)
	if err != nil {
		status, detail := reviewErrorResponse(err)
		s.logger.Error("review failed", "status", status, "error", err)
		errorResponse(w, status, detail)
		return
	}

	jsonResponse(w, http.StatusOK, result)
}

// reviewErrorResponse maps a pipeline failure to a status and message.
func reviewErrorResponse(err error) (int, string) {
	var exhausted *review.ExhaustedError
	switch {
	case errors.Is(err, review.ErrEmptyCode):
		return http.StatusUnprocessableEntity, "Code must not be empty"
	case llm.IsKind(err, llm.KindConfigurationMissing):
		return http.StatusInternalServerError, "Model API key not configured"
	case errors.As(err, &exhausted):
		return http.StatusServiceUnavailable, fmt.Sprintf(
			"The AI model failed after %d attempts. Free-tier models may be overloaded; please try again in a moment. Last error: %v",
			exhausted.Attempts, exhausted.Last)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Review was cancelled before it completed"
	default:
		return http.StatusInternalServerError, fmt.Sprintf("Error during code review: %v", err)
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req review.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reply, err := s.reviewer.Chat(r.Context(), &req)
	if err != nil {
		if errors.Is(err, review.ErrEmptyMessage) {
			errorResponse(w, http.StatusUnprocessableEntity, "Message must not be empty")
			return
		}
		s.logger.Error("chat failed", "error", err)
		errorResponse(w, http.StatusInternalServerError, fmt.Sprintf("Error during chat: %v", err))
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"response": reply})
}
