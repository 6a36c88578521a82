// Package server exposes the review pipeline and account routes over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/codecritic/codecritic/auth"
	"github.com/codecritic/codecritic/email"
	"github.com/codecritic/codecritic/review"
	"github.com/codecritic/codecritic/storage"
)

const (
	// Version is reported by the root route.
	Version = "1.0.0"

	// maxBodyBytes caps request bodies.
	maxBodyBytes = 1 << 20
)

// Config configures the HTTP layer.
type Config struct {
	// CORSOrigins lists allowed browser origins. "*" allows any.
	CORSOrigins []string
	// RequireVerification rejects logins from unverified accounts.
	RequireVerification bool
}

// Server routes requests to the reviewer and the account store.
type Server struct {
	cfg      Config
	reviewer *review.Reviewer
	store    storage.Storage
	tokens   *auth.Tokens
	mailer   email.Sender
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New creates a Server. Account and history routes answer 503 until
// SetAccounts is called.
func New(cfg Config, reviewer *review.Reviewer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	s := &Server{
		cfg:      cfg,
		reviewer: reviewer,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

// SetAccounts enables registration, login and history.
func (s *Server) SetAccounts(store storage.Storage, tokens *auth.Tokens, mailer email.Sender) {
	s.store = store
	s.tokens = tokens
	s.mailer = mailer
}

// Handler returns the root handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return s.cors(s.mux)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /api/review", s.handleReview)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)

	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("GET /api/auth/verify-email", s.handleVerifyEmail)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /api/auth/me", s.requireUser(s.handleMe))

	s.mux.HandleFunc("GET /api/history", s.requireUser(s.handleListHistory))
	s.mux.HandleFunc("DELETE /api/history", s.requireUser(s.handleClearHistory))
	s.mux.HandleFunc("DELETE /api/history/{id}", s.requireUser(s.handleDeleteHistory))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{
		"message": "AI Code Review Assistant API",
		"version": Version,
		"status":  "healthy",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"api_configured": s.reviewer.Configured(),
	})
}

// cors applies the configured origin policy and answers preflight requests.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed := s.allowedOrigin(origin); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			if allowed != "*" {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) string {
	for _, o := range s.cfg.CORSOrigins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

type userKey struct{}

// requireUser rejects requests without a valid bearer token and passes the
// token's claims through the request context.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.accountsEnabled(w) {
			return
		}
		claims, err := s.bearerClaims(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			errorResponse(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, claims)))
	}
}

// bearerClaims parses the Authorization header.
func (s *Server) bearerClaims(r *http.Request) (*auth.Claims, error) {
	if s.tokens == nil {
		return nil, auth.ErrInvalidToken
	}
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return nil, auth.ErrInvalidToken
	}
	return s.tokens.Parse(strings.TrimSpace(token))
}

func claimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(userKey{}).(*auth.Claims)
	return claims
}

func (s *Server) accountsEnabled(w http.ResponseWriter) bool {
	if s.store == nil || s.tokens == nil {
		errorResponse(w, http.StatusServiceUnavailable, "Accounts are not configured on this server")
		return false
	}
	return true
}

// decodeJSON reads a JSON body into v, answering 422 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorResponse(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		errorResponse(w, http.StatusUnprocessableEntity, fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	return true
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// errorResponse writes the {"detail": ...} error body used by every route.
func errorResponse(w http.ResponseWriter, status int, detail string) {
	jsonResponse(w, status, map[string]string{"detail": detail})
}
