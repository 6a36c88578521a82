package server

import (
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/codecritic/codecritic/auth"
	"github.com/codecritic/codecritic/storage"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userView struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	IsVerified bool   `json:"is_verified"`
}

func viewOf(u *storage.User) userView {
	return userView{ID: u.ID, Email: u.Email, IsVerified: u.IsVerified}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.accountsEnabled(w) {
		return
	}
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}

	email := normalizeEmail(req.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		errorResponse(w, http.StatusUnprocessableEntity, "Invalid email address")
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		errorResponse(w, http.StatusUnprocessableEntity, "Password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		errorResponse(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	user := &storage.User{
		Email:             email,
		PasswordHash:      hash,
		VerificationToken: storage.NewVerificationToken(),
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			errorResponse(w, http.StatusConflict, "Email already registered")
			return
		}
		s.logger.Error("failed to create user", "error", err)
		errorResponse(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	s.logger.Info("user registered", "user_id", user.ID)
	if s.mailer != nil {
		if err := s.mailer.SendVerification(r.Context(), user.Email, user.VerificationToken); err != nil {
			s.logger.Warn("failed to send verification email", "user_id", user.ID, "error", err)
		}
	}

	jsonResponse(w, http.StatusCreated, map[string]string{
		"message": "Registration successful. Please check your email to verify your account.",
		"user_id": user.ID,
	})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	if !s.accountsEnabled(w) {
		return
	}

	user, err := s.store.VerifyUser(r.Context(), r.URL.Query().Get("token"))
	if errors.Is(err, storage.ErrNotFound) {
		errorResponse(w, http.StatusBadRequest, "Invalid or expired verification token")
		return
	}
	if err != nil {
		s.logger.Error("failed to verify email", "error", err)
		errorResponse(w, http.StatusInternalServerError, "Verification failed")
		return
	}

	if s.mailer != nil {
		if err := s.mailer.SendWelcome(r.Context(), user.Email); err != nil {
			s.logger.Warn("failed to send welcome email", "user_id", user.ID, "error", err)
		}
	}

	jsonResponse(w, http.StatusOK, map[string]string{
		"message": "Email verified successfully. You can now log in.",
		"email":   user.Email,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.accountsEnabled(w) {
		return
	}
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		s.logger.Error("failed to look up user", "error", err)
		errorResponse(w, http.StatusInternalServerError, "Login failed")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		errorResponse(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	if s.cfg.RequireVerification && !user.IsVerified {
		errorResponse(w, http.StatusForbidden, "Please verify your email before logging in")
		return
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		s.logger.Error("failed to issue token", "error", err)
		errorResponse(w, http.StatusInternalServerError, "Login failed")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"user":         viewOf(user),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		s.logger.Error("failed to look up user", "error", err)
		errorResponse(w, http.StatusInternalServerError, "Failed to load user")
		return
	}
	if user == nil {
		errorResponse(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	jsonResponse(w, http.StatusOK, viewOf(user))
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			errorResponse(w, http.StatusUnprocessableEntity, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := s.store.ListHistory(r.Context(), claimsFrom(r.Context()).UserID, limit)
	if err != nil {
		s.logger.Error("failed to list history", "error", err)
		errorResponse(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	jsonResponse(w, http.StatusOK, records)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.ClearHistory(r.Context(), claimsFrom(r.Context()).UserID)
	if err != nil {
		s.logger.Error("failed to clear history", "error", err)
		errorResponse(w, http.StatusInternalServerError, "Failed to clear history")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.store.DeleteHistory(r.Context(), claimsFrom(r.Context()).UserID, r.PathValue("id"))
	if err != nil {
		s.logger.Error("failed to delete history", "error", err)
		errorResponse(w, http.StatusInternalServerError, "Failed to delete history entry")
		return
	}
	if !deleted {
		errorResponse(w, http.StatusNotFound, "History entry not found")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"deleted": 1})
}
