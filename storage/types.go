package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// SnippetLength is the number of characters kept in HistoryRecord.CodeSnippet.
const SnippetLength = 200

// HistoryRecord is one saved review.
type HistoryRecord struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Timestamp   string          `json:"timestamp"`
	Language    string          `json:"language"`
	CodeSnippet string          `json:"code_snippet"`
	FullCode    string          `json:"full_code"`
	Result      json.RawMessage `json:"result"`
}

// User is a registered account.
type User struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	PasswordHash      string `json:"-"`
	IsVerified        bool   `json:"is_verified"`
	VerificationToken string `json:"-"`
	CreatedAt         string `json:"created_at"`
}

// NewHistoryID returns a time-sortable record ID.
func NewHistoryID() string {
	return ulid.Make().String()
}

// NewUserID returns a random user ID.
func NewUserID() string {
	return uuid.NewString()
}

// NewVerificationToken returns a random, URL-safe email verification token.
func NewVerificationToken() string {
	return uuid.NewString()
}

// Snippet returns the first SnippetLength characters of code.
func Snippet(code string) string {
	runes := []rune(code)
	if len(runes) <= SnippetLength {
		return code
	}
	return string(runes[:SnippetLength])
}

// PrepareHistory fills in the ID, timestamp and snippet of a record about to
// be saved.
func PrepareHistory(rec *HistoryRecord, now time.Time) {
	if rec.ID == "" {
		rec.ID = NewHistoryID()
	}
	if rec.Timestamp == "" {
		rec.Timestamp = now.UTC().Format(time.RFC3339)
	}
	if rec.CodeSnippet == "" {
		rec.CodeSnippet = Snippet(rec.FullCode)
	}
	if len(rec.Result) == 0 {
		rec.Result = json.RawMessage("null")
	}
}
