// Package storage defines the persistence interfaces for review history and
// user accounts.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrDuplicateEmail is returned by CreateUser when the email is taken.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrNotFound is returned when a lookup by token matches nothing.
	ErrNotFound = errors.New("not found")
)

// HistoryStore persists finished reviews per user.
// Implementations must be safe for concurrent use by multiple goroutines.
type HistoryStore interface {
	// SaveHistory stores a record. ID and Timestamp are assigned when empty.
	SaveHistory(ctx context.Context, rec *HistoryRecord) error
	// ListHistory returns up to limit records for the user, newest first.
	ListHistory(ctx context.Context, userID string, limit int) ([]*HistoryRecord, error)
	// DeleteHistory removes one record owned by the user and reports whether it existed.
	DeleteHistory(ctx context.Context, userID, id string) (bool, error)
	// ClearHistory removes every record owned by the user.
	ClearHistory(ctx context.Context, userID string) (int64, error)
}

// UserStore persists accounts.
// Single-row getters return (nil, nil) when nothing matches.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	// VerifyUser marks the user holding token as verified and clears the
	// token. It returns ErrNotFound when no user holds it.
	VerifyUser(ctx context.Context, token string) (*User, error)
}

// Storage is a complete backend.
type Storage interface {
	HistoryStore
	UserStore
	Close() error
}
