// Package sqlite provides an embedded SQLite implementation of the storage
// interface for local development and tests.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codecritic/codecritic/storage"
	_ "modernc.org/sqlite"
)

const timeFormat = time.RFC3339

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store provides storage operations using SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	inMemory := path == MemoryPath
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to :memory: is a separate database, and SQLite allows
	// a single writer anyway.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveHistory stores a review history record.
func (s *Store) SaveHistory(ctx context.Context, rec *storage.HistoryRecord) error {
	storage.PrepareHistory(rec, time.Now())

	_, err := s.db.ExecContext(ctx, `INSERT INTO review_history (id, user_id, created_at, language, code_snippet, full_code, result)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Timestamp, rec.Language, rec.CodeSnippet, rec.FullCode, string(rec.Result))
	if err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

// ListHistory returns the user's records, newest first. IDs are ULIDs so
// ordering by ID is ordering by creation time.
func (s *Store) ListHistory(ctx context.Context, userID string, limit int) ([]*storage.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, created_at, language, code_snippet, full_code, result
		FROM review_history WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	records := []*storage.HistoryRecord{}
	for rows.Next() {
		var rec storage.HistoryRecord
		var result string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Timestamp, &rec.Language, &rec.CodeSnippet, &rec.FullCode, &result); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		rec.Result = json.RawMessage(result)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// DeleteHistory removes one of the user's records.
func (s *Store) DeleteHistory(ctx context.Context, userID, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM review_history WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearHistory removes all of the user's records.
func (s *Store) ClearHistory(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM review_history WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return res.RowsAffected()
}

// CreateUser stores a new account.
func (s *Store) CreateUser(ctx context.Context, user *storage.User) error {
	if user.ID == "" {
		user.ID = storage.NewUserID()
	}
	user.CreatedAt = time.Now().UTC().Format(timeFormat)

	var token any
	if user.VerificationToken != "" {
		token = user.VerificationToken
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, email, password_hash, is_verified, verification_token, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, user.IsVerified, token, user.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return storage.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves an account by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	return s.getUser(ctx, `SELECT id, email, password_hash, is_verified, verification_token, created_at FROM users WHERE email = ?`, email)
}

// GetUserByID retrieves an account by ID.
func (s *Store) GetUserByID(ctx context.Context, id string) (*storage.User, error) {
	return s.getUser(ctx, `SELECT id, email, password_hash, is_verified, verification_token, created_at FROM users WHERE id = ?`, id)
}

func (s *Store) getUser(ctx context.Context, query string, arg string) (*storage.User, error) {
	var user storage.User
	var token sql.NullString
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.IsVerified, &token, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.VerificationToken = token.String
	return &user, nil
}

// VerifyUser marks the holder of token as verified.
func (s *Store) VerifyUser(ctx context.Context, token string) (*storage.User, error) {
	if token == "" {
		return nil, storage.ErrNotFound
	}

	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE verification_token = ?`, token).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to verify user: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE users SET is_verified = 1, verification_token = NULL WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to verify user: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

var _ storage.Storage = (*Store)(nil)
