// Package postgres provides a PostgreSQL implementation of the storage interface.
// This is intended for self-hosted deployments.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/codecritic/codecritic/storage"
	"github.com/lib/pq"
)

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// PostgreSQL provides storage operations using PostgreSQL.
type PostgreSQL struct {
	db *sql.DB
}

// New creates a new PostgreSQL storage instance.
func New(db *sql.DB) *PostgreSQL {
	return &PostgreSQL{db: db}
}

// NewFromDSN creates a new PostgreSQL storage instance from a connection string.
func NewFromDSN(dsn string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &PostgreSQL{db: db}, nil
}

// Close closes the database connection.
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}

// Migrate creates the required database tables.
func (p *PostgreSQL) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_verified BOOLEAN NOT NULL DEFAULT FALSE,
			verification_token TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_users_verification_token ON users(verification_token);

		CREATE TABLE IF NOT EXISTS review_history (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			language TEXT NOT NULL,
			code_snippet TEXT NOT NULL,
			full_code TEXT NOT NULL,
			result JSONB
		);

		CREATE INDEX IF NOT EXISTS idx_review_history_user ON review_history(user_id, created_at DESC);
	`

	_, err := p.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// SaveHistory stores a review history record.
func (p *PostgreSQL) SaveHistory(ctx context.Context, rec *storage.HistoryRecord) error {
	storage.PrepareHistory(rec, time.Now())

	query := `
		INSERT INTO review_history (id, user_id, created_at, language, code_snippet, full_code, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := p.db.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		parseTimestamp(rec.Timestamp),
		rec.Language,
		rec.CodeSnippet,
		rec.FullCode,
		resultToJSON(rec.Result),
	)
	if err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}

	return nil
}

// ListHistory retrieves a user's most recent reviews, newest first.
func (p *PostgreSQL) ListHistory(ctx context.Context, userID string, limit int) ([]*storage.HistoryRecord, error) {
	query := `
		SELECT id, user_id, created_at, language, code_snippet, full_code, result
		FROM review_history
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := p.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	records := []*storage.HistoryRecord{}
	for rows.Next() {
		var rec storage.HistoryRecord
		var resultJSON sql.NullString
		var createdAt time.Time

		if err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&createdAt,
			&rec.Language,
			&rec.CodeSnippet,
			&rec.FullCode,
			&resultJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}

		rec.Timestamp = createdAt.UTC().Format(time.RFC3339)
		rec.Result = resultFromJSON(resultJSON.String)
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// DeleteHistory removes one of the user's records.
func (p *PostgreSQL) DeleteHistory(ctx context.Context, userID, id string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM review_history WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete history: %w", err)
	}
	return n > 0, nil
}

// ClearHistory removes all of the user's records.
func (p *PostgreSQL) ClearHistory(ctx context.Context, userID string) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM review_history WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return res.RowsAffected()
}

// CreateUser stores a new account.
func (p *PostgreSQL) CreateUser(ctx context.Context, user *storage.User) error {
	if user.ID == "" {
		user.ID = storage.NewUserID()
	}
	createdAt := time.Now().UTC()
	user.CreatedAt = createdAt.Format(time.RFC3339)

	query := `
		INSERT INTO users (id, email, password_hash, is_verified, verification_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := p.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.IsVerified,
		nullString(user.VerificationToken),
		createdAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return storage.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByEmail retrieves an account by email.
func (p *PostgreSQL) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	return p.getUser(ctx, "email", email)
}

// GetUserByID retrieves an account by ID.
func (p *PostgreSQL) GetUserByID(ctx context.Context, id string) (*storage.User, error) {
	return p.getUser(ctx, "id", id)
}

func (p *PostgreSQL) getUser(ctx context.Context, column, value string) (*storage.User, error) {
	query := `
		SELECT id, email, password_hash, is_verified, verification_token, created_at
		FROM users
		WHERE ` + column + ` = $1
	`

	var user storage.User
	var token sql.NullString
	var createdAt time.Time

	err := p.db.QueryRowContext(ctx, query, value).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.IsVerified,
		&token,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.VerificationToken = token.String
	user.CreatedAt = createdAt.UTC().Format(time.RFC3339)

	return &user, nil
}

// VerifyUser marks the holder of token as verified.
func (p *PostgreSQL) VerifyUser(ctx context.Context, token string) (*storage.User, error) {
	if token == "" {
		return nil, storage.ErrNotFound
	}

	query := `
		UPDATE users SET is_verified = TRUE, verification_token = NULL
		WHERE verification_token = $1
		RETURNING id
	`

	var id string
	err := p.db.QueryRowContext(ctx, query, token).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to verify user: %w", err)
	}

	return p.GetUserByID(ctx, id)
}

// Verify PostgreSQL implements Storage at compile time.
var _ storage.Storage = (*PostgreSQL)(nil)
