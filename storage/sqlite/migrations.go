package sqlite

import "database/sql"

func runMigrations(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_verified INTEGER NOT NULL DEFAULT 0,
			verification_token TEXT,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_users_verification_token ON users(verification_token);`,
		`CREATE TABLE IF NOT EXISTS review_history (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			language TEXT NOT NULL,
			code_snippet TEXT NOT NULL,
			full_code TEXT NOT NULL,
			result TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_review_history_user ON review_history(user_id, id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
