package postgres

import (
	"database/sql"
	"encoding/json"
	"time"
)

// resultToJSON converts a stored review result to a JSON string for storage.
func resultToJSON(result json.RawMessage) sql.NullString {
	if len(result) == 0 || string(result) == "null" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(result), Valid: true}
}

// resultFromJSON parses a stored JSON string back into a raw result.
func resultFromJSON(s string) json.RawMessage {
	if s == "" {
		return json.RawMessage("null")
	}
	return json.RawMessage(s)
}

// parseTimestamp reads an RFC 3339 timestamp, falling back to now.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Now().UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
