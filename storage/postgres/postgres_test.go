package postgres

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/codecritic/codecritic/storage"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to TEST_DATABASE_URL, skipping when it is unset.
func newTestStore(t *testing.T) *PostgreSQL {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	store, err := NewFromDSN(dsn)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestPostgresHistoryAndUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	userID := storage.NewUserID()
	rec := &storage.HistoryRecord{
		UserID:   userID,
		Language: "go",
		FullCode: "package main",
		Result:   json.RawMessage(`{"overall_score":90}`),
	}
	require.NoError(t, store.SaveHistory(ctx, rec))

	records, err := store.ListHistory(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.JSONEq(t, `{"overall_score":90}`, string(records[0].Result))

	deleted, err := store.DeleteHistory(ctx, userID, rec.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	email := userID + "@example.com"
	user := &storage.User{Email: email, PasswordHash: "hash", VerificationToken: storage.NewVerificationToken()}
	require.NoError(t, store.CreateUser(ctx, user))
	require.ErrorIs(t, store.CreateUser(ctx, &storage.User{Email: email, PasswordHash: "x"}), storage.ErrDuplicateEmail)

	verified, err := store.VerifyUser(ctx, user.VerificationToken)
	require.NoError(t, err)
	require.True(t, verified.IsVerified)
}

func TestResultJSONHelpers(t *testing.T) {
	require.False(t, resultToJSON(nil).Valid)
	require.False(t, resultToJSON(json.RawMessage("null")).Valid)
	require.True(t, resultToJSON(json.RawMessage(`{}`)).Valid)
	require.Equal(t, "null", string(resultFromJSON("")))
}
