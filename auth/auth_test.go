package auth

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestTruncatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantLen  int
	}{
		{"short", "hunter22", 8},
		{"exactly limit", strings.Repeat("a", 72), 72},
		{"ascii over limit", strings.Repeat("a", 100), 72},
		// 35 ASCII bytes + 19 two-byte runes = 73 bytes; the last rune must go.
		{"multibyte straddling limit", strings.Repeat("a", 35) + strings.Repeat("é", 19), 71},
		// 25 three-byte runes; byte 72 starts a rune, so the cut is clean.
		{"cjk at limit", strings.Repeat("日", 25), 72},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncatePassword(tt.password)
			require.Len(t, got, tt.wantLen)
			require.True(t, utf8.ValidString(got))
			require.True(t, strings.HasPrefix(tt.password, got))
		})
	}
}

func TestTruncatePasswordProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		password := rapid.String().Draw(rt, "password")
		got := TruncatePassword(password)

		if len(got) > MaxPasswordBytes {
			rt.Fatalf("truncated to %d bytes", len(got))
		}
		if !strings.HasPrefix(password, got) {
			rt.Fatal("result is not a prefix of the input")
		}
		if utf8.ValidString(password) && !utf8.ValidString(got) {
			rt.Fatal("truncation split a character")
		}
		if len(password) <= MaxPasswordBytes && got != password {
			rt.Fatal("short password was changed")
		}
	})
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, CheckPassword(hash, "correct horse battery staple"))
	require.False(t, CheckPassword(hash, "wrong"))

	// Anything past the 72-byte limit is ignored consistently.
	long := strings.Repeat("p", 72)
	hash, err = HashPassword(long + "suffix-one")
	require.NoError(t, err)
	require.True(t, CheckPassword(hash, long+"suffix-two"))
}

func TestValidatePassword(t *testing.T) {
	require.ErrorIs(t, ValidatePassword("short"), ErrWeakPassword)
	require.NoError(t, ValidatePassword("longenough"))
}

func TestTokens(t *testing.T) {
	tokens, err := NewTokens("test-secret", time.Hour)
	require.NoError(t, err)

	token, err := tokens.Issue("user-1", "dev@example.com")
	require.NoError(t, err)

	claims, err := tokens.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "dev@example.com", claims.Subject)

	other, err := NewTokens("other-secret", time.Hour)
	require.NoError(t, err)
	_, err = other.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.Parse("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensExpire(t *testing.T) {
	tokens, err := NewTokens("test-secret", time.Hour)
	require.NoError(t, err)
	tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := tokens.Issue("user-1", "dev@example.com")
	require.NoError(t, err)

	_, err = tokens.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensRejectOtherAlgorithms(t *testing.T) {
	tokens, err := NewTokens("test-secret", time.Hour)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID:           "user-1",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "dev@example.com"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tokens.Parse(unsigned)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokensRequiresSecret(t *testing.T) {
	_, err := NewTokens("", time.Hour)
	require.Error(t, err)
}
