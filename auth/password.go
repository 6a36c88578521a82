// Package auth hashes passwords and issues the bearer tokens that protect the
// account and history routes.
package auth

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is bcrypt's input limit. Longer passwords are truncated
// to this many bytes, on a UTF-8 boundary, before hashing and verification.
const MaxPasswordBytes = 72

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

// TruncatePassword shortens password to at most MaxPasswordBytes bytes
// without splitting a multi-byte character.
func TruncatePassword(password string) string {
	if len(password) <= MaxPasswordBytes {
		return password
	}
	cut := MaxPasswordBytes
	for cut > 0 && !utf8.RuneStart(password[cut]) {
		cut--
	}
	return password[:cut]
}

// HashPassword returns the bcrypt hash of the truncated password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(TruncatePassword(password)), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(TruncatePassword(password)))
	return err == nil
}

// ErrWeakPassword is returned for passwords shorter than MinPasswordLength.
var ErrWeakPassword = errors.New("password must be at least 8 characters")

// ValidatePassword enforces the registration policy.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
