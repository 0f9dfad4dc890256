package auth

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

// hashCost is the bcrypt work factor. Hashes store their own cost, so raising
// it later does not invalidate existing passwords.
const hashCost = bcrypt.DefaultCost

// ErrPasswordTooLong is returned for passwords bcrypt cannot hash (over 72 bytes).
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// ErrPasswordTooShort is returned by CheckPasswordPolicy; the text is shown to clients.
var ErrPasswordTooShort = fmt.Errorf("Password must be at least %d characters", MinPasswordLength)

// CheckPasswordPolicy reports whether a new password is long enough.
// Length is counted in characters, not bytes.
func CheckPasswordPolicy(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// HashPassword takes a plain-text password and returns a bcrypt hash.
// The returned string carries the algorithm version, cost and salt, so it can
// be stored as a single database field.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", err
	}
	return string(hash), nil
}

// CheckPasswordHash compares a plain-text password with a stored hash.
// An empty or malformed stored hash never matches. Accounts created through
// Google sign-in have no password and can only log in that way.
func CheckPasswordHash(password, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	// bcrypt compares in constant time.
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) == nil
}
