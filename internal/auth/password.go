package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/contacts-api/internal/apperror"
)

// DefaultCost is the bcrypt work factor used when none is configured.
//
// Set cost so that hashing takes ~200–300ms on production hardware.
// Tests pass bcrypt.MinCost (4) to keep each hash in the millisecond range.
const DefaultCost = 12

// maxPasswordBytes is bcrypt's input limit. Longer inputs would be
// silently truncated, so they are rejected instead.
const maxPasswordBytes = 72

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so that the cost can be injected.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService. A cost outside bcrypt's
// accepted range falls back to DefaultCost.
func NewPasswordService(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with a random salt.
//
// The output is a self-contained string like:
//
//	$2a$12$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy
//
// It embeds the salt and cost, so it can be stored as-is.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", maxPasswordBytes))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// UnusableHash is stored for accounts that have no password of their own
// (GitHub sign-ups). It is not a bcrypt hash, so Verify never accepts any
// plaintext against it. The owner can still set a password via reset.
const UnusableHash = "!"

// Verify reports whether plaintext matches a stored bcrypt hash.
//
// bcrypt.CompareHashAndPassword compares in constant time. A malformed hash
// is simply a non-match.
func (p *PasswordService) Verify(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
