package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/contacts-api/internal/apperror"
)

// newTestPasswordService returns a PasswordService with the minimum bcrypt
// cost so tests run in milliseconds.
func newTestPasswordService() *PasswordService {
	return NewPasswordService(bcrypt.MinCost)
}

// =========================================================================
// Hash TESTS
// =========================================================================

func TestHash_OutputLooksBcrypt(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("password123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() does not look like a bcrypt hash: %q", hash)
	}
}

func TestHash_SamePasswordProducesDifferentHashes(t *testing.T) {
	ps := newTestPasswordService()

	hash1, _ := ps.Hash("same-password")
	hash2, _ := ps.Hash("same-password")

	if hash1 == hash2 {
		t.Error("Hash() produced identical hashes for the same password (salt must be random)")
	}
}

func TestHash_RejectsPasswordOver72Bytes(t *testing.T) {
	ps := newTestPasswordService()

	_, err := ps.Hash(strings.Repeat("a", 73))
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Hash() error = %v, want ErrValidation", err)
	}
}

func TestHash_AcceptsPasswordExactly72Bytes(t *testing.T) {
	ps := newTestPasswordService()

	if _, err := ps.Hash(strings.Repeat("a", 72)); err != nil {
		t.Fatalf("Hash() should accept a 72-byte password, got error: %v", err)
	}
}

func TestNewPasswordService_OutOfRangeCostFallsBack(t *testing.T) {
	ps := NewPasswordService(0)
	if ps.cost != DefaultCost {
		t.Errorf("cost = %d, want %d", ps.cost, DefaultCost)
	}
}

// =========================================================================
// Verify TESTS
// =========================================================================

func TestPasswordVerify(t *testing.T) {
	ps := newTestPasswordService()
	hash, err := ps.Hash("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	tests := []struct {
		name      string
		hash      string
		plaintext string
		want      bool
	}{
		{"correct password", hash, "correct-horse-battery-staple", true},
		{"wrong password", hash, "correct-horse-battery-stapler", false},
		{"empty password", hash, "", false},
		{"garbage hash", "not-a-valid-bcrypt-hash", "correct-horse-battery-staple", false},
		{"empty hash", "", "anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ps.Verify(tt.hash, tt.plaintext); got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHashVerify_RoundTrip(t *testing.T) {
	ps := newTestPasswordService()

	for _, pw := range []string{"hello123", "p@$$w0rd!#%", "пароль-密码", "  leading and trailing  "} {
		t.Run(pw, func(t *testing.T) {
			hash, err := ps.Hash(pw)
			if err != nil {
				t.Fatalf("Hash(%q) error = %v", pw, err)
			}
			if !ps.Verify(hash, pw) {
				t.Errorf("Verify() failed for %q", pw)
			}
		})
	}
}

func TestVerify_UnusableHashNeverMatches(t *testing.T) {
	ps := newTestPasswordService()

	for _, pw := range []string{"", "!", UnusableHash, "password123"} {
		if ps.Verify(UnusableHash, pw) {
			t.Errorf("Verify(UnusableHash, %q) = true, want false", pw)
		}
	}
}
