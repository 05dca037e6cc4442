// Package auth provides password hashing, scoped JWT issuance/verification
// and request authentication for the contacts API.
//
// TOKEN SCOPES:
// Every token carries a "scope" claim naming the single purpose it was
// issued for:
//
//	access_token    → calls to protected endpoints (short-lived)
//	refresh_token   → GET /auth/refresh_token only (long-lived, stored per user)
//	email_confirm   → GET /auth/email_confirmation/{token}
//	password_reset  → POST /auth/set_new_password/{token} (stored per user)
//
// Verify takes the scope the caller expects and fails closed on anything
// else. A refresh token can never be replayed as an access token, and a
// password-reset link cannot be used to log in.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header:    {"alg":"HS256","typ":"JWT"}
//	- Payload:   {"sub":"alice@example.com","scope":"access_token","exp":...,"jti":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
//
// The subject is the account email, which is what the stores look users up
// by.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const issuer = "contacts-api"

// ErrInvalidToken is returned by Verify for every failure: bad signature,
// expiry, malformed input, wrong scope. Callers cannot tell them apart,
// which keeps the endpoints from acting as a token oracle.
var ErrInvalidToken = errors.New("auth: invalid token")

// Scope names the purpose a token was issued for.
type Scope string

const (
	ScopeAccess        Scope = "access_token"
	ScopeRefresh       Scope = "refresh_token"
	ScopeEmailConfirm  Scope = "email_confirm"
	ScopePasswordReset Scope = "password_reset"
)

func (s Scope) valid() bool {
	switch s {
	case ScopeAccess, ScopeRefresh, ScopeEmailConfirm, ScopePasswordReset:
		return true
	}
	return false
}

// TTLs holds the default lifetime of each scope.
type TTLs struct {
	Access        time.Duration
	Refresh       time.Duration
	EmailConfirm  time.Duration
	PasswordReset time.Duration
}

// DefaultTTLs returns 15 minutes for access tokens, 7 days for refresh
// tokens and 1 hour for email confirmation and password reset links.
func DefaultTTLs() TTLs {
	return TTLs{
		Access:        15 * time.Minute,
		Refresh:       7 * 24 * time.Hour,
		EmailConfirm:  time.Hour,
		PasswordReset: time.Hour,
	}
}

// withDefaults fills zero fields from DefaultTTLs.
func (t TTLs) withDefaults() TTLs {
	d := DefaultTTLs()
	if t.Access <= 0 {
		t.Access = d.Access
	}
	if t.Refresh <= 0 {
		t.Refresh = d.Refresh
	}
	if t.EmailConfirm <= 0 {
		t.EmailConfirm = d.EmailConfirm
	}
	if t.PasswordReset <= 0 {
		t.PasswordReset = d.PasswordReset
	}
	return t
}

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret, the per-scope lifetimes and a clock. The clock
// is a field so tests can issue a token and then verify it "later" without
// sleeping.
type TokenService struct {
	secret []byte
	ttls   TTLs
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttls TTLs) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{
		secret: []byte(secret),
		ttls:   ttls.withDefaults(),
		now:    time.Now,
	}, nil
}

// WithClock returns a copy of the service that reads time from now.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	c := *s
	c.now = now
	return &c
}

// TTLs returns the configured lifetimes.
func (s *TokenService) TTLs() TTLs {
	return s.ttls
}

// claims is the JWT payload: the registered claims plus our scope tag.
type claims struct {
	Scope Scope `json:"scope"`
	jwt.RegisteredClaims
}

// Issue signs a token for subject with the given scope and lifetime.
//
// A ttl of zero (or less) produces a token that is already expired: exp is
// truncated to whole seconds and the validator requires now < exp.
//
// Each token gets a unique jti so two tokens issued for the same subject in
// the same second still differ. Refresh rotation relies on that: the new
// refresh token must never equal the one it replaces.
func (s *TokenService) Issue(scope Scope, subject string, ttl time.Duration) (string, error) {
	if !scope.valid() {
		return "", fmt.Errorf("auth: unknown token scope %q", scope)
	}
	if subject == "" {
		return "", errors.New("auth: token subject must not be empty")
	}

	now := s.now()
	c := claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        xid.New().String(),
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// IssueAccess issues an access token with the configured access TTL.
func (s *TokenService) IssueAccess(email string) (string, error) {
	return s.Issue(ScopeAccess, email, s.ttls.Access)
}

// IssueRefresh issues a refresh token with the configured refresh TTL.
func (s *TokenService) IssueRefresh(email string) (string, error) {
	return s.Issue(ScopeRefresh, email, s.ttls.Refresh)
}

// IssueEmailConfirm issues the token embedded in confirmation links.
func (s *TokenService) IssueEmailConfirm(email string) (string, error) {
	return s.Issue(ScopeEmailConfirm, email, s.ttls.EmailConfirm)
}

// IssuePasswordReset issues the token embedded in password reset links.
func (s *TokenService) IssuePasswordReset(email string) (string, error) {
	return s.Issue(ScopePasswordReset, email, s.ttls.PasswordReset)
}

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// IssuePair issues a fresh access + refresh token pair for email.
func (s *TokenService) IssuePair(email string) (*TokenPair, error) {
	access, err := s.IssueAccess(email)
	if err != nil {
		return nil, err
	}
	refresh, err := s.IssueRefresh(email)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

// Verify parses and verifies a JWT string and returns its subject.
//
// VALIDATION CHECKS:
//   - Signature is valid and the algorithm is HS256 (no "none", no RS/HS confusion)
//   - Token is not expired according to the service clock
//   - Issuer matches
//   - Scope equals expected
//   - Subject is present
//
// Any failure yields ErrInvalidToken.
func (s *TokenService) Verify(tokenStr string, expected Scope) (string, error) {
	if tokenStr == "" {
		return "", ErrInvalidToken
	}

	var c claims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	if c.Scope != expected || c.Subject == "" {
		return "", ErrInvalidToken
	}

	return c.Subject, nil
}
