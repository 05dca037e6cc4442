package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/model"
)

// UserFinder is the slice of the user store the resolver needs.
type UserFinder interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// Resolver turns a bearer access token into the user it was issued for.
//
// RESOLUTION PIPELINE:
//  1. Verify the token with scope access_token → subject email
//  2. Load the user by that email
//
// Any failure along the way (bad token, wrong scope, deleted user, store
// error) is reported as a single Unauthorized error.
type Resolver struct {
	tokens *TokenService
	users  UserFinder
}

// NewResolver creates a Resolver.
func NewResolver(tokens *TokenService, users UserFinder) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

// Resolve returns the user that owns the access token.
func (r *Resolver) Resolve(ctx context.Context, token string) (*model.User, error) {
	email, err := r.tokens.Verify(token, ScopeAccess)
	if err != nil {
		return nil, apperror.Unauthorized("Could not validate credentials")
	}

	user, err := r.users.GetUserByEmail(ctx, email)
	if err != nil || user == nil {
		return nil, apperror.Unauthorized("Could not validate credentials")
	}

	return user, nil
}

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of this type, so nothing else can
// read or shadow the user stored under it.
type contextKey string

const userKey contextKey = "user"

// RequireAuth is a middleware that enforces authentication on protected
// routes.
//
// It reads "Authorization: Bearer <token>", resolves the user and stores it
// in the request context. A missing header, a malformed header or a failed
// resolution all end the chain with 401 and a Bearer challenge.
func RequireAuth(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				writeUnauthorized(w, "Not authenticated")
				return
			}

			user, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				message := "Could not validate credentials"
				var appErr *apperror.AppError
				if errors.As(err, &appErr) {
					message = appErr.Message
				}
				writeUnauthorized(w, message)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext retrieves the authenticated user from the request context.
//
// Returns (nil, false) on routes not behind RequireAuth.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
