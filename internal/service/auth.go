// Package service holds the business logic: authentication, contacts, and user profiles.
//
// AuthService owns the account lifecycle:
//
//	Unregistered → Registered (not activated) → Activated
//
// plus the two token slots a user carries alongside it: the single valid
// refresh token and the single active password-reset token.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                               ↘ TokenService (JWT)
//	                               ↘ Notifier (email, fire-and-forget)
//
// Every email that enters this package is normalized (lowercased, trimmed)
// before it reaches the repository.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/auth"
	"github.com/sakif/contacts-api/internal/avatar"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/repository"
)

// Messages returned to clients. Some are deliberately identical across
// outcomes so the endpoint does not reveal whether an email is registered.
const (
	MsgRegistered          = "Your account created successfully. Check your email to activate it."
	MsgEmailConfirmed      = "Email confirmation went good!"
	MsgAlreadyConfirmed    = "Your email is already confirmed."
	MsgConfirmationSent    = "Check your email for confirmation"
	MsgResetInstructions   = "Email with instructions was sent."
	MsgPasswordChanged     = "Password changed successfully"
	msgInvalidCredentials  = "Could not validate credentials"
	msgInvalidRefreshToken = "Invalid refresh token."
	msgVerificationError   = "Verification error"
)

// Notifier sends account emails. Implementations must not block on
// delivery and must not report delivery failures.
type Notifier interface {
	SendConfirmation(ctx context.Context, username, email, token string, validFor time.Duration)
	SendPasswordReset(ctx context.Context, username, email, token string, validFor time.Duration)
}

type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	notifier  Notifier
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	notifier Notifier,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		notifier:  notifier,
		logger:    logger,
	}
}

// RegisterResult is the created account plus the message shown to the user.
type RegisterResult struct {
	User    *model.User
	Message string
}

// LoginResult bundles the user with a freshly issued token pair.
type LoginResult struct {
	User   *model.User
	Tokens *auth.TokenPair
}

// NormalizeEmail is the single email-equivalence rule: lowercase, trimmed.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unactivated account and queues the confirmation email.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*RegisterResult, error) {
	email = NormalizeEmail(email)
	username = strings.TrimSpace(username)

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, apperror.Conflict("Email already exists. Try to log in.")
	} else if !isNotFound(err) {
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, err
	}

	refresh, err := s.tokens.IssueRefresh(email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing refresh token: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		AvatarURL:    avatar.Gravatar(email),
		RefreshToken: &refresh,
	}
	// A concurrent registration can still win the race; the store reports
	// it as a Conflict which is passed through untouched.
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user %s: %w", email, err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("email", user.Email),
	)

	s.sendConfirmation(ctx, user)

	return &RegisterResult{User: user, Message: MsgRegistered}, nil
}

// Login checks credentials and issues an access/refresh pair. The stored
// refresh token is overwritten, so older refresh tokens stop working.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.Unauthorized("Invalid email")
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}
	if !user.IsActivated {
		return nil, apperror.Unauthorized("Inactive user. (Email not confirmed.)")
	}
	if !s.passwords.Verify(user.PasswordHash, password) {
		return nil, apperror.Unauthorized("Invalid password")
	}

	return s.issueSession(ctx, user)
}

// RefreshToken rotates the token pair. The presented token must be the one
// currently stored for the user. A validly signed but superseded token is
// treated as a replay: the stored token is cleared, which logs the user out
// everywhere until they sign in again.
func (s *AuthService) RefreshToken(ctx context.Context, token string) (*LoginResult, error) {
	email, err := s.tokens.Verify(token, auth.ScopeRefresh)
	if err != nil {
		return nil, apperror.Unauthorized(msgInvalidCredentials)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.Unauthorized(msgInvalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	if user.RefreshToken == nil || *user.RefreshToken != token {
		if err := s.users.UpdateRefreshToken(ctx, user.ID, nil); err != nil {
			return nil, fmt.Errorf("service/auth: revoking refresh token for user %d: %w", user.ID, err)
		}
		s.logger.Warn("refresh token replay detected; session revoked",
			slog.Int64("userID", user.ID),
		)
		return nil, apperror.Unauthorized(msgInvalidRefreshToken)
	}

	return s.issueSession(ctx, user)
}

// ConfirmEmail activates the account named by an email-confirmation token.
// Confirming twice is not an error.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string) (string, error) {
	email, err := s.tokens.Verify(token, auth.ScopeEmailConfirm)
	if err != nil {
		return "", apperror.BadRequest("Invalid token for email confirmation.")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return "", apperror.BadRequest(msgVerificationError)
		}
		return "", fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}
	if user.IsActivated {
		return MsgAlreadyConfirmed, nil
	}

	if err := s.users.Confirm(ctx, email); err != nil {
		return "", fmt.Errorf("service/auth: confirming %s: %w", email, err)
	}
	s.logger.Info("email confirmed", slog.Int64("userID", user.ID))

	return MsgEmailConfirmed, nil
}

// RequestConfirmationEmail re-sends the confirmation link to an existing,
// unactivated account. The reply is the same whatever the account state.
func (s *AuthService) RequestConfirmationEmail(ctx context.Context, email string) (string, error) {
	email = NormalizeEmail(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if !user.IsActivated {
			s.sendConfirmation(ctx, user)
		}
	case isNotFound(err):
	default:
		return "", fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	return MsgConfirmationSent, nil
}

// RequestPasswordReset stores a new reset token for an existing account and
// emails it. Unknown emails get the same reply and no side effects.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = NormalizeEmail(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return MsgResetInstructions, nil
		}
		return "", fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	token, err := s.tokens.IssuePasswordReset(email)
	if err != nil {
		return "", fmt.Errorf("service/auth: issuing reset token: %w", err)
	}
	if err := s.users.UpdateResetToken(ctx, user.ID, &token); err != nil {
		return "", fmt.Errorf("service/auth: storing reset token for user %d: %w", user.ID, err)
	}

	s.notifier.SendPasswordReset(ctx, user.Username, user.Email, token, s.tokens.TTLs().PasswordReset)
	s.logger.Info("password reset requested", slog.Int64("userID", user.ID))

	return MsgResetInstructions, nil
}

// CompletePasswordReset sets a new password. The token must be the one
// stored by the latest RequestPasswordReset; it is cleared in the same
// write, so each link works once.
func (s *AuthService) CompletePasswordReset(ctx context.Context, token, newPassword string) (string, error) {
	email, err := s.tokens.Verify(token, auth.ScopePasswordReset)
	if err != nil {
		return "", apperror.BadRequest("Invalid token for password reset.")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return "", apperror.BadRequest(msgVerificationError)
		}
		return "", fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}
	if user.ResetToken == nil || *user.ResetToken != token {
		return "", apperror.BadRequest(msgVerificationError)
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return "", err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return "", fmt.Errorf("service/auth: updating password for user %d: %w", user.ID, err)
	}

	s.logger.Info("password reset completed", slog.Int64("userID", user.ID))
	return MsgPasswordChanged, nil
}

// LoginWithGitHub signs in the account matching the GitHub email, creating
// an already-activated one on first login. GitHub has verified the address,
// so an existing unconfirmed account is activated as well.
//
// The handler exchanges the OAuth code; this method never touches HTTP.
func (s *AuthService) LoginWithGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*LoginResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}
	email := NormalizeEmail(ghUser.Email)

	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if !user.IsActivated {
			if err := s.users.Confirm(ctx, email); err != nil {
				return nil, fmt.Errorf("service/auth: confirming %s: %w", email, err)
			}
			user.IsActivated = true
		}

	case isNotFound(err):
		// No password login until the user sets one through the reset flow.
		user = &model.User{
			Username:     ghUser.Login,
			Email:        email,
			PasswordHash: auth.UnusableHash,
			AvatarURL:    avatar.Gravatar(email),
			IsActivated:  true,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: creating GitHub user %s: %w", ghUser.Login, err)
		}
		s.logger.Info("user registered via GitHub",
			slog.Int64("userID", user.ID),
			slog.String("login", ghUser.Login),
		)

	default:
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	return s.issueSession(ctx, user)
}

// issueSession issues a token pair and stores its refresh half.
func (s *AuthService) issueSession(ctx context.Context, user *model.User) (*LoginResult, error) {
	pair, err := s.tokens.IssuePair(user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing tokens for user %d: %w", user.ID, err)
	}
	if err := s.users.UpdateRefreshToken(ctx, user.ID, &pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("service/auth: storing refresh token for user %d: %w", user.ID, err)
	}
	user.RefreshToken = &pair.RefreshToken

	s.logger.Debug("session issued", slog.Int64("userID", user.ID))
	return &LoginResult{User: user, Tokens: pair}, nil
}

func (s *AuthService) sendConfirmation(ctx context.Context, user *model.User) {
	token, err := s.tokens.IssueEmailConfirm(user.Email)
	if err != nil {
		s.logger.Error("issuing confirmation token failed",
			slog.Int64("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.notifier.SendConfirmation(ctx, user.Username, user.Email, token, s.tokens.TTLs().EmailConfirm)
}

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}
