package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/repository"
)

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

// UserStore is the users table.
type UserStore struct {
	conn *sql.DB
}

const userColumns = `id, username, email, password_hash, created_at, avatar_url,
	refresh_token, reset_token, is_activated`

func scanUser(row scanner) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.AvatarURL,
		&u.RefreshToken,
		&u.ResetToken,
		&u.IsActivated,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user and fills in ID and CreatedAt.
// A duplicate email is reported as apperror.ErrConflict.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	user.CreatedAt = time.Now().UTC().Truncate(time.Second)

	result, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, created_at, avatar_url,
		                    refresh_token, reset_token, is_activated)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
		user.AvatarURL,
		user.RefreshToken,
		user.ResetToken,
		user.IsActivated,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("Email already exists. Try to log in.")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}
	user.ID = id

	return nil
}

// GetUserByEmail retrieves a user by their (normalized) email.
// Returns apperror.ErrNotFound if no user has that email.
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`,
		email,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", email, err)
	}
	return u, nil
}

func (s *UserStore) UpdateRefreshToken(ctx context.Context, userID int64, token *string) error {
	return s.execUser(ctx, userID, "updating refresh token",
		`UPDATE users SET refresh_token = ? WHERE id = ?`, token, userID)
}

func (s *UserStore) UpdateResetToken(ctx context.Context, userID int64, token *string) error {
	return s.execUser(ctx, userID, "updating reset token",
		`UPDATE users SET reset_token = ? WHERE id = ?`, token, userID)
}

// UpdatePassword stores the new hash and clears the reset token, which makes
// a reset link single-use.
func (s *UserStore) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	return s.execUser(ctx, userID, "updating password",
		`UPDATE users SET password_hash = ?, reset_token = NULL WHERE id = ?`, passwordHash, userID)
}

// UpdateAvatar stores the new avatar URL and returns the updated user.
func (s *UserStore) UpdateAvatar(ctx context.Context, userID int64, url string) (*model.User, error) {
	if err := s.execUser(ctx, userID, "updating avatar",
		`UPDATE users SET avatar_url = ? WHERE id = ?`, url, userID); err != nil {
		return nil, err
	}

	u, err := scanUser(s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`,
		userID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", strconv.FormatInt(userID, 10))
		}
		return nil, fmt.Errorf("sqlite: reloading user %d: %w", userID, err)
	}
	return u, nil
}

// Confirm marks the account activated. Confirming twice is not an error.
func (s *UserStore) Confirm(ctx context.Context, email string) error {
	result, err := s.conn.ExecContext(ctx,
		`UPDATE users SET is_activated = 1 WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("sqlite: confirming user %s: %w", email, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", email)
	}
	return nil
}

// execUser runs a single-row UPDATE keyed by user id and maps "no row" to
// NotFound.
func (s *UserStore) execUser(ctx context.Context, userID int64, action, query string, args ...any) error {
	result, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlite: %s for user %d: %w", action, userID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", strconv.FormatInt(userID, 10))
	}
	return nil
}
