package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/repository"
)

var _ repository.UserRepository = (*UserStore)(nil)

// UserStore is the users table.
type UserStore struct {
	conn *sql.DB
}

const userColumns = `id, username, email, password_hash, created_at, avatar_url,
	refresh_token, reset_token, is_activated`

func scanUser(row scanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.AvatarURL,
		&u.RefreshToken,
		&u.ResetToken,
		&u.IsActivated,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

func userNotFound(id int64) error {
	return apperror.NotFound("user", strconv.FormatInt(id, 10))
}

func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	err := s.conn.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password_hash, avatar_url,
		                    refresh_token, reset_token, is_activated)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.AvatarURL,
		user.RefreshToken,
		user.ResetToken,
		user.IsActivated,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("Email already exists. Try to log in.")
		}
		return fmt.Errorf("postgres: inserting user %s: %w", user.Email, err)
	}
	return nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("postgres: getting user %s: %w", email, err)
	}
	return u, nil
}

func (s *UserStore) UpdateRefreshToken(ctx context.Context, userID int64, token *string) error {
	return s.exec(ctx, userID, `UPDATE users SET refresh_token = $1 WHERE id = $2`, token, userID)
}

func (s *UserStore) UpdateResetToken(ctx context.Context, userID int64, token *string) error {
	return s.exec(ctx, userID, `UPDATE users SET reset_token = $1 WHERE id = $2`, token, userID)
}

func (s *UserStore) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	return s.exec(ctx, userID,
		`UPDATE users SET password_hash = $1, reset_token = NULL WHERE id = $2`, passwordHash, userID)
}

func (s *UserStore) UpdateAvatar(ctx context.Context, userID int64, url string) (*model.User, error) {
	u, err := scanUser(s.conn.QueryRowContext(ctx,
		`UPDATE users SET avatar_url = $1 WHERE id = $2 RETURNING `+userColumns, url, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, userNotFound(userID)
		}
		return nil, fmt.Errorf("postgres: updating avatar for user %d: %w", userID, err)
	}
	return u, nil
}

func (s *UserStore) Confirm(ctx context.Context, email string) error {
	result, err := s.conn.ExecContext(ctx,
		`UPDATE users SET is_activated = TRUE WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("postgres: confirming user %s: %w", email, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("postgres: checking rows affected: %w", err)
	} else if n == 0 {
		return apperror.NotFound("user", email)
	}
	return nil
}

func (s *UserStore) exec(ctx context.Context, userID int64, query string, args ...any) error {
	result, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: updating user %d: %w", userID, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("postgres: checking rows affected: %w", err)
	} else if n == 0 {
		return userNotFound(userID)
	}
	return nil
}
