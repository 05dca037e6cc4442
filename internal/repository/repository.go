// Package repository defines the persistence contracts. The sqlite and
// postgres subpackages implement them against database/sql.
package repository

import (
	"context"

	"github.com/sakif/contacts-api/internal/model"
)

// ListOptions is offset pagination applied after ordering by id.
type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository persists user accounts. Lookups by email expect an
// already-normalized (lowercased, trimmed) address.
//
// Missing users are reported as apperror.ErrNotFound; a duplicate email on
// Create as apperror.ErrConflict.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// UpdateRefreshToken stores token as the only valid refresh token; nil
	// clears it.
	UpdateRefreshToken(ctx context.Context, userID int64, token *string) error
	// UpdateResetToken stores token as the only active reset token; nil
	// clears it.
	UpdateResetToken(ctx context.Context, userID int64, token *string) error
	// UpdatePassword replaces the hash and clears the reset token in one
	// statement.
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
	UpdateAvatar(ctx context.Context, userID int64, url string) (*model.User, error)
	Confirm(ctx context.Context, email string) error
}

// ContactRepository persists contacts. Every method takes the owner's id
// and filters on it; a contact owned by someone else is reported exactly
// like a missing one (apperror.ErrNotFound).
type ContactRepository interface {
	List(ctx context.Context, userID int64, opts ListOptions) ([]model.Contact, error)
	GetByID(ctx context.Context, userID, id int64) (*model.Contact, error)
	Create(ctx context.Context, contact *model.Contact) error
	// Update applies the non-nil fields of patch and returns the stored
	// record.
	Update(ctx context.Context, userID, id int64, patch model.ContactPatch) (*model.Contact, error)
	// Delete removes the contact and returns it as it was.
	Delete(ctx context.Context, userID, id int64) (*model.Contact, error)
	// Search matches query case-insensitively as a substring of first name,
	// last name or email.
	Search(ctx context.Context, userID int64, query string, opts ListOptions) ([]model.Contact, error)
	// UpcomingBirthdays returns contacts whose birthday month/day falls in
	// [from, from+days], ordered by id.
	UpcomingBirthdays(ctx context.Context, userID int64, from model.Date, days int) ([]model.Contact, error)
}
