package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/model"
)

// TESTING WITH IN-MEMORY SQLITE:
// ":memory:" gives every test a fresh database that disappears when the
// connection closes.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func strPtr(s string) *string { return &s }

// createTestUser creates a user and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, email string) *model.User {
	t.Helper()
	user := &model.User{
		Username:     "user",
		Email:        email,
		PasswordHash: "$2a$04$hash",
		AvatarURL:    "https://www.gravatar.com/avatar/x",
	}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// CREATE / GET
// =========================================================================

func TestUserCreate_AssignsIDAndPersists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := &model.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "$2a$04$hash",
		AvatarURL:    "https://example.com/a.png",
		RefreshToken: strPtr("rt-1"),
	}
	require.NoError(t, db.Users().Create(ctx, user))
	assert.NotZero(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	got, err := db.Users().GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "$2a$04$hash", got.PasswordHash)
	assert.Equal(t, "https://example.com/a.png", got.AvatarURL)
	require.NotNil(t, got.RefreshToken)
	assert.Equal(t, "rt-1", *got.RefreshToken)
	assert.Nil(t, got.ResetToken)
	assert.False(t, got.IsActivated)
	assert.True(t, user.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", user.CreatedAt, got.CreatedAt)
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "dup@example.com")

	err := db.Users().Create(context.Background(), &model.User{
		Username:     "other",
		Email:        "dup@example.com",
		PasswordHash: "x",
	})

	assert.True(t, errors.Is(err, apperror.ErrConflict), "err = %v", err)
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Users().GetUserByEmail(context.Background(), "nobody@example.com")

	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

// =========================================================================
// TOKEN / PASSWORD / AVATAR UPDATES
// =========================================================================

func TestUpdateRefreshToken_SetAndClear(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")

	require.NoError(t, db.Users().UpdateRefreshToken(ctx, u.ID, strPtr("rt-2")))
	got, _ := db.Users().GetUserByEmail(ctx, u.Email)
	require.NotNil(t, got.RefreshToken)
	assert.Equal(t, "rt-2", *got.RefreshToken)

	require.NoError(t, db.Users().UpdateRefreshToken(ctx, u.ID, nil))
	got, _ = db.Users().GetUserByEmail(ctx, u.Email)
	assert.Nil(t, got.RefreshToken)
}

func TestUpdatePassword_ClearsResetToken(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")

	require.NoError(t, db.Users().UpdateResetToken(ctx, u.ID, strPtr("reset-1")))
	require.NoError(t, db.Users().UpdatePassword(ctx, u.ID, "$2a$04$new"))

	got, err := db.Users().GetUserByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, "$2a$04$new", got.PasswordHash)
	assert.Nil(t, got.ResetToken)
}

func TestUpdates_UnknownUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	assert.True(t, errors.Is(db.Users().UpdateRefreshToken(ctx, 999, nil), apperror.ErrNotFound))
	assert.True(t, errors.Is(db.Users().UpdatePassword(ctx, 999, "x"), apperror.ErrNotFound))
	_, err := db.Users().UpdateAvatar(ctx, 999, "https://cdn/x.png")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestUpdateAvatar_ReturnsUpdatedUser(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "alice@example.com")

	got, err := db.Users().UpdateAvatar(context.Background(), u.ID, "https://cdn.example.com/avatars/abc")

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/avatars/abc", got.AvatarURL)
	assert.Equal(t, u.Email, got.Email)
}

func TestConfirm_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")

	require.NoError(t, db.Users().Confirm(ctx, u.Email))
	require.NoError(t, db.Users().Confirm(ctx, u.Email))

	got, _ := db.Users().GetUserByEmail(ctx, u.Email)
	assert.True(t, got.IsActivated)

	assert.True(t, errors.Is(db.Users().Confirm(ctx, "ghost@example.com"), apperror.ErrNotFound))
}
