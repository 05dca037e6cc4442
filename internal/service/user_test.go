package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/contacts-api/internal/avatar"
	"github.com/sakif/contacts-api/internal/model"
)

type fakeUploader struct {
	publicID    string
	contentType string
	body        string
	err         error
}

func (u *fakeUploader) Upload(_ context.Context, publicID string, body io.Reader, contentType string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	b, _ := io.ReadAll(body)
	u.publicID, u.contentType, u.body = publicID, contentType, string(b)
	return "https://cdn.example.com/" + publicID, nil
}

func TestUserService_UpdateAvatar(t *testing.T) {
	repo := newFakeUserRepo()
	user := &model.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}
	require.NoError(t, repo.Create(context.Background(), user))

	up := &fakeUploader{}
	svc := NewUserService(repo, up, testLogger())

	updated, err := svc.UpdateAvatar(context.Background(), user, strings.NewReader("png"), "image/png")
	require.NoError(t, err)

	assert.Equal(t, avatar.PublicID("alice@example.com"), up.publicID)
	assert.Equal(t, "image/png", up.contentType)
	assert.Equal(t, "png", up.body)
	assert.Equal(t, "https://cdn.example.com/"+up.publicID, updated.AvatarURL)
	assert.Equal(t, updated.AvatarURL, repo.stored(t, "alice@example.com").AvatarURL)
}

func TestUserService_UpdateAvatarErrors(t *testing.T) {
	repo := newFakeUserRepo()
	user := &model.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}
	require.NoError(t, repo.Create(context.Background(), user))

	svc := NewUserService(repo, &fakeUploader{err: errors.New("bucket gone")}, testLogger())
	_, err := svc.UpdateAvatar(context.Background(), user, strings.NewReader("png"), "image/png")
	require.Error(t, err)
	assert.Equal(t, "", repo.stored(t, "alice@example.com").AvatarURL, "failed upload leaves the profile alone")

	svc = NewUserService(repo, nil, testLogger())
	_, err = svc.UpdateAvatar(context.Background(), user, strings.NewReader("png"), "image/png")
	require.Error(t, err)
}

func TestUserService_Me(t *testing.T) {
	svc := NewUserService(newFakeUserRepo(), nil, testLogger())
	u := &model.User{ID: 7}
	assert.Same(t, u, svc.Me(context.Background(), u))
}
