package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/sakif/contacts-api/internal/avatar"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/repository"
)

// UserService serves the signed-in user's own profile.
type UserService struct {
	users    repository.UserRepository
	uploader avatar.Uploader
	logger   *slog.Logger
}

// NewUserService accepts a nil uploader; UpdateAvatar then fails.
func NewUserService(users repository.UserRepository, uploader avatar.Uploader, logger *slog.Logger) *UserService {
	return &UserService{users: users, uploader: uploader, logger: logger}
}

// Me returns the resolved user. It exists so handlers stay on the service
// layer for every route.
func (s *UserService) Me(_ context.Context, user *model.User) *model.User {
	return user
}

// UpdateAvatar uploads the image under a name derived from the user's email
// (so re-uploads overwrite) and stores the resulting URL.
func (s *UserService) UpdateAvatar(ctx context.Context, user *model.User, image io.Reader, contentType string) (*model.User, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("service/user: avatar storage is not configured")
	}

	url, err := s.uploader.Upload(ctx, avatar.PublicID(user.Email), image, contentType)
	if err != nil {
		return nil, fmt.Errorf("service/user: uploading avatar for user %d: %w", user.ID, err)
	}

	updated, err := s.users.UpdateAvatar(ctx, user.ID, url)
	if err != nil {
		return nil, fmt.Errorf("service/user: saving avatar for user %d: %w", user.ID, err)
	}

	s.logger.Info("avatar updated", slog.Int64("userID", user.ID))
	return updated, nil
}
