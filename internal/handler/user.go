package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/service"
)

// MaxAvatarBytes caps avatar uploads.
const MaxAvatarBytes = 5 << 20

// UserHandler serves /users: the caller's own profile.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleMe returns the signed-in user's profile.
//
// HTTP: GET /users/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.users.Me(r.Context(), user))
}

// HandleUpdateAvatar replaces the profile picture.
//
// HTTP: PATCH /users/avatar
// REQUEST: multipart/form-data with the image in the "file" field
//
// The content type is sniffed from the bytes, not taken from the client, and
// must be an image.
func (h *UserHandler) HandleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxAvatarBytes+1024)
	if err := r.ParseMultipartForm(MaxAvatarBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, apperror.ValidationFailed("file", "file: must be at most 5 MB"))
			return
		}
		writeError(w, apperror.BadRequest("expected a multipart/form-data body"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperror.ValidationFailed("file", "file: cannot be blank"))
		return
	}
	defer file.Close()

	head := make([]byte, 512)
	n, _ := file.Read(head)
	contentType := http.DetectContentType(head[:n])
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, apperror.ValidationFailed("file", "file: must be an image"))
		return
	}
	if _, err := file.Seek(0, 0); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.users.UpdateAvatar(r.Context(), user, file, contentType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
