// Package avatar stores profile pictures on an S3-compatible object store
// and builds default Gravatar URLs.
package avatar

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// Uploader stores an avatar image and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, publicID string, body io.Reader, contentType string) (string, error)
}

// PublicID derives a stable object name from an email, so a second upload
// by the same user replaces the first.
func PublicID(email string) string {
	sum := sha256.Sum256([]byte(normalize(email)))
	return "avatars/" + hex.EncodeToString(sum[:16])
}

// Gravatar returns the identicon URL used until the user uploads a picture.
func Gravatar(email string) string {
	sum := md5.Sum([]byte(normalize(email)))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?d=identicon&s=200", hex.EncodeToString(sum[:]))
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
