// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Email is the login identifier and the subject of every token issued for
// the account. It is stored lowercased and trimmed; the service layer
// normalizes it before any lookup so "Alice@Example.com" and
// "alice@example.com" are the same account.
//
// RefreshToken and ResetToken hold the raw value of the single currently
// valid token of that kind. nil means none is outstanding. Presenting any
// other token of that scope, even a correctly signed one, is rejected.
//
// The credential fields are tagged json:"-" so a User can be written to a
// response without leaking them.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	AvatarURL    string    `json:"avatar_url"`
	RefreshToken *string   `json:"-"`
	ResetToken   *string   `json:"-"`
	IsActivated  bool      `json:"is_activated"`
}
