package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every key Load reads so the host environment cannot leak
// into a test. t.Setenv restores the originals afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ENV", "PORT", "LOG_LEVEL", "APP_BASE_URL", "DB_DRIVER", "DB_PATH", "DATABASE_URL",
		"JWT_SECRET", "ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL", "EMAIL_TOKEN_TTL", "RESET_TOKEN_TTL",
		"BCRYPT_COST", "SENDGRID_API_KEY", "MAIL_FROM", "MAIL_FROM_NAME",
		"S3_ENDPOINT", "S3_REGION", "S3_BUCKET", "S3_ACCESS_KEY", "S3_SECRET_KEY", "S3_PUBLIC_URL",
		"S3_USE_PATH_STYLE", "REDIS_URL", "CONTACT_CREATE_LIMIT", "CONTACT_CREATE_WINDOW",
		"CORS_ORIGINS", "GITHUB_CLIENT_ID", "GITHUB_CLIENT_SECRET", "GITHUB_CALLBACK_URL",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := fromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "data/contacts.db", cfg.DBPath)
	assert.Equal(t, devSecret, cfg.JWTSecret)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, time.Hour, cfg.EmailTokenTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, 2, cfg.ContactCreateLimit)
	assert.Equal(t, 5*time.Second, cfg.ContactCreateWindow)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, "http://localhost:8080/auth/github/callback", cfg.GitHubCallbackURL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.GitHubEnabled())
	assert.False(t, cfg.AvatarStorageEnabled())
	assert.False(t, cfg.S3UsePathStyle)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("JWT_SECRET", "a-very-long-test-secret")
	t.Setenv("ACCESS_TOKEN_TTL", "30m")
	t.Setenv("REFRESH_TOKEN_TTL", "3600")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("APP_BASE_URL", "https://contacts.example.com/")
	t.Setenv("S3_BUCKET", "avatars")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")

	cfg, err := fromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, "https://contacts.example.com", cfg.BaseURL)
	assert.True(t, cfg.AvatarStorageEnabled())
	assert.True(t, cfg.S3UsePathStyle)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad port", map[string]string{"PORT": "eighty"}, "PORT"},
		{"bad duration", map[string]string{"ACCESS_TOKEN_TTL": "soon"}, "ACCESS_TOKEN_TTL"},
		{"bad level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"short secret", map[string]string{"JWT_SECRET": "short"}, "at least 16"},
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}, "unknown DB_DRIVER"},
		{"postgres without url", map[string]string{"DB_DRIVER": "postgres"}, "DATABASE_URL"},
		{"production without secret", map[string]string{"ENV": "production"}, "required in production"},
		{"production with dev secret", map[string]string{"ENV": "production", "JWT_SECRET": devSecret}, "development default"},
		{"zero limit", map[string]string{"CONTACT_CREATE_LIMIT": "0"}, "CONTACT_CREATE_LIMIT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := fromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
