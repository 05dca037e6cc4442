// Package config loads server settings from the environment.
//
// A .env file in the working directory is read first if present; variables
// already set in the process environment win over the file. Every setting
// has a development default except JWT_SECRET outside development.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// devSecret lets `go run ./cmd/server` work out of the box. Load rejects
	// it when ENV=production.
	devSecret = "dev-secret-change-me-please"
)

type Config struct {
	Env      string
	Port     int
	LogLevel slog.Level
	BaseURL  string

	DBDriver    string
	DBPath      string
	DatabaseURL string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	EmailTokenTTL   time.Duration
	ResetTokenTTL   time.Duration
	BcryptCost      int

	SendGridAPIKey string
	MailFrom       string
	MailFromName   string

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string
	// S3UsePathStyle is needed by MinIO and most self-hosted stores.
	S3UsePathStyle bool

	RedisURL            string
	ContactCreateLimit  int
	ContactCreateWindow time.Duration

	CORSOrigins []string

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
}

// Load reads .env (optional) and the environment, then validates the result.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading .env: %w", err)
	}
	return fromEnv()
}

func fromEnv() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := Config{
		Env:         getString("ENV", "development"),
		DBDriver:    strings.ToLower(getString("DB_DRIVER", DriverSQLite)),
		DBPath:      getString("DB_PATH", "data/contacts.db"),
		DatabaseURL: getString("DATABASE_URL", ""),
		JWTSecret:   getString("JWT_SECRET", ""),

		SendGridAPIKey: getString("SENDGRID_API_KEY", ""),
		MailFrom:       getString("MAIL_FROM", "noreply@contacts.local"),
		MailFromName:   getString("MAIL_FROM_NAME", "Contacts"),

		S3Endpoint:  getString("S3_ENDPOINT", ""),
		S3Region:    getString("S3_REGION", "us-east-1"),
		S3Bucket:    getString("S3_BUCKET", ""),
		S3AccessKey: getString("S3_ACCESS_KEY", ""),
		S3SecretKey: getString("S3_SECRET_KEY", ""),
		S3PublicURL: getString("S3_PUBLIC_URL", ""),

		RedisURL:    getString("REDIS_URL", ""),
		CORSOrigins: splitList(getString("CORS_ORIGINS", "*")),

		GitHubClientID:     getString("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: getString("GITHUB_CLIENT_SECRET", ""),
	}

	var err error
	cfg.Port, err = getInt("PORT", 8080)
	collect(err)
	cfg.BcryptCost, err = getInt("BCRYPT_COST", 12)
	collect(err)
	cfg.ContactCreateLimit, err = getInt("CONTACT_CREATE_LIMIT", 2)
	collect(err)

	cfg.AccessTokenTTL, err = getDuration("ACCESS_TOKEN_TTL", 15*time.Minute)
	collect(err)
	cfg.RefreshTokenTTL, err = getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour)
	collect(err)
	cfg.EmailTokenTTL, err = getDuration("EMAIL_TOKEN_TTL", time.Hour)
	collect(err)
	cfg.ResetTokenTTL, err = getDuration("RESET_TOKEN_TTL", time.Hour)
	collect(err)
	cfg.ContactCreateWindow, err = getDuration("CONTACT_CREATE_WINDOW", 5*time.Second)
	collect(err)

	cfg.S3UsePathStyle, err = getBool("S3_USE_PATH_STYLE", cfg.S3Endpoint != "")
	collect(err)

	cfg.LogLevel, err = getLevel("LOG_LEVEL", slog.LevelInfo)
	collect(err)

	cfg.BaseURL = strings.TrimRight(getString("APP_BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)), "/")
	cfg.GitHubCallbackURL = getString("GITHUB_CALLBACK_URL", cfg.BaseURL+"/auth/github/callback")

	collect(cfg.validate())

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.JWTSecret == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("config: JWT_SECRET is required in production"))
		} else {
			c.JWTSecret = devSecret
		}
	}
	if c.IsProduction() && c.JWTSecret == devSecret {
		errs = append(errs, errors.New("config: JWT_SECRET must not be the development default"))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("config: JWT_SECRET must be at least 16 characters"))
	}

	switch c.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("config: DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown DB_DRIVER %q", c.DBDriver))
	}

	if c.ContactCreateLimit < 1 {
		errs = append(errs, errors.New("config: CONTACT_CREATE_LIMIT must be positive"))
	}
	if c.ContactCreateWindow <= 0 {
		errs = append(errs, errors.New("config: CONTACT_CREATE_WINDOW must be positive"))
	}

	return errors.Join(errs...)
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// AvatarStorageEnabled reports whether uploads go to S3. Without a bucket
// PATCH /users/avatar is not registered.
func (c Config) AvatarStorageEnabled() bool {
	return c.S3Bucket != ""
}

func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

func getString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := getString(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: invalid integer %q", key, v)
	}
	return n, nil
}

// getDuration accepts Go durations ("15m", "168h") or a bare number of
// seconds.
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getString(key, "")
	if v == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: invalid duration %q", key, v)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := getString(key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: invalid boolean %q", key, v)
	}
	return b, nil
}

func getLevel(key string, fallback slog.Level) (slog.Level, error) {
	v := getString(key, "")
	if v == "" {
		return fallback, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return fallback, fmt.Errorf("config: %s: invalid level %q", key, v)
	}
	return level, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
