// Package main is the entry point for the contacts API server.
//
// main only reads configuration and builds the concrete collaborators
// (database, mail sender, avatar store, rate limiter, GitHub provider).
// Routes and business logic live in internal/server and below.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sakif/contacts-api/internal/auth"
	"github.com/sakif/contacts-api/internal/avatar"
	"github.com/sakif/contacts-api/internal/config"
	"github.com/sakif/contacts-api/internal/mailer"
	"github.com/sakif/contacts-api/internal/ratelimit"
	"github.com/sakif/contacts-api/internal/repository/postgres"
	"github.com/sakif/contacts-api/internal/repository/sqlite"
	"github.com/sakif/contacts-api/internal/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// === 1. CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// === 2. LOGGING ===
	// The default logger is replaced too, so package-level slog calls (the
	// handler error path) share the level and format.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// === 3. DATABASE ===
	deps, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// === 4. AUTH ===
	deps.Tokens, err = auth.NewTokenService(cfg.JWTSecret, auth.TTLs{
		Access:        cfg.AccessTokenTTL,
		Refresh:       cfg.RefreshTokenTTL,
		EmailConfirm:  cfg.EmailTokenTTL,
		PasswordReset: cfg.ResetTokenTTL,
	})
	if err != nil {
		deps.DB.Close()
		return err
	}
	deps.Passwords = auth.NewPasswordService(cfg.BcryptCost)

	if cfg.GitHubEnabled() {
		deps.GitHub = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL)
	} else {
		logger.Info("GITHUB_CLIENT_ID not set; GitHub login disabled")
	}

	// === 5. EMAIL ===
	var sender mailer.Sender
	if cfg.SendGridAPIKey != "" {
		sender = mailer.NewSendGridSender(cfg.SendGridAPIKey, cfg.MailFrom, cfg.MailFromName)
	} else {
		logger.Warn("SENDGRID_API_KEY not set; emails are logged instead of sent")
		sender = mailer.NewLogSender(logger)
	}
	dispatcher, err := mailer.NewDispatcher(sender, cfg.BaseURL, logger)
	if err != nil {
		deps.DB.Close()
		return err
	}
	deps.Mailer = dispatcher

	// === 6. AVATARS ===
	if cfg.AvatarStorageEnabled() {
		uploader, err := avatar.NewS3Uploader(ctx, avatar.S3Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			PublicURL:    cfg.S3PublicURL,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			deps.DB.Close()
			return err
		}
		deps.Uploader = uploader
	} else {
		logger.Info("S3_BUCKET not set; avatar upload disabled")
	}

	// === 7. RATE LIMITING ===
	// Redis shares the budget across instances; without it each process
	// counts on its own.
	if cfg.RedisURL != "" {
		client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			deps.DB.Close()
			return err
		}
		defer client.Close()
		deps.Limiter = ratelimit.NewRedisLimiter(client, "contacts:create", cfg.ContactCreateLimit, cfg.ContactCreateWindow)
	} else {
		deps.Limiter = ratelimit.NewMemoryLimiter(cfg.ContactCreateLimit, cfg.ContactCreateWindow)
	}

	// === 8. SERVER ===
	srv, err := server.New(server.Config{
		Port:        cfg.Port,
		CORSOrigins: cfg.CORSOrigins,
	}, deps, logger)
	if err != nil {
		deps.DB.Close()
		return err
	}

	// Start blocks until SIGINT/SIGTERM, then drains requests and emails
	// and closes the database.
	return srv.Start()
}

// openStore opens the configured database and fills the store fields of
// server.Deps.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (server.Deps, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return server.Deps{}, err
		}
		logger.Info("using postgres")
		return server.Deps{DB: db, Users: db.Users(), Contacts: db.Contacts()}, nil

	case config.DriverSQLite:
		// os.MkdirAll is `mkdir -p`: the data directory is created on first run.
		if dir := filepath.Dir(cfg.DBPath); cfg.DBPath != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return server.Deps{}, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return server.Deps{}, err
		}
		logger.Info("using sqlite", slog.String("path", cfg.DBPath))
		return server.Deps{DB: db, Users: db.Users(), Contacts: db.Contacts()}, nil

	default:
		return server.Deps{}, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
}
