// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer. It decides:
//   - which URL patterns map to which handler functions
//   - which middleware runs on which routes
//   - how the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// cmd/server builds the stores and external clients (database, mail sender,
// S3 uploader, rate limiter, GitHub provider) from config and passes them in
// as Deps. New builds services and handlers on top of them:
//
//	Deps.Users/Contacts → AuthService, ContactService, UserService → handlers
//
// Nothing below this package knows which concrete store or sender it got.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/contacts-api/internal/auth"
	"github.com/sakif/contacts-api/internal/avatar"
	"github.com/sakif/contacts-api/internal/handler"
	"github.com/sakif/contacts-api/internal/middleware"
	"github.com/sakif/contacts-api/internal/ratelimit"
	"github.com/sakif/contacts-api/internal/repository"
	"github.com/sakif/contacts-api/internal/service"
)

// Config holds the HTTP-level settings.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Database is the lifecycle half of a store: health checks and shutdown.
type Database interface {
	Ping(ctx context.Context) error
	Close() error
}

// Mailer is the email dispatcher. Wait blocks until queued sends finish.
type Mailer interface {
	service.Notifier
	Wait()
}

// Deps are the collaborators built by main.
//
// Uploader and GitHub are optional: nil leaves PATCH /users/avatar and the
// /auth/github routes unregistered.
type Deps struct {
	DB        Database
	Users     repository.UserRepository
	Contacts  repository.ContactRepository
	Tokens    *auth.TokenService
	Passwords *auth.PasswordService
	Mailer    Mailer
	Uploader  avatar.Uploader
	Limiter   ratelimit.Limiter
	GitHub    handler.OAuthProvider
}

func (d Deps) validate() error {
	var missing []string
	if d.DB == nil {
		missing = append(missing, "DB")
	}
	if d.Users == nil {
		missing = append(missing, "Users")
	}
	if d.Contacts == nil {
		missing = append(missing, "Contacts")
	}
	if d.Tokens == nil {
		missing = append(missing, "Tokens")
	}
	if d.Passwords == nil {
		missing = append(missing, "Passwords")
	}
	if d.Mailer == nil {
		missing = append(missing, "Mailer")
	}
	if d.Limiter == nil {
		missing = append(missing, "Limiter")
	}
	if len(missing) > 0 {
		return fmt.Errorf("server: missing dependencies %v", missing)
	}
	return nil
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database and the mail dispatcher from New onwards.
// Start closes the database and waits for queued emails on shutdown.
type Server struct {
	router *chi.Mux
	config Config
	deps   Deps
	logger *slog.Logger
}

// New builds the services and handlers and registers every route.
func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		deps:   deps,
		logger: logger,
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                          → DB ping
//	POST   /auth/register                    → create account
//	POST   /auth/login                       → password login (form)
//	GET    /auth/refresh_token               → rotate tokens (Bearer refresh)
//	GET    /auth/email_confirmation/{token}  → activate account
//	POST   /auth/request_confirmation_email  → re-send confirmation
//	POST   /auth/reset_password              → email a reset link
//	GET    /auth/set_new_password/{token}    → reset form (HTML)
//	POST   /auth/set_new_password/{token}    → set the new password
//	GET    /auth/github/login|callback       → GitHub login (if configured)
//	*      /contacts...                      → contact book (Bearer access)
//	GET    /users/me, PATCH /users/avatar    → profile (Bearer access)
//
// MIDDLEWARE ORDER MATTERS:
// RequestID runs first so the logger can tag each line with it; Recoverer
// sits inside the logger so a panic is still logged as a 500.
func (s *Server) setupRoutes() error {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.SecurityHeaders)
	s.router.Use(middleware.CORS(middleware.DefaultCORSOptions(s.config.CORSOrigins)))

	// === Services ===
	authService := service.NewAuthService(s.deps.Users, s.deps.Tokens, s.deps.Passwords, s.deps.Mailer, s.logger)
	contactService := service.NewContactService(s.deps.Contacts, s.logger)
	userService := service.NewUserService(s.deps.Users, s.deps.Uploader, s.logger)

	// === Handlers ===
	authHandler := handler.NewAuthHandler(authService, s.deps.GitHub, s.logger)
	contactHandler := handler.NewContactHandler(contactService, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)
	healthHandler := handler.NewHealthHandler(s.deps.DB, s.logger)
	pageHandler, err := handler.NewPageHandler(s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}

	requireAuth := auth.RequireAuth(auth.NewResolver(s.deps.Tokens, s.deps.Users))
	createLimit := ratelimit.Middleware(s.deps.Limiter, ratelimit.UserKey(userID), s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	// === Auth Routes (public) ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Get("/refresh_token", authHandler.HandleRefreshToken)
		r.Get("/email_confirmation/{token}", authHandler.HandleConfirmEmail)
		r.Post("/request_confirmation_email", authHandler.HandleRequestConfirmationEmail)
		r.Post("/reset_password", authHandler.HandleResetPassword)
		r.Get("/set_new_password/{token}", pageHandler.HandleResetPasswordForm)
		r.Post("/set_new_password/{token}", authHandler.HandleSetNewPassword)

		if s.deps.GitHub != nil {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		}
	})

	// === Contact Routes (protected) ===
	// Static segments are registered before /{id}; chi prefers them anyway,
	// but the order documents the intent.
	s.router.Route("/contacts", func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/", contactHandler.HandleList)
		r.With(createLimit).Post("/", contactHandler.HandleCreate)
		r.Get("/query", contactHandler.HandleSearch)
		r.Get("/upcoming_birthdays", contactHandler.HandleUpcomingBirthdays)
		r.Get("/{id}", contactHandler.HandleGetByID)
		r.Put("/{id}", contactHandler.HandleUpdate)
		r.Patch("/{id}", contactHandler.HandleUpdate)
		r.Delete("/{id}", contactHandler.HandleDelete)
	})

	// === User Routes (protected) ===
	s.router.Route("/users", func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/me", userHandler.HandleMe)
		if s.deps.Uploader != nil {
			r.Patch("/avatar", userHandler.HandleUpdateAvatar)
		}
	})

	return nil
}

// userID keys the create-contact limiter by the authenticated user.
func userID(r *http.Request) (int64, bool) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		return 0, false
	}
	return u.ID, true
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait for in-flight requests (30s budget)
//  3. Wait for queued emails; they run detached from request contexts
//  4. Close the database
func (s *Server) Start() error {
	defer func() {
		s.deps.Mailer.Wait()
		if err := s.deps.DB.Close(); err != nil {
			s.logger.Error("closing database", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.Bool("githubLogin", s.deps.GitHub != nil),
			slog.Bool("avatarUpload", s.deps.Uploader != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
