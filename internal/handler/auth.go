package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/auth"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/service"
)

// OAuthProvider is the slice of auth.GitHubProvider the handler needs.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthHandler serves the /auth routes: registration, password login, token
// refresh, email confirmation, password reset and GitHub login.
type AuthHandler struct {
	auth   *service.AuthService
	github OAuthProvider // nil when GitHub login is not configured
	logger *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, github OAuthProvider, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   authService,
		github: github,
		logger: logger,
	}
}

// RegisterResponse is the 201 body of POST /auth/register.
type RegisterResponse struct {
	User    *model.User `json:"user"`
	Message string      `json:"message"`
}

// LoginResponse carries the user and the token pair side by side:
//
//	{"user": {...}, "access_token": "...", "refresh_token": "...", "token_type": "bearer"}
type LoginResponse struct {
	User *model.User `json:"user"`
	*auth.TokenPair
}

func loginResponse(res *service.LoginResult) LoginResponse {
	return LoginResponse{User: res.User, TokenPair: res.Tokens}
}

// HandleRegister creates an account.
//
// HTTP: POST /auth/register
// REQUEST BODY: {"username": "alice", "email": "alice@example.com", "password": "..."}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{User: res.User, Message: res.Message})
}

// HandleLogin exchanges credentials for a token pair.
//
// HTTP: POST /auth/login
// REQUEST BODY: application/x-www-form-urlencoded, username=<email>&password=...
//
// The field is called "username" (not "email") so standard OAuth2 password
// clients work unchanged.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, apperror.BadRequest("invalid form body"))
		return
	}

	req := loginRequest{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}
	if err := validate(req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse(res))
}

// HandleRefreshToken rotates the token pair.
//
// HTTP: GET /auth/refresh_token
// Auth: Authorization: Bearer <refresh token>
func (h *AuthHandler) HandleRefreshToken(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r)
	if !ok {
		writeError(w, apperror.Unauthorized("Not authenticated"))
		return
	}

	res, err := h.auth.RefreshToken(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse(res))
}

// HandleConfirmEmail is the target of the link in the confirmation email.
//
// HTTP: GET /auth/email_confirmation/{token}
func (h *AuthHandler) HandleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	msg, err := h.auth.ConfirmEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, msg)
}

// HandleRequestConfirmationEmail re-sends the confirmation link.
//
// HTTP: POST /auth/request_confirmation_email
// REQUEST BODY: {"email": "alice@example.com"}
func (h *AuthHandler) HandleRequestConfirmationEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	msg, err := h.auth.RequestConfirmationEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, msg)
}

// HandleResetPassword emails a password-reset link.
//
// HTTP: POST /auth/reset_password
// REQUEST: {"email": "..."} body, or ?email=... with no body
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if q := r.URL.Query().Get("email"); q != "" {
		req.Email = q
		if err := validate(req); err != nil {
			writeError(w, err)
			return
		}
	} else if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	msg, err := h.auth.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, msg)
}

// HandleSetNewPassword completes a password reset.
//
// HTTP: POST /auth/set_new_password/{token}
// REQUEST: form field new_password (what the HTML form sends) or
// {"new_password": "..."} as JSON
func (h *AuthHandler) HandleSetNewPassword(w http.ResponseWriter, r *http.Request) {
	var req newPasswordRequest
	if isJSON(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeError(w, apperror.BadRequest("invalid form body"))
			return
		}
		req.NewPassword = r.PostForm.Get("new_password")
		if err := validate(req); err != nil {
			writeError(w, err)
			return
		}
	}

	msg, err := h.auth.CompletePasswordReset(r.Context(), chi.URLParam(r, "token"), req.NewPassword)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, msg)
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state value goes both into the redirect and into a short-lived
// HttpOnly cookie. The callback only proceeds when the two match, which
// proves this server started the flow.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state, err := newOAuthState()
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/auth/github",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow and answers with the same
// body as password login.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		writeError(w, apperror.BadRequest("invalid OAuth state"))
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/auth/github",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		writeError(w, apperror.Unauthorized("GitHub authorization was denied"))
		return
	}

	// --- Step 2: Exchange code for GitHub user profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.BadRequest("missing OAuth code"))
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeError(w, apperror.Unauthorized("GitHub authentication failed"))
		return
	}

	// --- Step 3: Sign in (or register) and issue tokens ---
	res, err := h.auth.LoginWithGitHub(r.Context(), ghUser)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse(res))
}

func isJSON(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.EqualFold(ct, "application/json")
}

// newOAuthState returns 32 random bytes, hex-encoded.
func newOAuthState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("handler: generating oauth state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
