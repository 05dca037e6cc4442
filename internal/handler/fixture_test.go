package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/contacts-api/internal/auth"
	"github.com/sakif/contacts-api/internal/handler"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/repository/sqlite"
	"github.com/sakif/contacts-api/internal/service"
)

// Handler tests run the real services over an in-memory SQLite database.
// Only the outside world is faked: email delivery, avatar storage and the
// GitHub OAuth provider.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// recordingNotifier keeps the last token mailed to each address.
type recordingNotifier struct {
	mu      sync.Mutex
	confirm map[string]string
	reset   map[string]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{confirm: map[string]string{}, reset: map[string]string{}}
}

func (n *recordingNotifier) SendConfirmation(_ context.Context, _, email, token string, _ time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirm[email] = token
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, _, email, token string, _ time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset[email] = token
}

func (n *recordingNotifier) confirmToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.confirm[email]
}

func (n *recordingNotifier) resetToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reset[email]
}

type fakeUploader struct {
	publicID    string
	contentType string
	size        int
}

func (u *fakeUploader) Upload(_ context.Context, publicID string, body io.Reader, contentType string) (string, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	u.publicID, u.contentType, u.size = publicID, contentType, len(b)
	return "https://cdn.example.com/" + publicID, nil
}

type fakeOAuth struct {
	user *auth.GitHubUser
	err  error
	code string
}

func (f *fakeOAuth) AuthURL(state string) string {
	return "https://github.com/login/oauth/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeOAuth) Exchange(_ context.Context, code string) (*auth.GitHubUser, error) {
	f.code = code
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

type fixture struct {
	router   http.Handler
	db       *sqlite.DB
	notifier *recordingNotifier
	uploader *fakeUploader
	github   *fakeOAuth
}

// newFixture mounts the handlers on the same paths the server uses.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := testLogger()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", auth.DefaultTTLs())
	require.NoError(t, err)
	passwords := auth.NewPasswordService(bcrypt.MinCost)

	f := &fixture{
		db:       db,
		notifier: newRecordingNotifier(),
		uploader: &fakeUploader{},
		github: &fakeOAuth{user: &auth.GitHubUser{
			ID: 42, Login: "octocat", Email: "octocat@example.com",
		}},
	}

	authSvc := service.NewAuthService(db.Users(), tokens, passwords, f.notifier, logger)
	authH := handler.NewAuthHandler(authSvc, f.github, logger)
	contactH := handler.NewContactHandler(service.NewContactService(db.Contacts(), logger), logger)
	userH := handler.NewUserHandler(service.NewUserService(db.Users(), f.uploader, logger), logger)
	pages, err := handler.NewPageHandler(logger)
	require.NoError(t, err)

	requireAuth := auth.RequireAuth(auth.NewResolver(tokens, db.Users()))

	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authH.HandleRegister)
		r.Post("/login", authH.HandleLogin)
		r.Get("/refresh_token", authH.HandleRefreshToken)
		r.Get("/email_confirmation/{token}", authH.HandleConfirmEmail)
		r.Post("/request_confirmation_email", authH.HandleRequestConfirmationEmail)
		r.Post("/reset_password", authH.HandleResetPassword)
		r.Get("/set_new_password/{token}", pages.HandleResetPasswordForm)
		r.Post("/set_new_password/{token}", authH.HandleSetNewPassword)
		r.Get("/github/login", authH.HandleGitHubLogin)
		r.Get("/github/callback", authH.HandleGitHubCallback)
	})
	r.Route("/contacts", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", contactH.HandleList)
		r.Post("/", contactH.HandleCreate)
		r.Get("/query", contactH.HandleSearch)
		r.Get("/upcoming_birthdays", contactH.HandleUpcomingBirthdays)
		r.Get("/{id}", contactH.HandleGetByID)
		r.Put("/{id}", contactH.HandleUpdate)
		r.Patch("/{id}", contactH.HandleUpdate)
		r.Delete("/{id}", contactH.HandleDelete)
	})
	r.Route("/users", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/me", userH.HandleMe)
		r.Patch("/avatar", userH.HandleUpdateAvatar)
	})
	f.router = r

	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) postJSON(path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return f.do(req)
}

func (f *fixture) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(req)
}

func (f *fixture) authed(method, path, body, token string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return f.do(req)
}

type loginBody struct {
	User         model.User `json:"user"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	TokenType    string     `json:"token_type"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

type messageBody struct {
	Message string `json:"message"`
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "body: %s", rr.Body.String())
	return v
}

// register creates an account and confirms it through the emailed link.
func (f *fixture) register(t *testing.T, username, email, password string) {
	t.Helper()
	rr := f.postJSON("/auth/register",
		`{"username":"`+username+`","email":"`+email+`","password":"`+password+`"}`, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	token := f.notifier.confirmToken(email)
	require.NotEmpty(t, token)
	rr = f.do(httptest.NewRequest(http.MethodGet, "/auth/email_confirmation/"+token, nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func (f *fixture) login(t *testing.T, email, password string) loginBody {
	t.Helper()
	rr := f.postForm("/auth/login", url.Values{"username": {email}, "password": {password}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return decode[loginBody](t, rr)
}

// signIn registers, confirms and logs in, returning an access token.
func (f *fixture) signIn(t *testing.T, username, email string) string {
	t.Helper()
	f.register(t, username, email, "secret123")
	return f.login(t, email, "secret123").AccessToken
}
