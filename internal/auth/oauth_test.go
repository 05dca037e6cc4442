package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newGitHubStub serves /user and /user/emails with canned bodies.
func newGitHubStub(t *testing.T, user, emails string) *GitHubProvider {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(user))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(emails))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := NewGitHubProvider("id", "secret", "http://localhost/cb")
	p.apiBase = srv.URL
	return p
}

func TestFetchUser_PublicEmail(t *testing.T) {
	p := newGitHubStub(t, `{"id":42,"login":"octocat","email":"Octo@GitHub.com"}`, `[]`)

	u, err := p.fetchUser(context.Background(), http.DefaultClient)

	require.NoError(t, err)
	assert.Equal(t, int64(42), u.ID)
	assert.Equal(t, "octo@github.com", u.Email)
}

func TestFetchUser_FallsBackToPrimaryVerifiedEmail(t *testing.T) {
	p := newGitHubStub(t,
		`{"id":42,"login":"octocat","email":null}`,
		`[{"email":"old@example.com","primary":false,"verified":true},
		  {"email":"primary@example.com","primary":true,"verified":true}]`,
	)

	u, err := p.fetchUser(context.Background(), http.DefaultClient)

	require.NoError(t, err)
	assert.Equal(t, "primary@example.com", u.Email)
}

func TestFetchUser_NoVerifiedEmail(t *testing.T) {
	p := newGitHubStub(t,
		`{"id":42,"login":"octocat"}`,
		`[{"email":"primary@example.com","primary":true,"verified":false}]`,
	)

	_, err := p.fetchUser(context.Background(), http.DefaultClient)
	assert.Error(t, err)
}

func TestAuthURL_CarriesState(t *testing.T) {
	p := NewGitHubProvider("client-id", "secret", "http://localhost/cb")

	u := p.AuthURL("state-123")

	assert.True(t, strings.HasPrefix(u, "https://github.com/login/oauth/authorize"))
	assert.Contains(t, u, "state=state-123")
	assert.Contains(t, u, "client_id=client-id")
}
