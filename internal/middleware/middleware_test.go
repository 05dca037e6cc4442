package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
})

func TestLogger(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"success", http.StatusOK, "INFO"},
		{"client error", http.StatusNotFound, "WARN"},
		{"server error", http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("hello"))
			})

			h := chimiddleware.RequestID(Logger(logger)(next))
			req := httptest.NewRequest(http.MethodGet, "/contacts?query=secret", nil)
			h.ServeHTTP(httptest.NewRecorder(), req)

			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			assert.Equal(t, tt.wantLevel, line["level"])
			assert.Equal(t, "GET", line["method"])
			assert.Equal(t, "/contacts", line["path"])
			assert.EqualValues(t, tt.status, line["status"])
			assert.EqualValues(t, 5, line["bytes"])
			assert.NotEmpty(t, line["requestID"])
			assert.NotContains(t, buf.String(), "secret")
		})
	}
}

func TestLogger_DefaultStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	Logger(logger)(okHandler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.EqualValues(t, http.StatusOK, line["status"])
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()

	SecurityHeaders(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Empty(t, rr.Header().Get("Strict-Transport-Security"))
}

func TestCORS(t *testing.T) {
	restricted := CORS(DefaultCORSOptions([]string{"https://app.example.com"}))(okHandler)
	open := CORS(DefaultCORSOptions([]string{"*"}))(okHandler)

	request := func(method, origin string, preflight bool) *http.Request {
		req := httptest.NewRequest(method, "/contacts", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		if preflight {
			req.Header.Set("Access-Control-Request-Method", "POST")
		}
		return req
	}

	t.Run("allowed origin", func(t *testing.T) {
		rr := httptest.NewRecorder()
		restricted.ServeHTTP(rr, request(http.MethodGet, "https://app.example.com", false))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", rr.Header().Get("Vary"))
	})

	t.Run("foreign origin", func(t *testing.T) {
		rr := httptest.NewRecorder()
		restricted.ServeHTTP(rr, request(http.MethodGet, "https://evil.example.com", false))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		rr := httptest.NewRecorder()
		restricted.ServeHTTP(rr, request(http.MethodOptions, "https://app.example.com", true))

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "PATCH")
		assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Authorization")
		assert.Equal(t, "3600", rr.Header().Get("Access-Control-Max-Age"))
		assert.Empty(t, rr.Body.String())
	})

	t.Run("wildcard", func(t *testing.T) {
		rr := httptest.NewRecorder()
		open.ServeHTTP(rr, request(http.MethodGet, "https://anything.example.com", false))

		assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("same-origin request untouched", func(t *testing.T) {
		rr := httptest.NewRecorder()
		open.ServeHTTP(rr, request(http.MethodGet, "", false))

		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, rr.Header().Get("Vary"))
	})
}
