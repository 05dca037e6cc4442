package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// SecurityHeaders sets the response headers every API response should
// carry. Pages that need something stricter (the reset form sets its own
// Referrer-Policy) override them in the handler.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// CORSOptions configures the CORS middleware.
type CORSOptions struct {
	// AllowedOrigins lists exact origins. "*" allows any origin.
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int // seconds a preflight may be cached
}

// DefaultCORSOptions allows the methods and headers the API uses.
func DefaultCORSOptions(origins []string) CORSOptions {
	return CORSOptions{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         3600,
	}
}

// CORS answers preflight requests and adds Access-Control-* headers to
// requests from allowed origins.
//
// Auth is a bearer header, not a cookie, so credentials are never allowed
// and a wildcard origin is answered with a literal "*".
func CORS(opts CORSOptions) func(http.Handler) http.Handler {
	allowAny := false
	allowed := make(map[string]bool, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		if o == "*" {
			allowAny = true
		}
		allowed[o] = true
	}
	methods := strings.Join(opts.AllowedMethods, ", ")
	headers := strings.Join(opts.AllowedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			if !allowAny && !allowed[origin] {
				// Not ours to serve cross-origin; the browser blocks the
				// response because no Allow-Origin header is set.
				next.ServeHTTP(w, r)
				return
			}
			if allowAny {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
			}

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if !preflight {
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			if opts.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(opts.MaxAge))
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
