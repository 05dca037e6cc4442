// Package handler contains the HTTP handlers of the contacts API.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (path and query params, JSON or form body)
// 2. Validate its shape and call the service layer
// 3. Write the HTTP response (status code, headers, body)
//
// Handlers hold no business rules. Everything a non-HTTP caller would also
// need lives in internal/service.
package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageHandler serves the few server-rendered HTML pages. Today that is only
// the form behind the password-reset email link.
//
// Templates are parsed once at startup; base.html defines the page shell
// and each page fills in {{define "content"}}.
type PageHandler struct {
	resetForm *template.Template
	logger    *slog.Logger
}

func NewPageHandler(logger *slog.Logger) (*PageHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/reset_password_form.html")
	if err != nil {
		return nil, err
	}
	return &PageHandler{resetForm: tmpl, logger: logger}, nil
}

// HandleResetPasswordForm renders a form that posts new_password back to
// the same URL.
//
// HTTP: GET /auth/set_new_password/{token}
//
// The token is not checked here; POST does that, so an expired link shows
// the form and fails on submit with a clear message.
func (h *PageHandler) HandleResetPasswordForm(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"Title":  "Reset password",
		"Action": "/auth/set_new_password/" + url.PathEscape(chi.URLParam(r, "token")),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	// Keep the token out of Referer headers sent to any linked resource.
	w.Header().Set("Referrer-Policy", "no-referrer")

	if err := h.resetForm.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template",
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
