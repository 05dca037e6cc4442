package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON / writeError so the API has one
// success shape per route and exactly one error shape:
//
//	{"error": "not_found", "message": "contact not found with id 42"}
//
// "error" is machine-readable and stable; "message" is for humans.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/contacts-api/internal/apperror"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// MessageResponse is the body of routes that only report an outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends data with the given status. Headers must be set before
// WriteHeader; anything set afterwards is silently dropped.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Message: message})
}

// errorKinds maps each sentinel to its HTTP status and wire name. Checked in
// order with errors.Is, so a wrapped AppError resolves to its kind.
var errorKinds = []struct {
	sentinel error
	status   int
	name     string
}{
	{apperror.ErrValidation, http.StatusUnprocessableEntity, "validation_error"},
	{apperror.ErrBadRequest, http.StatusBadRequest, "bad_request"},
	{apperror.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{apperror.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperror.ErrConflict, http.StatusConflict, "conflict"},
}

// writeError maps a domain error to its status code. The service layer never
// sees HTTP; this is the only place the translation happens.
//
// Anything that is not an *apperror.AppError is an internal failure: it is
// logged in full and the client gets a generic message, because raw errors
// can carry SQL, file paths or upstream responses.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		for _, k := range errorKinds {
			if errors.Is(err, k.sentinel) {
				if k.status == http.StatusUnauthorized {
					w.Header().Set("WWW-Authenticate", "Bearer")
				}
				writeJSON(w, k.status, ErrorResponse{
					Error:   k.name,
					Message: appErr.Message,
					Field:   appErr.Field,
				})
				return
			}
		}
	}

	slog.Error("internal error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
