package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/auth"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/service"
)

// ContactHandler serves /contacts. Every route sits behind RequireAuth, so
// the caller is always available from the request context.
type ContactHandler struct {
	contacts *service.ContactService
	logger   *slog.Logger
}

func NewContactHandler(contacts *service.ContactService, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{contacts: contacts, logger: logger}
}

// HandleList returns the caller's contacts.
//
// HTTP: GET /contacts?limit=10&offset=0
func (h *ContactHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	contacts, err := h.contacts.List(r.Context(), user.ID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

// HandleGetByID returns one contact.
//
// HTTP: GET /contacts/{id}
func (h *ContactHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	contact, err := h.contacts.GetByID(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// HandleCreate adds a contact.
//
// HTTP: POST /contacts
// REQUEST BODY:
//
//	{"first_name": "John", "last_name": "Doe", "email": "john@example.com",
//	 "phone": "+380501234567", "birth_date": "1990-05-17", "notes": "optional"}
func (h *ContactHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req contactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	contact, err := h.contacts.Create(r.Context(), user.ID, req.toModel())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, contact)
}

// HandleUpdate applies a partial update. PUT and PATCH both land here:
// fields missing from the body keep their stored value.
//
// HTTP: PUT /contacts/{id}, PATCH /contacts/{id}
func (h *ContactHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req contactPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	contact, err := h.contacts.Update(r.Context(), user.ID, id, req.ContactPatch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// HandleDelete removes a contact.
//
// HTTP: DELETE /contacts/{id}
// RESPONSE: {"message": "Contact 'John Doe' successfully deleted"}
func (h *ContactHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	msg, err := h.contacts.Delete(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, msg)
}

// HandleSearch finds contacts by name or email substring.
//
// HTTP: GET /contacts/query?query=jo&limit=10&offset=0
func (h *ContactHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	req := searchRequest{Query: strings.TrimSpace(r.URL.Query().Get("query"))}
	if err := validate(req); err != nil {
		writeError(w, err)
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	contacts, err := h.contacts.Search(r.Context(), user.ID, req.Query, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

// HandleUpcomingBirthdays lists contacts with a birthday in the next week.
//
// HTTP: GET /contacts/upcoming_birthdays
func (h *ContactHandler) HandleUpcomingBirthdays(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	contacts, err := h.contacts.UpcomingBirthdays(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

// currentUser reads the user RequireAuth stored in the context. A miss means
// the route was mounted without the middleware; it is answered as 401.
func currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("Not authenticated"))
		return nil, false
	}
	return user, true
}
