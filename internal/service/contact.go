package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/birthday"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/repository"
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 100

	MinQueryLength = 2
	MaxQueryLength = 100
)

// ContactService is the business layer for a user's address book. Every
// method takes the caller's user id and never reads or writes a contact
// owned by anyone else.
//
// "Today" comes from the injected clock, so birth-date validation and the
// upcoming-birthdays window can be tested against a fixed date.
type ContactService struct {
	repo   repository.ContactRepository
	now    func() time.Time
	logger *slog.Logger
}

func NewContactService(repo repository.ContactRepository, logger *slog.Logger) *ContactService {
	return &ContactService{
		repo:   repo,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// WithClock replaces the service clock.
func (s *ContactService) WithClock(now func() time.Time) *ContactService {
	s.now = now
	return s
}

// today is the current date in UTC, whatever zone the clock reports in.
func (s *ContactService) today() model.Date {
	return model.DateOf(s.now().UTC())
}

// List returns the caller's contacts ordered by id.
func (s *ContactService) List(ctx context.Context, userID int64, limit, offset int) ([]model.Contact, error) {
	contacts, err := s.repo.List(ctx, userID, pageOptions(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("service/contact: listing for user %d: %w", userID, err)
	}
	return contacts, nil
}

func (s *ContactService) GetByID(ctx context.Context, userID, id int64) (*model.Contact, error) {
	contact, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, wrapContactErr("getting", id, err)
	}
	return contact, nil
}

// Create validates and stores a new contact owned by userID.
func (s *ContactService) Create(ctx context.Context, userID int64, c model.Contact) (*model.Contact, error) {
	// === VALIDATION ===
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)

	required := []struct{ field, value string }{
		{"first_name", c.FirstName},
		{"last_name", c.LastName},
		{"email", c.Email},
		{"phone", c.Phone},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, apperror.ValidationFailed(r.field, r.field+" is required")
		}
	}
	if c.BirthDate.IsZero() {
		return nil, apperror.ValidationFailed("birth_date", "birth_date is required")
	}
	if err := s.checkBirthDate(c.BirthDate); err != nil {
		return nil, err
	}

	// === PERSIST ===
	// The owner always comes from the authenticated caller, never the body.
	c.ID = 0
	c.UserID = userID
	if err := s.repo.Create(ctx, &c); err != nil {
		return nil, fmt.Errorf("service/contact: creating for user %d: %w", userID, err)
	}

	s.logger.Info("contact created",
		slog.Int64("userID", userID),
		slog.Int64("contactID", c.ID),
	)
	return &c, nil
}

// Update applies the non-nil fields of patch. A supplied field may not be
// blanked except notes.
func (s *ContactService) Update(ctx context.Context, userID, id int64, patch model.ContactPatch) (*model.Contact, error) {
	patch = trimPatch(patch)

	for _, f := range []struct {
		field string
		value *string
	}{
		{"first_name", patch.FirstName},
		{"last_name", patch.LastName},
		{"email", patch.Email},
		{"phone", patch.Phone},
	} {
		if f.value != nil && *f.value == "" {
			return nil, apperror.ValidationFailed(f.field, f.field+" must not be empty")
		}
	}
	if patch.BirthDate != nil {
		if patch.BirthDate.IsZero() {
			return nil, apperror.ValidationFailed("birth_date", "birth_date must not be empty")
		}
		if err := s.checkBirthDate(*patch.BirthDate); err != nil {
			return nil, err
		}
	}

	contact, err := s.repo.Update(ctx, userID, id, patch)
	if err != nil {
		return nil, wrapContactErr("updating", id, err)
	}

	s.logger.Info("contact updated",
		slog.Int64("userID", userID),
		slog.Int64("contactID", id),
	)
	return contact, nil
}

// Delete removes the contact and returns the confirmation message.
func (s *ContactService) Delete(ctx context.Context, userID, id int64) (string, error) {
	contact, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return "", wrapContactErr("deleting", id, err)
	}

	s.logger.Info("contact deleted",
		slog.Int64("userID", userID),
		slog.Int64("contactID", id),
	)
	return fmt.Sprintf("Contact '%s' successfully deleted", contact.FullName()), nil
}

// Search finds contacts whose first name, last name or email contains
// query, ignoring case.
func (s *ContactService) Search(ctx context.Context, userID int64, query string, limit, offset int) ([]model.Contact, error) {
	query = strings.TrimSpace(query)
	if n := utf8.RuneCountInString(query); n < MinQueryLength || n > MaxQueryLength {
		return nil, apperror.ValidationFailed("query",
			fmt.Sprintf("query must be between %d and %d characters", MinQueryLength, MaxQueryLength))
	}

	contacts, err := s.repo.Search(ctx, userID, query, pageOptions(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("service/contact: searching for user %d: %w", userID, err)
	}
	return contacts, nil
}

// UpcomingBirthdays returns contacts with a birthday in the next
// birthday.DefaultWindow days, today included.
func (s *ContactService) UpcomingBirthdays(ctx context.Context, userID int64) ([]model.Contact, error) {
	contacts, err := s.repo.UpcomingBirthdays(ctx, userID, s.today(), birthday.DefaultWindow)
	if err != nil {
		return nil, fmt.Errorf("service/contact: upcoming birthdays for user %d: %w", userID, err)
	}
	return contacts, nil
}

func (s *ContactService) checkBirthDate(d model.Date) error {
	if d.After(s.today()) {
		return apperror.ValidationFailed("birth_date", "Birthday cannot be in the future")
	}
	return nil
}

// pageOptions clamps client-supplied pagination.
func pageOptions(limit, offset int) repository.ListOptions {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return repository.ListOptions{Limit: limit, Offset: offset}
}

func trimPatch(p model.ContactPatch) model.ContactPatch {
	trim := func(s *string) *string {
		if s == nil {
			return nil
		}
		v := strings.TrimSpace(*s)
		return &v
	}
	p.FirstName = trim(p.FirstName)
	p.LastName = trim(p.LastName)
	p.Email = trim(p.Email)
	p.Phone = trim(p.Phone)
	return p
}

// wrapContactErr passes NotFound through unchanged so the client sees the
// store's message.
func wrapContactErr(action string, id int64, err error) error {
	if errors.Is(err, apperror.ErrNotFound) {
		return err
	}
	return fmt.Errorf("service/contact: %s %s: %w", action, strconv.FormatInt(id, 10), err)
}
