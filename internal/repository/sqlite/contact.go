package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/birthday"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/repository"
)

// compile-time check that *ContactStore implements repository.ContactRepository
var _ repository.ContactRepository = (*ContactStore)(nil)

// ContactStore is the contacts table.
//
// OWNERSHIP:
// Every statement carries "user_id = ?". A contact that exists but belongs
// to another user produces the same sql.ErrNoRows / zero rows as one that
// does not exist, so both surface as apperror.NotFound.
type ContactStore struct {
	conn *sql.DB
}

const contactColumns = `id, user_id, first_name, last_name, email, phone, birth_date, notes`

func scanContact(row scanner) (*model.Contact, error) {
	var c model.Contact
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.FirstName,
		&c.LastName,
		&c.Email,
		&c.Phone,
		&c.BirthDate,
		&c.Notes,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func contactNotFound(id int64) error {
	return apperror.NotFound("contact", strconv.FormatInt(id, 10))
}

// sqliteLimit maps "no limit" to SQLite's -1.
func sqliteLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// List returns one page of the user's contacts ordered by id.
func (s *ContactStore) List(ctx context.Context, userID int64, opts repository.ListOptions) ([]model.Contact, error) {
	return s.query(ctx, "listing contacts",
		`SELECT `+contactColumns+` FROM contacts
		 WHERE user_id = ?
		 ORDER BY id
		 LIMIT ? OFFSET ?`,
		userID, sqliteLimit(opts.Limit), opts.Offset,
	)
}

// GetByID returns the contact if it exists and belongs to userID.
func (s *ContactStore) GetByID(ctx context.Context, userID, id int64) (*model.Contact, error) {
	c, err := scanContact(s.conn.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = ? AND user_id = ?`,
		id, userID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contactNotFound(id)
		}
		return nil, fmt.Errorf("sqlite: getting contact %d: %w", id, err)
	}
	return c, nil
}

// Create inserts contact and sets its ID. UserID must already be set.
func (s *ContactStore) Create(ctx context.Context, contact *model.Contact) error {
	result, err := s.conn.ExecContext(ctx,
		`INSERT INTO contacts (user_id, first_name, last_name, email, phone, birth_date, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		contact.UserID,
		contact.FirstName,
		contact.LastName,
		contact.Email,
		contact.Phone,
		contact.BirthDate,
		contact.Notes,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating contact: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new contact id: %w", err)
	}
	contact.ID = id

	return nil
}

// Update applies patch in a single UPDATE ... WHERE id AND user_id, so there
// is no window between the ownership check and the write.
func (s *ContactStore) Update(ctx context.Context, userID, id int64, patch model.ContactPatch) (*model.Contact, error) {
	assignments := repository.ContactAssignments(patch)
	if len(assignments) == 0 {
		return s.GetByID(ctx, userID, id)
	}

	sets := make([]string, 0, len(assignments))
	args := make([]any, 0, len(assignments)+2)
	for _, a := range assignments {
		sets = append(sets, a.Column+" = ?")
		args = append(args, a.Value)
	}
	args = append(args, id, userID)

	c, err := scanContact(s.conn.QueryRowContext(ctx,
		`UPDATE contacts SET `+strings.Join(sets, ", ")+`
		 WHERE id = ? AND user_id = ?
		 RETURNING `+contactColumns,
		args...,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contactNotFound(id)
		}
		return nil, fmt.Errorf("sqlite: updating contact %d: %w", id, err)
	}
	return c, nil
}

// Delete removes the contact and returns the deleted row.
func (s *ContactStore) Delete(ctx context.Context, userID, id int64) (*model.Contact, error) {
	c, err := scanContact(s.conn.QueryRowContext(ctx,
		`DELETE FROM contacts WHERE id = ? AND user_id = ? RETURNING `+contactColumns,
		id, userID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contactNotFound(id)
		}
		return nil, fmt.Errorf("sqlite: deleting contact %d: %w", id, err)
	}
	return c, nil
}

// Search matches query as a case-insensitive substring of first name, last
// name or email. go_lower folds non-ASCII letters the same way LikePattern
// folds the query.
func (s *ContactStore) Search(ctx context.Context, userID int64, query string, opts repository.ListOptions) ([]model.Contact, error) {
	pattern := repository.LikePattern(query)
	return s.query(ctx, "searching contacts",
		`SELECT `+contactColumns+` FROM contacts
		 WHERE user_id = ?
		   AND (go_lower(first_name) LIKE ? ESCAPE '\'
		     OR go_lower(last_name)  LIKE ? ESCAPE '\'
		     OR go_lower(email)      LIKE ? ESCAPE '\')
		 ORDER BY id
		 LIMIT ? OFFSET ?`,
		userID, pattern, pattern, pattern, sqliteLimit(opts.Limit), opts.Offset,
	)
}

// UpcomingBirthdays filters on the "MM-DD" part of birth_date against the
// window keys from the birthday package.
func (s *ContactStore) UpcomingBirthdays(ctx context.Context, userID int64, from model.Date, days int) ([]model.Contact, error) {
	keys := birthday.Keys(from, days)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
	args := make([]any, 0, len(keys)+1)
	args = append(args, userID)
	for _, k := range keys {
		args = append(args, k)
	}

	return s.query(ctx, "listing upcoming birthdays",
		`SELECT `+contactColumns+` FROM contacts
		 WHERE user_id = ?
		   AND strftime('%m-%d', birth_date) IN (`+placeholders+`)
		 ORDER BY id`,
		args...,
	)
}

// query runs a multi-row SELECT and scans every row into a Contact.
// The result is never nil so it encodes as [] rather than null.
func (s *ContactStore) query(ctx context.Context, action, q string, args ...any) ([]model.Contact, error) {
	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", action, err)
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning contact: %w", err)
		}
		contacts = append(contacts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating contacts: %w", err)
	}

	return contacts, nil
}
