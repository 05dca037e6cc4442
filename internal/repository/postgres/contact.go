package postgres

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

var _ repository.ContactRepository = (*ContactStore)(nil)

// ContactStore is the contacts table. Every statement is scoped by user_id.
type ContactStore struct {
	conn *sql.DB
}

const contactColumns = `id, user_id, first_name, last_name, email, phone, birth_date, notes`

func scanContact(row scanner) (*model.Contact, error) {
	var c model.Contact
	if err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.FirstName,
		&c.LastName,
		&c.Email,
		&c.Phone,
		&c.BirthDate,
		&c.Notes,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func contactNotFound(id int64) error {
	return apperror.NotFound("contact", strconv.FormatInt(id, 10))
}

func (s *ContactStore) List(ctx context.Context, userID int64, opts repository.ListOptions) ([]model.Contact, error) {
	return s.query(ctx, "listing contacts",
		`SELECT `+contactColumns+` FROM contacts
		 WHERE user_id = $1
		 ORDER BY id
		 LIMIT $2 OFFSET $3`,
		userID, pgLimit(opts.Limit), opts.Offset,
	)
}

func (s *ContactStore) GetByID(ctx context.Context, userID, id int64) (*model.Contact, error) {
	return s.one(ctx, id, "getting contact",
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
}

func (s *ContactStore) Create(ctx context.Context, contact *model.Contact) error {
	err := s.conn.QueryRowContext(ctx,
		`INSERT INTO contacts (user_id, first_name, last_name, email, phone, birth_date, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		contact.UserID,
		contact.FirstName,
		contact.LastName,
		contact.Email,
		contact.Phone,
		contact.BirthDate,
		contact.Notes,
	).Scan(&contact.ID)
	if err != nil {
		return fmt.Errorf("postgres: creating contact: %w", err)
	}
	return nil
}

func (s *ContactStore) Update(ctx context.Context, userID, id int64, patch model.ContactPatch) (*model.Contact, error) {
	assignments := repository.ContactAssignments(patch)
	if len(assignments) == 0 {
		return s.GetByID(ctx, userID, id)
	}

	sets := make([]string, 0, len(assignments))
	args := make([]any, 0, len(assignments)+2)
	for i, a := range assignments {
		sets = append(sets, fmt.Sprintf("%s = $%d", a.Column, i+1))
		args = append(args, a.Value)
	}
	n := len(args)
	args = append(args, id, userID)

	return s.one(ctx, id, "updating contact",
		fmt.Sprintf(`UPDATE contacts SET %s WHERE id = $%d AND user_id = $%d RETURNING %s`,
			strings.Join(sets, ", "), n+1, n+2, contactColumns),
		args...,
	)
}

func (s *ContactStore) Delete(ctx context.Context, userID, id int64) (*model.Contact, error) {
	return s.one(ctx, id, "deleting contact",
		`DELETE FROM contacts WHERE id = $1 AND user_id = $2 RETURNING `+contactColumns,
		id, userID,
	)
}

// Search uses ILIKE, which folds non-ASCII letters too as long as the
// database was created with a UTF-8, non-C ctype (or the ICU provider).
func (s *ContactStore) Search(ctx context.Context, userID int64, query string, opts repository.ListOptions) ([]model.Contact, error) {
	return s.query(ctx, "searching contacts",
		`SELECT `+contactColumns+` FROM contacts
		 WHERE user_id = $1
		   AND (first_name ILIKE $2 ESCAPE '\'
		     OR last_name  ILIKE $2 ESCAPE '\'
		     OR email      ILIKE $2 ESCAPE '\')
		 ORDER BY id
		 LIMIT $3 OFFSET $4`,
		userID, repository.LikePattern(query), pgLimit(opts.Limit), opts.Offset,
	)
}

func (s *ContactStore) UpcomingBirthdays(ctx context.Context, userID int64, from model.Date, days int) ([]model.Contact, error) {
	return s.query(ctx, "listing upcoming birthdays",
		`SELECT `+contactColumns+` FROM contacts
		 WHERE user_id = $1
		   AND to_char(birth_date, 'MM-DD') = ANY($2)
		 ORDER BY id`,
		userID, birthday.Keys(from, days),
	)
}

// one runs a single-row statement and maps "no row" to NotFound.
func (s *ContactStore) one(ctx context.Context, id int64, action, q string, args ...any) (*model.Contact, error) {
	c, err := scanContact(s.conn.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contactNotFound(id)
		}
		return nil, fmt.Errorf("postgres: %s %d: %w", action, id, err)
	}
	return c, nil
}

func (s *ContactStore) query(ctx context.Context, action, q string, args ...any) ([]model.Contact, error) {
	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", action, err)
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning contact: %w", err)
		}
		contacts = append(contacts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating contacts: %w", err)
	}
	return contacts, nil
}
