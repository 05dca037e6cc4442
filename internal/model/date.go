package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

// ErrInvalidDate is wrapped by every parse failure.
var ErrInvalidDate = errors.New("invalid date")

// Date is a calendar date with no time of day and no zone.
//
// Birth dates are civil dates: "1990-12-30" is the 30th of December no
// matter where the server runs. Keeping them as time.Time invites off-by-one
// bugs when a zone shifts midnight into the previous day, so Date stores the
// value normalized to midnight UTC and only ever compares year/month/day.
//
// Date implements json.Marshaler/Unmarshaler ("2006-01-02") and
// driver.Valuer/sql.Scanner so it can be bound and scanned directly.
type Date struct {
	t time.Time
}

// NewDate returns the given calendar date. Out-of-range values normalize the
// way time.Date does (Feb 30 becomes Mar 1 or 2).
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a "2006-01-02" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("model: parsing date %q: %w: %v", s, ErrInvalidDate, err)
	}
	return Date{t: t}, nil
}

func (d Date) Year() int          { return d.t.Year() }
func (d Date) Month() time.Month  { return d.t.Month() }
func (d Date) Day() int           { return d.t.Day() }
func (d Date) IsZero() bool       { return d.t.IsZero() }
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }
func (d Date) After(o Date) bool  { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool  { return d.t.Equal(o.t) }

// AddDays returns the date n days later (or earlier when n < 0).
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// MonthDay returns the "MM-DD" key used for year-independent comparisons.
func (d Date) MonthDay() string {
	return d.t.Format("01-02")
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("model: date must be a string: %w", ErrInvalidDate)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores the date as "2006-01-02" text. Postgres accepts that literal
// for a DATE column and SQLite keeps it as TEXT.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan accepts the representations the SQLite and pgx drivers hand back.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("model: cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(s string) error {
	// Tolerate a trailing time part written by other tools.
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
