package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/service"
)

// Request bodies are validated for shape here (required, lengths, email
// syntax). Rules that depend on state or the clock, such as "birth date not
// in the future", live in the services.

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.RuneLength(1, 50)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 72)),
	)
}

type emailRequest struct {
	Email string `json:"email"`
}

func (r emailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type newPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

func (r newPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.NewPassword, validation.Required, validation.Length(6, 72)),
	)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type searchRequest struct {
	Query string `json:"query"`
}

func (r searchRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Query, validation.Required,
			validation.RuneLength(service.MinQueryLength, service.MaxQueryLength)),
	)
}

type contactRequest struct {
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	BirthDate model.Date `json:"birth_date"`
	Notes     string     `json:"notes"`
}

func (r contactRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.RuneLength(1, 50)),
		validation.Field(&r.LastName, validation.Required, validation.RuneLength(1, 50)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Phone, validation.Required, validation.RuneLength(1, 30), validation.By(possiblePhone)),
		validation.Field(&r.BirthDate, validation.By(requiredDate)),
		validation.Field(&r.Notes, validation.RuneLength(0, 500)),
	)
}

func (r contactRequest) toModel() model.Contact {
	return model.Contact{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Phone:     r.Phone,
		BirthDate: r.BirthDate,
		Notes:     r.Notes,
	}
}

// contactPatchRequest is a partial update: absent (or null) fields are left
// alone, present ones must be valid.
type contactPatchRequest struct {
	model.ContactPatch
}

func (r contactPatchRequest) Validate() error {
	p := r.ContactPatch
	return validation.ValidateStruct(&p,
		validation.Field(&p.FirstName, validation.NilOrNotEmpty, validation.RuneLength(1, 50)),
		validation.Field(&p.LastName, validation.NilOrNotEmpty, validation.RuneLength(1, 50)),
		validation.Field(&p.Email, validation.NilOrNotEmpty, validation.Length(3, 254), is.Email),
		validation.Field(&p.Phone, validation.NilOrNotEmpty, validation.RuneLength(1, 30), validation.By(possiblePhone)),
		validation.Field(&p.Notes, validation.RuneLength(0, 500)),
	)
}

// defaultPhoneRegion applies to numbers written without a +country prefix.
const defaultPhoneRegion = "UA"

// possiblePhone accepts numbers with a plausible length for their region.
// The value is stored as entered; nothing is reformatted.
func possiblePhone(value interface{}) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case *string:
		if v == nil {
			return nil
		}
		s = *v
	}
	if s == "" {
		return nil
	}
	num, err := phonenumbers.Parse(s, defaultPhoneRegion)
	if err != nil || !phonenumbers.IsPossibleNumber(num) {
		return errors.New("must be a valid phone number")
	}
	return nil
}

func requiredDate(value interface{}) error {
	if d, ok := value.(model.Date); ok && d.IsZero() {
		return errors.New("cannot be blank")
	}
	return nil
}

// ============================================================================
// Decoding
// ============================================================================

type validatable interface {
	Validate() error
}

// decodeJSON reads a JSON body into dst and validates it. Malformed JSON is
// a 400; well-formed but invalid input is a 422.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst validatable) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.BadRequest("request body is required")
		}
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, model.ErrInvalidDate):
			return apperror.ValidationFailed("birth_date", "birth_date: must be a date in YYYY-MM-DD format")
		case errors.As(err, &typeErr):
			return apperror.ValidationFailed(typeErr.Field,
				fmt.Sprintf("%s: wrong type", typeErr.Field))
		default:
			return apperror.BadRequest("invalid JSON body")
		}
	}
	return validate(dst)
}

// validate runs v.Validate and converts ozzo errors into a validation
// AppError naming the first offending field.
func validate(v validatable) error {
	err := v.Validate()
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for f := range fieldErrs {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		return apperror.ValidationFailed(fields[0], strings.TrimSuffix(err.Error(), "."))
	}
	return apperror.ValidationFailed("", err.Error())
}

// pagination reads limit and offset query parameters. Missing values are
// zero and the service applies defaults.
func pagination(r *http.Request) (limit, offset int, err error) {
	if limit, err = queryInt(r, "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(r, "offset"); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperror.ValidationFailed(name, name+": must be an integer")
	}
	return n, nil
}

func pathID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("id", "id: must be a positive integer")
	}
	return id, nil
}
