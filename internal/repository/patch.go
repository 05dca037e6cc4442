package repository

import "github.com/sakif/contacts-api/internal/model"

// Assignment is one "column = value" pair of an UPDATE.
type Assignment struct {
	Column string
	Value  any
}

// ContactAssignments lists the columns a patch touches, in a fixed order.
// The stores render them with their own placeholder syntax.
func ContactAssignments(p model.ContactPatch) []Assignment {
	var out []Assignment
	if p.FirstName != nil {
		out = append(out, Assignment{"first_name", *p.FirstName})
	}
	if p.LastName != nil {
		out = append(out, Assignment{"last_name", *p.LastName})
	}
	if p.Email != nil {
		out = append(out, Assignment{"email", *p.Email})
	}
	if p.Phone != nil {
		out = append(out, Assignment{"phone", *p.Phone})
	}
	if p.BirthDate != nil {
		out = append(out, Assignment{"birth_date", *p.BirthDate})
	}
	if p.Notes != nil {
		out = append(out, Assignment{"notes", *p.Notes})
	}
	return out
}
