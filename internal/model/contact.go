package model

// Contact is an address-book entry. Every contact belongs to exactly one
// user; deleting the user removes their contacts.
type Contact struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	BirthDate Date   `json:"birth_date"`
	Notes     string `json:"notes"`
}

// FullName is "First Last", used in delete confirmations.
func (c *Contact) FullName() string {
	return c.FirstName + " " + c.LastName
}

// ContactPatch carries a partial update. A nil field is left untouched; a
// non-nil field replaces the stored value, even if it points at "".
type ContactPatch struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	BirthDate *Date   `json:"birth_date"`
	Notes     *string `json:"notes"`
}

// IsEmpty reports whether the patch would change nothing.
func (p ContactPatch) IsEmpty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil &&
		p.Phone == nil && p.BirthDate == nil && p.Notes == nil
}
