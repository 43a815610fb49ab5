package models

import (
	"time"

	"github.com/lib/pq"
)

// Recipient is a letter writer. Recipients are not platform users; they are
// reached exclusively through emailed secure links.
type Recipient struct {
	ID          string  `db:"id" json:"id"`
	CreatedBy   string  `db:"created_by" json:"created_by"`
	Name        string  `db:"name" json:"name"`
	Title       string  `db:"title" json:"title"`
	Institution string  `db:"institution" json:"institution"`
	Department  *string `db:"department" json:"department,omitempty"`

	Emails       pq.StringArray `db:"emails" json:"emails"`
	PrimaryEmail string         `db:"primary_email" json:"primary_email"`

	Phone             *string `db:"phone" json:"phone,omitempty"`
	PreferredLanguage *string `db:"preferred_language" json:"preferred_language,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HasEmail reports whether addr is among the recipient's known addresses.
func (r *Recipient) HasEmail(addr string) bool {
	for _, e := range r.Emails {
		if e == addr {
			return true
		}
	}
	return false
}

// RecipientFilter captures list criteria for the recipient directory.
type RecipientFilter struct {
	CreatedBy string
	Search    string
	Page      int
	PageSize  int
}
