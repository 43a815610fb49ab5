package dto

// CreateRecipientPayload captures POST /recipients.
type CreateRecipientPayload struct {
	Name              string   `json:"name" validate:"required,max=200"`
	Title             string   `json:"title" validate:"max=200"`
	Institution       string   `json:"institution" validate:"required,max=200"`
	Department        *string  `json:"department,omitempty" validate:"omitempty,max=200"`
	Emails            []string `json:"emails" validate:"required,min=1,dive,email"`
	PrimaryEmail      string   `json:"primaryEmail" validate:"required,email"`
	Phone             *string  `json:"phone,omitempty" validate:"omitempty,max=40"`
	PreferredLanguage *string  `json:"preferredLanguage,omitempty" validate:"omitempty,max=20"`
}

// UpdateRecipientPayload captures PUT /recipients/:id. Nil fields are untouched.
type UpdateRecipientPayload struct {
	Name              *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Title             *string  `json:"title,omitempty" validate:"omitempty,max=200"`
	Institution       *string  `json:"institution,omitempty" validate:"omitempty,max=200"`
	Department        *string  `json:"department,omitempty" validate:"omitempty,max=200"`
	Emails            []string `json:"emails,omitempty" validate:"omitempty,min=1,dive,email"`
	PrimaryEmail      *string  `json:"primaryEmail,omitempty" validate:"omitempty,email"`
	Phone             *string  `json:"phone,omitempty" validate:"omitempty,max=40"`
	PreferredLanguage *string  `json:"preferredLanguage,omitempty" validate:"omitempty,max=20"`
}
