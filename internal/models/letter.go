package models

import "time"

// RecommendationLetter is one submitted version of a letter for a request.
// Versions are monotonic per request starting at 1; previous_version_id chains
// back to the prior submission as a plain foreign key.
type RecommendationLetter struct {
	ID          string `db:"id" json:"id"`
	RequestID   string `db:"request_id" json:"request_id"`
	RecipientID string `db:"recipient_id" json:"recipient_id"`

	Content  *string `db:"content" json:"content,omitempty"`
	FileName *string `db:"file_name" json:"file_name,omitempty"`
	FileKey  *string `db:"file_key" json:"-"`
	FileURL  *string `db:"file_url" json:"file_url,omitempty"`
	FileType *string `db:"file_type" json:"file_type,omitempty"`
	FileSize *int64  `db:"file_size" json:"file_size,omitempty"`

	Version           int     `db:"version" json:"version"`
	PreviousVersionID *string `db:"previous_version_id" json:"previous_version_id,omitempty"`

	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
	SubmittedBy string    `db:"submitted_by" json:"submitted_by"`

	IsVerified        bool       `db:"is_verified" json:"is_verified"`
	VerificationNotes *string    `db:"verification_notes" json:"verification_notes,omitempty"`
	VerifiedBy        *string    `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt        *time.Time `db:"verified_at" json:"verified_at,omitempty"`
}

// HasFile reports whether this version carries an uploaded document.
func (l *RecommendationLetter) HasFile() bool {
	return l.FileKey != nil && *l.FileKey != ""
}
