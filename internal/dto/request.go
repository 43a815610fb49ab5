package dto

import (
	"time"

	"github.com/noah-isme/reco-letter-api/internal/models"
)

// CreateRequestPayload captures POST /requests.
type CreateRequestPayload struct {
	RecipientID       string                 `json:"recipientId" validate:"required"`
	Title             string                 `json:"title" validate:"required,max=200"`
	Description       string                 `json:"description" validate:"max=4000"`
	Deadline          time.Time              `json:"deadline" validate:"required"`
	Priority          models.RequestPriority `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	ApplicationID     *string                `json:"applicationId,omitempty"`
	ScholarshipID     *string                `json:"scholarshipId,omitempty"`
	ReminderIntervals []int                  `json:"reminderIntervals" validate:"omitempty,dive,min=1,max=365"`
}

// SendRequestResponse is returned after a request is sent to its recipient.
type SendRequestResponse struct {
	Request    models.RecommendationRequest `json:"request"`
	PortalLink string                       `json:"portal_link"`
	TokenTTL   string                       `json:"token_ttl"`
}

// RequestSummary is the cached per-student dashboard payload.
type RequestSummary struct {
	Total    int                          `json:"total"`
	ByStatus map[models.RequestStatus]int `json:"by_status"`
	Overdue  int                          `json:"overdue"`
}

// VerifyLetterPayload captures the admin verification overlay.
type VerifyLetterPayload struct {
	Notes string `json:"notes" validate:"max=2000"`
}
