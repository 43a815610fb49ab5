package models

import (
	"time"

	"github.com/lib/pq"
)

// RequestStatus captures the recommendation request lifecycle.
type RequestStatus string

const (
	RequestStatusDraft     RequestStatus = "DRAFT"
	RequestStatusSent      RequestStatus = "SENT"
	RequestStatusPending   RequestStatus = "PENDING"
	RequestStatusReceived  RequestStatus = "RECEIVED"
	RequestStatusCancelled RequestStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are allowed from s.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusReceived || s == RequestStatusCancelled
}

// CanTransitionTo encodes the state machine:
// draft → sent → pending → received, cancelled reachable from any non-terminal
// state, and re-send allowed from pending.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	switch next {
	case RequestStatusSent:
		return s == RequestStatusDraft || s == RequestStatusPending
	case RequestStatusPending:
		return s == RequestStatusSent
	case RequestStatusReceived:
		return s == RequestStatusSent || s == RequestStatusPending
	case RequestStatusCancelled:
		return !s.Terminal()
	}
	return false
}

// RequestPriority is advisory ordering for the student's dashboard.
type RequestPriority string

const (
	PriorityLow    RequestPriority = "LOW"
	PriorityMedium RequestPriority = "MEDIUM"
	PriorityHigh   RequestPriority = "HIGH"
)

// RecommendationRequest is a student's ask for a letter from one recipient.
// The secure token is the recipient's only capability; it is set on first send
// and refreshed on every re-send.
type RecommendationRequest struct {
	ID            string  `db:"id" json:"id"`
	StudentID     string  `db:"student_id" json:"student_id"`
	RecipientID   string  `db:"recipient_id" json:"recipient_id"`
	ApplicationID *string `db:"application_id" json:"application_id,omitempty"`
	ScholarshipID *string `db:"scholarship_id" json:"scholarship_id,omitempty"`

	Title       string          `db:"title" json:"title"`
	Description string          `db:"description" json:"description"`
	Priority    RequestPriority `db:"priority" json:"priority"`
	Deadline    time.Time       `db:"deadline" json:"deadline"`
	Status      RequestStatus   `db:"status" json:"status"`

	SecureToken    *string    `db:"secure_token" json:"-"`
	TokenExpiresAt *time.Time `db:"token_expires_at" json:"token_expires_at,omitempty"`

	ReminderIntervals pq.Int64Array `db:"reminder_intervals" json:"reminder_intervals"`
	NextReminderDate  *time.Time    `db:"next_reminder_date" json:"next_reminder_date,omitempty"`
	LastReminderSent  *time.Time    `db:"last_reminder_sent" json:"last_reminder_sent,omitempty"`

	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
	SentAt     *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	ReceivedAt *time.Time `db:"received_at" json:"received_at,omitempty"`
}

// TokenValidAt reports whether the secure token grants access at the given instant.
// Expiry is enforced on every read, not just at issuance.
func (r *RecommendationRequest) TokenValidAt(now time.Time) bool {
	if r.SecureToken == nil || r.TokenExpiresAt == nil {
		return false
	}
	return r.TokenExpiresAt.After(now)
}

// Intervals returns the reminder thresholds as ints, largest first.
func (r *RecommendationRequest) Intervals() []int {
	out := make([]int, 0, len(r.ReminderIntervals))
	for _, v := range r.ReminderIntervals {
		out = append(out, int(v))
	}
	return out
}

// RequestDetail joins the request with its recipient and latest letter metadata.
type RequestDetail struct {
	Request      RecommendationRequest `json:"request"`
	Recipient    *Recipient            `json:"recipient,omitempty"`
	LatestLetter *RecommendationLetter `json:"latest_letter,omitempty"`
}

// RequestFilter captures list criteria for the student-side endpoints.
type RequestFilter struct {
	StudentID string
	Status    RequestStatus
	Page      int
	PageSize  int
}

// StatusCount aggregates requests per status for the dashboard summary.
type StatusCount struct {
	Status RequestStatus `db:"status" json:"status"`
	Count  int           `db:"count" json:"count"`
}

// OverdueRequest is a row of the operator overdue report.
type OverdueRequest struct {
	RequestID     string        `db:"request_id" json:"request_id"`
	Title         string        `db:"title" json:"title"`
	StudentID     string        `db:"student_id" json:"student_id"`
	RecipientName string        `db:"recipient_name" json:"recipient_name"`
	PrimaryEmail  string        `db:"primary_email" json:"primary_email"`
	Status        RequestStatus `db:"status" json:"status"`
	Deadline      time.Time     `db:"deadline" json:"deadline"`
	DaysOverdue   int           `db:"days_overdue" json:"days_overdue"`
}
