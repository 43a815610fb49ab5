package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/reco-letter-api/internal/models"
)

const requestColumns = `id, student_id, recipient_id, application_id, scholarship_id,
       title, description, priority, deadline, status,
       secure_token, token_expires_at,
       reminder_intervals, next_reminder_date, last_reminder_sent,
       created_at, updated_at, sent_at, received_at`

// RequestRepository handles recommendation request persistence.
type RequestRepository struct {
	db      *sqlx.DB
	metrics queryTimer
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// WithMetrics attaches a query latency observer.
func (r *RequestRepository) WithMetrics(m queryTimer) *RequestRepository {
	r.metrics = m
	return r
}

func (r *RequestRepository) observe(label string, start time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveDBQuery(label, time.Since(start))
	}
}

// Create stores a new draft request.
func (r *RequestRepository) Create(ctx context.Context, req *models.RecommendationRequest) error {
	defer r.observe("request_create", time.Now())
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	const query = `INSERT INTO recommendation_requests
	(id, student_id, recipient_id, application_id, scholarship_id,
	 title, description, priority, deadline, status,
	 secure_token, token_expires_at,
	 reminder_intervals, next_reminder_date, last_reminder_sent,
	 created_at, updated_at, sent_at, received_at)
	VALUES (:id, :student_id, :recipient_id, :application_id, :scholarship_id,
	 :title, :description, :priority, :deadline, :status,
	 :secure_token, :token_expires_at,
	 :reminder_intervals, :next_reminder_date, :last_reminder_sent,
	 :created_at, :updated_at, :sent_at, :received_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// GetByID retrieves one request row.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.RecommendationRequest, error) {
	defer r.observe("request_get", time.Now())
	query := fmt.Sprintf(`SELECT %s FROM recommendation_requests WHERE id = $1`, requestColumns)
	var req models.RecommendationRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// GetByToken retrieves the request owning a secure token.
func (r *RequestRepository) GetByToken(ctx context.Context, token string) (*models.RecommendationRequest, error) {
	defer r.observe("request_get_by_token", time.Now())
	query := fmt.Sprintf(`SELECT %s FROM recommendation_requests WHERE secure_token = $1`, requestColumns)
	var req models.RecommendationRequest
	if err := r.db.GetContext(ctx, &req, query, token); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests applying filters with pagination.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.RecommendationRequest, int, error) {
	defer r.observe("request_list", time.Now())
	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)

	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM recommendation_requests" + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM recommendation_requests%s ORDER BY deadline ASC LIMIT %d OFFSET %d`,
		requestColumns, where, size, (page-1)*size)

	var rows []models.RecommendationRequest
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	return rows, total, nil
}

// UpdateSendState records a (re-)send: fresh token, status SENT and the first
// reminder cursor in a single statement.
func (r *RequestRepository) UpdateSendState(ctx context.Context, id, token string, tokenExpires, sentAt time.Time, nextReminder *time.Time) error {
	defer r.observe("request_update_send_state", time.Now())
	const query = `UPDATE recommendation_requests
	SET status = $2, secure_token = $3, token_expires_at = $4, sent_at = $5,
	    next_reminder_date = $6, updated_at = NOW()
	WHERE id = $1`
	return r.execExpectingRow(ctx, query, id, models.RequestStatusSent, token, tokenExpires, sentAt, nextReminder)
}

// UpdateStatus performs a bare status change.
func (r *RequestRepository) UpdateStatus(ctx context.Context, id string, status models.RequestStatus) error {
	defer r.observe("request_update_status", time.Now())
	const query = `UPDATE recommendation_requests SET status = $2, updated_at = NOW() WHERE id = $1`
	return r.execExpectingRow(ctx, query, id, status)
}

// MarkReceived closes the request after a successful letter submission and
// cancels outstanding reminders.
func (r *RequestRepository) MarkReceived(ctx context.Context, id string, receivedAt time.Time) error {
	defer r.observe("request_mark_received", time.Now())
	const query = `UPDATE recommendation_requests
	SET status = $2, received_at = $3, next_reminder_date = NULL, updated_at = NOW()
	WHERE id = $1`
	return r.execExpectingRow(ctx, query, id, models.RequestStatusReceived, receivedAt)
}

// MarkCancelled terminates the request and defensively expires its token.
func (r *RequestRepository) MarkCancelled(ctx context.Context, id string, now time.Time) error {
	defer r.observe("request_mark_cancelled", time.Now())
	const query = `UPDATE recommendation_requests
	SET status = $2, token_expires_at = $3, next_reminder_date = NULL, updated_at = NOW()
	WHERE id = $1`
	return r.execExpectingRow(ctx, query, id, models.RequestStatusCancelled, now)
}

// ClearReminderCursor parks a request whose thresholds are all behind it.
// Unlike MarkReminderSent it leaves last_reminder_sent alone: nothing was sent.
func (r *RequestRepository) ClearReminderCursor(ctx context.Context, id string) error {
	defer r.observe("request_clear_reminder_cursor", time.Now())
	const query = `UPDATE recommendation_requests
	SET next_reminder_date = NULL, updated_at = NOW()
	WHERE id = $1`
	return r.execExpectingRow(ctx, query, id)
}

// MarkReminderSent advances the reminder cursor after a reminder fires.
func (r *RequestRepository) MarkReminderSent(ctx context.Context, id string, sentAt time.Time, next *time.Time) error {
	defer r.observe("request_mark_reminder_sent", time.Now())
	const query = `UPDATE recommendation_requests
	SET last_reminder_sent = $2, next_reminder_date = $3, updated_at = NOW()
	WHERE id = $1`
	return r.execExpectingRow(ctx, query, id, sentAt, next)
}

// ListDueReminders returns live requests whose reminder cursor has elapsed.
// Requests past their deadline are excluded; they surface via ListOverdue.
func (r *RequestRepository) ListDueReminders(ctx context.Context, now time.Time, limit int) ([]models.RecommendationRequest, error) {
	defer r.observe("request_list_due_reminders", time.Now())
	if limit <= 0 {
		limit = 200
	}
	query := fmt.Sprintf(`SELECT %s FROM recommendation_requests
	WHERE status IN ($1, $2) AND deadline > $3
	  AND next_reminder_date IS NOT NULL AND next_reminder_date <= $3
	ORDER BY next_reminder_date ASC LIMIT %d`, requestColumns, limit)
	var rows []models.RecommendationRequest
	if err := r.db.SelectContext(ctx, &rows, query, models.RequestStatusSent, models.RequestStatusPending, now); err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return rows, nil
}

// ListOverdue returns unfulfilled requests whose deadline has passed, joined
// with recipient contact data for the operator report.
func (r *RequestRepository) ListOverdue(ctx context.Context, now time.Time) ([]models.OverdueRequest, error) {
	defer r.observe("request_list_overdue", time.Now())
	const query = `SELECT req.id AS request_id, req.title, req.student_id,
	       rec.name AS recipient_name, rec.primary_email,
	       req.status, req.deadline,
	       GREATEST(0, EXTRACT(DAY FROM ($3 - req.deadline)))::int AS days_overdue
	FROM recommendation_requests req
	JOIN recipients rec ON rec.id = req.recipient_id
	WHERE req.status IN ($1, $2) AND req.deadline <= $3
	ORDER BY req.deadline ASC`
	var rows []models.OverdueRequest
	if err := r.db.SelectContext(ctx, &rows, query, models.RequestStatusSent, models.RequestStatusPending, now); err != nil {
		return nil, fmt.Errorf("list overdue requests: %w", err)
	}
	return rows, nil
}

// CountByStatus aggregates one student's requests for the dashboard summary.
func (r *RequestRepository) CountByStatus(ctx context.Context, studentID string) ([]models.StatusCount, error) {
	defer r.observe("request_count_by_status", time.Now())
	const query = `SELECT status, COUNT(*) AS count FROM recommendation_requests
	WHERE student_id = $1 GROUP BY status`
	var rows []models.StatusCount
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("count requests by status: %w", err)
	}
	return rows, nil
}

// CountOverdueForStudent counts the student's own overdue requests.
func (r *RequestRepository) CountOverdueForStudent(ctx context.Context, studentID string, now time.Time) (int, error) {
	defer r.observe("request_count_overdue", time.Now())
	const query = `SELECT COUNT(*) FROM recommendation_requests
	WHERE student_id = $1 AND status IN ($2, $3) AND deadline <= $4`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, models.RequestStatusSent, models.RequestStatusPending, now); err != nil {
		return 0, fmt.Errorf("count overdue requests: %w", err)
	}
	return count, nil
}

func (r *RequestRepository) execExpectingRow(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check request update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
