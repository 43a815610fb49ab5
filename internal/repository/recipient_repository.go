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

const recipientColumns = `id, created_by, name, title, institution, department,
       emails, primary_email, phone, preferred_language, created_at, updated_at`

// RecipientRepository handles recipient directory persistence.
type RecipientRepository struct {
	db *sqlx.DB
}

// NewRecipientRepository constructs the repository.
func NewRecipientRepository(db *sqlx.DB) *RecipientRepository {
	return &RecipientRepository{db: db}
}

// Create stores a new recipient. A duplicate (created_by, primary_email) pair
// surfaces as a unique violation.
func (r *RecipientRepository) Create(ctx context.Context, recipient *models.Recipient) error {
	if recipient.ID == "" {
		recipient.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if recipient.CreatedAt.IsZero() {
		recipient.CreatedAt = now
	}
	recipient.UpdatedAt = now
	const query = `INSERT INTO recipients
	(id, created_by, name, title, institution, department,
	 emails, primary_email, phone, preferred_language, created_at, updated_at)
	VALUES (:id, :created_by, :name, :title, :institution, :department,
	 :emails, :primary_email, :phone, :preferred_language, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, recipient); err != nil {
		return fmt.Errorf("create recipient: %w", err)
	}
	return nil
}

// GetByID retrieves one recipient row.
func (r *RecipientRepository) GetByID(ctx context.Context, id string) (*models.Recipient, error) {
	query := fmt.Sprintf(`SELECT %s FROM recipients WHERE id = $1`, recipientColumns)
	var recipient models.Recipient
	if err := r.db.GetContext(ctx, &recipient, query, id); err != nil {
		return nil, err
	}
	return &recipient, nil
}

// List returns recipients owned by a user, with an optional name/institution search.
func (r *RecipientRepository) List(ctx context.Context, filter models.RecipientFilter) ([]models.Recipient, int, error) {
	conditions := []string{"created_by = $1"}
	args := []interface{}{filter.CreatedBy}

	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		idx := len(args)
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(institution) LIKE $%d)", idx, idx))
	}

	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM recipients"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count recipients: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM recipients%s ORDER BY name ASC LIMIT %d OFFSET %d`,
		recipientColumns, where, size, (page-1)*size)

	var rows []models.Recipient
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list recipients: %w", err)
	}
	return rows, total, nil
}

// Update persists the full recipient row.
func (r *RecipientRepository) Update(ctx context.Context, recipient *models.Recipient) error {
	recipient.UpdatedAt = time.Now().UTC()
	const query = `UPDATE recipients
	SET name = :name, title = :title, institution = :institution, department = :department,
	    emails = :emails, primary_email = :primary_email, phone = :phone,
	    preferred_language = :preferred_language, updated_at = :updated_at
	WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, recipient)
	if err != nil {
		return fmt.Errorf("update recipient: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check recipient update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a recipient.
func (r *RecipientRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recipients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete recipient: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check recipient delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// HasActiveRequests reports whether any non-terminal request references the recipient.
func (r *RecipientRepository) HasActiveRequests(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM recommendation_requests
	WHERE recipient_id = $1 AND status NOT IN ($2, $3))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, id, models.RequestStatusReceived, models.RequestStatusCancelled); err != nil {
		return false, fmt.Errorf("check recipient requests: %w", err)
	}
	return exists, nil
}
