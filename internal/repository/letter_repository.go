package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/reco-letter-api/internal/models"
)

const letterColumns = `id, request_id, recipient_id, content,
       file_name, file_key, file_url, file_type, file_size,
       version, previous_version_id, submitted_at, submitted_by,
       is_verified, verification_notes, verified_by, verified_at`

// LetterRepository handles letter version persistence. The letters table
// carries a UNIQUE (request_id, version) constraint; a losing concurrent
// writer gets a unique violation the service layer translates into a retry.
type LetterRepository struct {
	db      *sqlx.DB
	metrics queryTimer
}

// NewLetterRepository constructs the repository.
func NewLetterRepository(db *sqlx.DB) *LetterRepository {
	return &LetterRepository{db: db}
}

// WithMetrics attaches a query latency observer.
func (r *LetterRepository) WithMetrics(m queryTimer) *LetterRepository {
	r.metrics = m
	return r
}

func (r *LetterRepository) observe(label string, start time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveDBQuery(label, time.Since(start))
	}
}

// Create inserts one letter version. Callers assign Version beforehand.
func (r *LetterRepository) Create(ctx context.Context, letter *models.RecommendationLetter) error {
	defer r.observe("letter_create", time.Now())
	if letter.ID == "" {
		letter.ID = uuid.NewString()
	}
	if letter.SubmittedAt.IsZero() {
		letter.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO recommendation_letters
	(id, request_id, recipient_id, content,
	 file_name, file_key, file_url, file_type, file_size,
	 version, previous_version_id, submitted_at, submitted_by,
	 is_verified, verification_notes, verified_by, verified_at)
	VALUES (:id, :request_id, :recipient_id, :content,
	 :file_name, :file_key, :file_url, :file_type, :file_size,
	 :version, :previous_version_id, :submitted_at, :submitted_by,
	 :is_verified, :verification_notes, :verified_by, :verified_at)`
	if _, err := r.db.NamedExecContext(ctx, query, letter); err != nil {
		return fmt.Errorf("create letter: %w", err)
	}
	return nil
}

// MaxVersion returns the highest stored version for a request, 0 when none exist.
func (r *LetterRepository) MaxVersion(ctx context.Context, requestID string) (int, error) {
	defer r.observe("letter_max_version", time.Now())
	const query = `SELECT COALESCE(MAX(version), 0) FROM recommendation_letters WHERE request_id = $1`
	var max int
	if err := r.db.GetContext(ctx, &max, query, requestID); err != nil {
		return 0, fmt.Errorf("max letter version: %w", err)
	}
	return max, nil
}

// Latest returns the current (highest-version) letter for a request.
func (r *LetterRepository) Latest(ctx context.Context, requestID string) (*models.RecommendationLetter, error) {
	defer r.observe("letter_latest", time.Now())
	query := fmt.Sprintf(`SELECT %s FROM recommendation_letters
	WHERE request_id = $1 ORDER BY version DESC LIMIT 1`, letterColumns)
	var letter models.RecommendationLetter
	if err := r.db.GetContext(ctx, &letter, query, requestID); err != nil {
		return nil, err
	}
	return &letter, nil
}

// GetByID retrieves one letter row.
func (r *LetterRepository) GetByID(ctx context.Context, id string) (*models.RecommendationLetter, error) {
	defer r.observe("letter_get", time.Now())
	query := fmt.Sprintf(`SELECT %s FROM recommendation_letters WHERE id = $1`, letterColumns)
	var letter models.RecommendationLetter
	if err := r.db.GetContext(ctx, &letter, query, id); err != nil {
		return nil, err
	}
	return &letter, nil
}

// ListByRequest returns every version for a request, newest first.
func (r *LetterRepository) ListByRequest(ctx context.Context, requestID string) ([]models.RecommendationLetter, error) {
	defer r.observe("letter_list", time.Now())
	query := fmt.Sprintf(`SELECT %s FROM recommendation_letters
	WHERE request_id = $1 ORDER BY version DESC`, letterColumns)
	var rows []models.RecommendationLetter
	if err := r.db.SelectContext(ctx, &rows, query, requestID); err != nil {
		return nil, fmt.Errorf("list letters: %w", err)
	}
	return rows, nil
}

// Verify records the admin quality-control overlay on a letter.
func (r *LetterRepository) Verify(ctx context.Context, id, verifiedBy, notes string, at time.Time) error {
	defer r.observe("letter_verify", time.Now())
	const query = `UPDATE recommendation_letters
	SET is_verified = TRUE, verification_notes = $3, verified_by = $2, verified_at = $4
	WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, verifiedBy, notes, at)
	if err != nil {
		return fmt.Errorf("verify letter: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check letter verify rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
