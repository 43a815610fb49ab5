package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/reco-letter-api/internal/models"
)

func newRequestRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func requestRows(deadline time.Time) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "student_id", "recipient_id", "application_id", "scholarship_id",
		"title", "description", "priority", "deadline", "status",
		"secure_token", "token_expires_at",
		"reminder_intervals", "next_reminder_date", "last_reminder_sent",
		"created_at", "updated_at", "sent_at", "received_at",
	}).AddRow(
		"req-1", "student-1", "rec-1", nil, nil,
		"CS PhD application", "", "MEDIUM", deadline, "SENT",
		"tok-abc", now.Add(24*time.Hour),
		[]byte("{14,7,3,1}"), now.Add(-time.Hour), nil,
		now, now, now.Add(-48*time.Hour), nil,
	)
}

type fakeQueryTimer struct {
	labels []string
}

func (f *fakeQueryTimer) ObserveDBQuery(label string, _ time.Duration) {
	f.labels = append(f.labels, label)
}

func TestRequestRepositoryObservesQueryLatency(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	timer := &fakeQueryTimer{}
	repo := NewRequestRepository(db).WithMetrics(timer)

	mock.ExpectQuery(`FROM recommendation_requests WHERE id = \$1`).
		WithArgs("req-1").
		WillReturnRows(requestRows(time.Now().Add(24 * time.Hour).UTC()))

	_, err := repo.GetByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"request_get"}, timer.labels)
}

func TestRequestRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec("INSERT INTO recommendation_requests").
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.RecommendationRequest{
		StudentID:         "student-1",
		RecipientID:       "rec-1",
		Title:             "CS PhD application",
		Priority:          models.PriorityMedium,
		Deadline:          time.Now().Add(30 * 24 * time.Hour),
		Status:            models.RequestStatusDraft,
		ReminderIntervals: []int64{14, 7, 3, 1},
	}
	require.NoError(t, repo.Create(context.Background(), req))
	assert.NotEmpty(t, req.ID)
	assert.False(t, req.CreatedAt.IsZero())

	deadline := time.Now().Add(10 * 24 * time.Hour).UTC()
	mock.ExpectQuery(`FROM recommendation_requests WHERE id = \$1`).
		WithArgs("req-1").
		WillReturnRows(requestRows(deadline))

	got, err := repo.GetByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", got.ID)
	assert.Equal(t, models.RequestStatusSent, got.Status)
	assert.Equal(t, []int{14, 7, 3, 1}, got.Intervals())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryGetByToken(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	deadline := time.Now().Add(5 * 24 * time.Hour).UTC()
	mock.ExpectQuery(`FROM recommendation_requests WHERE secure_token = \$1`).
		WithArgs("tok-abc").
		WillReturnRows(requestRows(deadline))

	got, err := repo.GetByToken(context.Background(), "tok-abc")
	require.NoError(t, err)
	require.NotNil(t, got.SecureToken)
	assert.Equal(t, "tok-abc", *got.SecureToken)

	mock.ExpectQuery(`FROM recommendation_requests WHERE secure_token = \$1`).
		WithArgs("tok-missing").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetByToken(context.Background(), "tok-missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListFiltersAndCounts(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM recommendation_requests WHERE student_id = \$1 AND status = \$2`).
		WithArgs("student-1", models.RequestStatusSent).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`FROM recommendation_requests WHERE student_id = \$1 AND status = \$2 ORDER BY deadline ASC`).
		WithArgs("student-1", models.RequestStatusSent).
		WillReturnRows(requestRows(time.Now().Add(24 * time.Hour).UTC()))

	rows, total, err := repo.List(context.Background(), models.RequestFilter{
		StudentID: "student-1",
		Status:    models.RequestStatusSent,
		Page:      1,
		PageSize:  20,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, "req-1", rows[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdateSendState(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	now := time.Now().UTC()
	next := now.Add(24 * time.Hour)
	mock.ExpectExec(`UPDATE recommendation_requests\s+SET status = \$2, secure_token = \$3`).
		WithArgs("req-1", models.RequestStatusSent, "tok-new", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateSendState(context.Background(), "req-1", "tok-new", now.Add(14*24*time.Hour), now, &next)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryUpdatesRequireMatchingRow(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec(`UPDATE recommendation_requests SET status = \$2, updated_at = NOW\(\)`).
		WithArgs("req-1", models.RequestStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), "req-1", models.RequestStatusPending))

	mock.ExpectExec(`UPDATE recommendation_requests\s+SET status = \$2, received_at = \$3, next_reminder_date = NULL`).
		WithArgs("req-gone", models.RequestStatusReceived, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.MarkReceived(context.Background(), "req-gone", time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryMarkCancelledExpiresToken(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE recommendation_requests\s+SET status = \$2, token_expires_at = \$3, next_reminder_date = NULL`).
		WithArgs("req-1", models.RequestStatusCancelled, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkCancelled(context.Background(), "req-1", now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryMarkReminderSent(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	now := time.Now().UTC()
	next := now.Add(4 * 24 * time.Hour)
	mock.ExpectExec(`UPDATE recommendation_requests\s+SET last_reminder_sent = \$2, next_reminder_date = \$3`).
		WithArgs("req-1", now, &next).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkReminderSent(context.Background(), "req-1", now, &next))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryClearReminderCursor(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	// Parking only clears the cursor; last_reminder_sent is not part of the update.
	mock.ExpectExec(`UPDATE recommendation_requests\s+SET next_reminder_date = NULL, updated_at = NOW\(\)\s+WHERE id = \$1`).
		WithArgs("req-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.ClearReminderCursor(context.Background(), "req-1"))

	mock.ExpectExec(`UPDATE recommendation_requests\s+SET next_reminder_date = NULL, updated_at = NOW\(\)\s+WHERE id = \$1`).
		WithArgs("req-gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.ClearReminderCursor(context.Background(), "req-gone"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListDueReminders(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM recommendation_requests\s+WHERE status IN \(\$1, \$2\) AND deadline > \$3`).
		WithArgs(models.RequestStatusSent, models.RequestStatusPending, now).
		WillReturnRows(requestRows(now.Add(7 * 24 * time.Hour)))

	rows, err := repo.ListDueReminders(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotNil(t, rows[0].NextReminderDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListOverdue(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	now := time.Now().UTC()
	deadline := now.Add(-3 * 24 * time.Hour)
	rows := sqlmock.NewRows([]string{
		"request_id", "title", "student_id", "recipient_name", "primary_email",
		"status", "deadline", "days_overdue",
	}).AddRow("req-1", "CS PhD application", "student-1", "Prof. Ada", "ada@example.edu", "PENDING", deadline, 3)

	mock.ExpectQuery(`JOIN recipients rec ON rec\.id = req\.recipient_id`).
		WithArgs(models.RequestStatusSent, models.RequestStatusPending, now).
		WillReturnRows(rows)

	overdue, err := repo.ListOverdue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, 3, overdue[0].DaysOverdue)
	assert.Equal(t, "ada@example.edu", overdue[0].PrimaryEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryDashboardCounts(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) AS count FROM recommendation_requests\s+WHERE student_id = \$1 GROUP BY status`).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("SENT", 2).
			AddRow("RECEIVED", 1))

	counts, err := repo.CountByStatus(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, models.RequestStatusSent, counts[0].Status)
	assert.Equal(t, 2, counts[0].Count)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM recommendation_requests\s+WHERE student_id = \$1 AND status IN \(\$2, \$3\) AND deadline <= \$4`).
		WithArgs("student-1", models.RequestStatusSent, models.RequestStatusPending, now).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	overdue, err := repo.CountOverdueForStudent(context.Background(), "student-1", now)
	require.NoError(t, err)
	assert.Equal(t, 1, overdue)
	assert.NoError(t, mock.ExpectationsWereMet())
}
