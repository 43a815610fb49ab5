package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/reco-letter-api/internal/dto"
	"github.com/noah-isme/reco-letter-api/internal/models"
	appErrors "github.com/noah-isme/reco-letter-api/pkg/errors"
)

type fakeRequestRepo struct {
	requests map[string]*models.RecommendationRequest

	created       *models.RecommendationRequest
	sendStateID   string
	sentToken     string
	sentNext      *time.Time
	statusUpdates []models.RequestStatus
	cancelledID   string
}

func (f *fakeRequestRepo) Create(_ context.Context, req *models.RecommendationRequest) error {
	req.ID = "req-new"
	f.created = req
	return nil
}

func (f *fakeRequestRepo) GetByID(_ context.Context, id string) (*models.RecommendationRequest, error) {
	req, ok := f.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *req
	return &copied, nil
}

func (f *fakeRequestRepo) List(_ context.Context, _ models.RequestFilter) ([]models.RecommendationRequest, int, error) {
	out := make([]models.RecommendationRequest, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (f *fakeRequestRepo) UpdateSendState(_ context.Context, id, token string, tokenExpires, sentAt time.Time, nextReminder *time.Time) error {
	f.sendStateID = id
	f.sentToken = token
	f.sentNext = nextReminder
	if req, ok := f.requests[id]; ok {
		req.Status = models.RequestStatusSent
		req.SecureToken = &token
		req.TokenExpiresAt = &tokenExpires
		req.SentAt = &sentAt
		req.NextReminderDate = nextReminder
	}
	return nil
}

func (f *fakeRequestRepo) UpdateStatus(_ context.Context, id string, status models.RequestStatus) error {
	f.statusUpdates = append(f.statusUpdates, status)
	if req, ok := f.requests[id]; ok {
		req.Status = status
	}
	return nil
}

func (f *fakeRequestRepo) MarkCancelled(_ context.Context, id string, _ time.Time) error {
	f.cancelledID = id
	if req, ok := f.requests[id]; ok {
		req.Status = models.RequestStatusCancelled
	}
	return nil
}

type fakeTokenIssuer struct {
	token string
	exp   time.Time
}

func (f *fakeTokenIssuer) Generate(ttl time.Duration) (string, time.Time, error) {
	if f.exp.IsZero() {
		f.exp = time.Now().UTC().Add(ttl)
	}
	return f.token, f.exp, nil
}

type fakeNotifier struct {
	invitations int
	reminders   int
	lastDays    int
}

func (f *fakeNotifier) SendInvitation(*models.RecommendationRequest, *models.Recipient, string) {
	f.invitations++
}

func (f *fakeNotifier) SendReminder(_ *models.RecommendationRequest, _ *models.Recipient, _ string, daysLeft int) {
	f.reminders++
	f.lastDays = daysLeft
}

func (f *fakeNotifier) PortalLink(token string) string {
	return "http://localhost/portal/" + token
}

type fakeLetters struct {
	latest *models.RecommendationLetter
	list   []models.RecommendationLetter
}

func (f *fakeLetters) Latest(context.Context, string) (*models.RecommendationLetter, error) {
	if f.latest == nil {
		return nil, sql.ErrNoRows
	}
	return f.latest, nil
}

func (f *fakeLetters) ListByRequest(context.Context, string) ([]models.RecommendationLetter, error) {
	return f.list, nil
}

type fakeInvalidator struct {
	calls int
}

func (f *fakeInvalidator) Invalidate(context.Context, string) { f.calls++ }

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent}
}

func newRequestService(repo *fakeRequestRepo, recipients *fakeRecipientReader, notifier *fakeNotifier, invalidator *fakeInvalidator, now time.Time) *RequestService {
	return NewRequestService(
		repo,
		recipients,
		&fakeLetters{},
		&fakeTokenIssuer{token: "issued-token"},
		notifier,
		invalidator,
		nil,
		nil,
		RequestServiceConfig{TokenTTL: 30 * 24 * time.Hour, DefaultIntervals: []int{14, 7, 3, 1}},
	).WithClock(func() time.Time { return now })
}

func TestRequestServiceCreate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRequestRepo{requests: map[string]*models.RecommendationRequest{}}
	recipients := &fakeRecipientReader{recipients: map[string]*models.Recipient{
		"rec-1": {ID: "rec-1", CreatedBy: "student-1"},
	}}
	invalidator := &fakeInvalidator{}
	svc := newRequestService(repo, recipients, &fakeNotifier{}, invalidator, now)

	req, err := svc.Create(context.Background(), "student-1", dto.CreateRequestPayload{
		RecipientID: "rec-1",
		Title:       "MSc application",
		Deadline:    now.Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusDraft, req.Status)
	assert.Equal(t, models.PriorityMedium, req.Priority)
	assert.Nil(t, req.SecureToken)
	assert.Equal(t, []int{14, 7, 3, 1}, req.Intervals())
	assert.Equal(t, 1, invalidator.calls)
}

func TestRequestServiceCreateRejectsPastDeadline(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newRequestService(&fakeRequestRepo{}, &fakeRecipientReader{}, &fakeNotifier{}, &fakeInvalidator{}, now)

	_, err := svc.Create(context.Background(), "student-1", dto.CreateRequestPayload{
		RecipientID: "rec-1",
		Title:       "late",
		Deadline:    now.Add(-time.Hour),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceCreateRejectsForeignRecipient(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recipients := &fakeRecipientReader{recipients: map[string]*models.Recipient{
		"rec-1": {ID: "rec-1", CreatedBy: "someone-else"},
	}}
	svc := newRequestService(&fakeRequestRepo{}, recipients, &fakeNotifier{}, &fakeInvalidator{}, now)

	_, err := svc.Create(context.Background(), "student-1", dto.CreateRequestPayload{
		RecipientID: "rec-1",
		Title:       "not mine",
		Deadline:    now.Add(time.Hour),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceSend(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(14 * 24 * time.Hour)
	repo := &fakeRequestRepo{requests: map[string]*models.RecommendationRequest{
		"req-1": {
			ID:                "req-1",
			StudentID:         "student-1",
			RecipientID:       "rec-1",
			Title:             "PhD application",
			Status:            models.RequestStatusDraft,
			Deadline:          deadline,
			ReminderIntervals: []int64{14, 7, 3, 1},
		},
	}}
	recipients := &fakeRecipientReader{recipients: map[string]*models.Recipient{
		"rec-1": {ID: "rec-1", CreatedBy: "student-1", PrimaryEmail: "prof@uni.edu"},
	}}
	notifier := &fakeNotifier{}
	svc := newRequestService(repo, recipients, notifier, &fakeInvalidator{}, now)

	result, err := svc.Send(context.Background(), "req-1", studentClaims("student-1"))
	require.NoError(t, err)

	assert.Equal(t, "issued-token", repo.sentToken)
	assert.Equal(t, models.RequestStatusSent, result.Request.Status)
	assert.Equal(t, "http://localhost/portal/issued-token", result.PortalLink)
	assert.Equal(t, 1, notifier.invitations)

	// First cursor sits on the largest interval still ahead: deadline minus 14
	// days is exactly now.
	require.NotNil(t, repo.sentNext)
	assert.True(t, repo.sentNext.Equal(now))
}

func TestRequestServiceSendSkipsPastThresholds(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(5 * 24 * time.Hour)
	repo := &fakeRequestRepo{requests: map[string]*models.RecommendationRequest{
		"req-1": {
			ID:                "req-1",
			StudentID:         "student-1",
			RecipientID:       "rec-1",
			Status:            models.RequestStatusDraft,
			Deadline:          deadline,
			ReminderIntervals: []int64{14, 7, 3, 1},
		},
	}}
	recipients := &fakeRecipientReader{recipients: map[string]*models.Recipient{
		"rec-1": {ID: "rec-1", CreatedBy: "student-1"},
	}}
	svc := newRequestService(repo, recipients, &fakeNotifier{}, &fakeInvalidator{}, now)

	_, err := svc.Send(context.Background(), "req-1", studentClaims("student-1"))
	require.NoError(t, err)

	require.NotNil(t, repo.sentNext)
	assert.True(t, repo.sentNext.Equal(deadline.Add(-3*24*time.Hour)))
}

func TestRequestServiceSendInvalidTransition(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRequestRepo{requests: map[string]*models.RecommendationRequest{
		"req-1": {
			ID:        "req-1",
			StudentID: "student-1",
			Status:    models.RequestStatusReceived,
			Deadline:  now.Add(time.Hour),
		},
	}}
	svc := newRequestService(repo, &fakeRecipientReader{}, &fakeNotifier{}, &fakeInvalidator{}, now)

	_, err := svc.Send(context.Background(), "req-1", studentClaims("student-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceSendForbiddenForOtherStudent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRequestRepo{requests: map[string]*models.RecommendationRequest{
		"req-1": {ID: "req-1", StudentID: "student-1", Status: models.RequestStatusDraft, Deadline: now.Add(time.Hour)},
	}}
	svc := newRequestService(repo, &fakeRecipientReader{}, &fakeNotifier{}, &fakeInvalidator{}, now)

	_, err := svc.Send(context.Background(), "req-1", studentClaims("student-2"))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestRequestServiceMarkPendingIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRequestRepo{requests: map[string]*models.RecommendationRequest{
		"req-1": {ID: "req-1", StudentID: "student-1", Status: models.RequestStatusSent},
	}}
	svc := newRequestService(repo, &fakeRecipientReader{}, &fakeNotifier{}, &fakeInvalidator{}, now)

	require.NoError(t, svc.MarkPending(context.Background(), "req-1"))
	require.NoError(t, svc.MarkPending(context.Background(), "req-1"))
	assert.Len(t, repo.statusUpdates, 1)
}

func TestRequestServiceCancel(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRequestRepo{requests: map[string]*models.RecommendationRequest{
		"req-1": {ID: "req-1", StudentID: "student-1", Status: models.RequestStatusSent},
	}}
	invalidator := &fakeInvalidator{}
	svc := newRequestService(repo, &fakeRecipientReader{}, &fakeNotifier{}, invalidator, now)

	require.NoError(t, svc.Cancel(context.Background(), "req-1", studentClaims("student-1")))
	assert.Equal(t, "req-1", repo.cancelledID)
	assert.Equal(t, 1, invalidator.calls)

	err := svc.Cancel(context.Background(), "req-1", studentClaims("student-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}
