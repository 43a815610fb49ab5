package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/reco-letter-api/internal/dto"
	"github.com/noah-isme/reco-letter-api/internal/models"
	appErrors "github.com/noah-isme/reco-letter-api/pkg/errors"
	"github.com/noah-isme/reco-letter-api/pkg/storage"
)

type fakeLetterStore struct {
	letters        []models.RecommendationLetter
	failuresBefore int // Create returns a unique violation this many times
	creates        int
}

func (f *fakeLetterStore) Create(_ context.Context, letter *models.RecommendationLetter) error {
	f.creates++
	if f.creates <= f.failuresBefore {
		return &pq.Error{Code: "23505"}
	}
	letter.ID = "letter-" + string(rune('0'+len(f.letters)+1))
	f.letters = append(f.letters, *letter)
	return nil
}

func (f *fakeLetterStore) MaxVersion(context.Context, string) (int, error) {
	max := 0
	for _, l := range f.letters {
		if l.Version > max {
			max = l.Version
		}
	}
	return max, nil
}

func (f *fakeLetterStore) Latest(context.Context, string) (*models.RecommendationLetter, error) {
	if len(f.letters) == 0 {
		return nil, sql.ErrNoRows
	}
	latest := f.letters[0]
	for _, l := range f.letters[1:] {
		if l.Version > latest.Version {
			latest = l
		}
	}
	return &latest, nil
}

func (f *fakeLetterStore) GetByID(_ context.Context, id string) (*models.RecommendationLetter, error) {
	for _, l := range f.letters {
		if l.ID == id {
			copied := l
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeLetterStore) Verify(_ context.Context, id, verifiedBy, notes string, at time.Time) error {
	for i := range f.letters {
		if f.letters[i].ID == id {
			f.letters[i].IsVerified = true
			f.letters[i].VerifiedBy = &verifiedBy
			f.letters[i].VerificationNotes = &notes
			f.letters[i].VerifiedAt = &at
			return nil
		}
	}
	return sql.ErrNoRows
}

type fakeResolver struct {
	req       *models.RecommendationRequest
	recipient *models.Recipient
	err       error
}

func (f *fakeResolver) Resolve(context.Context, string) (*models.RecommendationRequest, *models.Recipient, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.req, f.recipient, nil
}

type fakeReceivedMarker struct {
	receivedID string
}

func (f *fakeReceivedMarker) MarkReceived(_ context.Context, id string, _ time.Time) error {
	f.receivedID = id
	return nil
}

type fakeGateway struct {
	constraints    storage.Constraints
	uploadedKey    string
	uploadedBody   []byte
	viewRequests   int
	lastDisposeAtt bool
}

func (f *fakeGateway) CreateUploadTarget(_ context.Context, key, contentType string, size int64, ttl time.Duration) (*storage.UploadTarget, error) {
	if err := f.constraints.Validate(contentType, size); err != nil {
		return nil, err
	}
	return &storage.UploadTarget{
		UploadURL: "https://bucket.s3.amazonaws.com/" + key + "?signed",
		Method:    "PUT",
		ObjectKey: key,
		ObjectURL: f.ObjectURL(key),
		ExpiresAt: time.Now().UTC().Add(ttl),
	}, nil
}

func (f *fakeGateway) FallbackUpload(_ context.Context, key, contentType string, body []byte) (string, error) {
	if err := f.constraints.Validate(contentType, int64(len(body))); err != nil {
		return "", err
	}
	f.uploadedKey = key
	f.uploadedBody = body
	return f.ObjectURL(key), nil
}

func (f *fakeGateway) CreateViewTarget(_ context.Context, key string, _ time.Duration, forceDownload bool, _ string) (*storage.ViewTarget, error) {
	f.viewRequests++
	f.lastDisposeAtt = forceDownload
	return &storage.ViewTarget{URL: "https://bucket.s3.amazonaws.com/" + key + "?view"}, nil
}

func (f *fakeGateway) Constraints() storage.Constraints {
	return f.constraints
}

func (f *fakeGateway) ObjectURL(key string) string {
	return "https://cdn.example.com/" + key
}

func pdfConstraints() storage.Constraints {
	return storage.Constraints{
		MaxSizeBytes: 10 * 1024 * 1024,
		AllowedMIMEs: []string{"application/pdf"},
	}
}

func newLetterService(letters *fakeLetterStore, requests *fakeReceivedMarker, resolver *fakeResolver, gateway *fakeGateway) *LetterService {
	return NewLetterService(letters, requests, resolver, gateway, &fakeInvalidator{}, nil, nil, LetterServiceConfig{
		UploadURLTTL:   15 * time.Minute,
		ViewURLTTL:     10 * time.Minute,
		VersionRetries: 3,
	})
}

func portalFixture(now time.Time) (*models.RecommendationRequest, *models.Recipient) {
	req := &models.RecommendationRequest{
		ID:          "req-1",
		StudentID:   "student-1",
		RecipientID: "rec-1",
		Title:       "Fellowship application",
		Status:      models.RequestStatusSent,
		Deadline:    now.Add(7 * 24 * time.Hour),
	}
	return req, &models.Recipient{ID: "rec-1", Name: "Prof. Chen"}
}

func TestLetterServiceSubmitContent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req, recipient := portalFixture(now)
	letters := &fakeLetterStore{}
	requests := &fakeReceivedMarker{}
	svc := newLetterService(letters, requests, &fakeResolver{req: req, recipient: recipient}, &fakeGateway{constraints: pdfConstraints()}).
		WithClock(func() time.Time { return now })

	letter, err := svc.Submit(context.Background(), "tok", dto.SubmitLetterPayload{Content: "Dear committee..."})
	require.NoError(t, err)

	assert.Equal(t, 1, letter.Version)
	assert.Nil(t, letter.PreviousVersionID)
	assert.Equal(t, "rec-1", letter.SubmittedBy)
	assert.Equal(t, "req-1", requests.receivedID)
}

func TestLetterServiceSubmitVersionsChain(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req, recipient := portalFixture(now)
	letters := &fakeLetterStore{}
	svc := newLetterService(letters, &fakeReceivedMarker{}, &fakeResolver{req: req, recipient: recipient}, &fakeGateway{constraints: pdfConstraints()}).
		WithClock(func() time.Time { return now })

	first, err := svc.Submit(context.Background(), "tok", dto.SubmitLetterPayload{Content: "v1"})
	require.NoError(t, err)
	second, err := svc.Submit(context.Background(), "tok", dto.SubmitLetterPayload{Content: "v2"})
	require.NoError(t, err)

	assert.Equal(t, 2, second.Version)
	require.NotNil(t, second.PreviousVersionID)
	assert.Equal(t, first.ID, *second.PreviousVersionID)
}

func TestLetterServiceSubmitRetriesOnVersionRace(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req, recipient := portalFixture(now)
	letters := &fakeLetterStore{failuresBefore: 2}
	svc := newLetterService(letters, &fakeReceivedMarker{}, &fakeResolver{req: req, recipient: recipient}, &fakeGateway{constraints: pdfConstraints()}).
		WithClock(func() time.Time { return now })

	letter, err := svc.Submit(context.Background(), "tok", dto.SubmitLetterPayload{Content: "raced"})
	require.NoError(t, err)
	assert.Equal(t, 3, letters.creates)
	assert.Equal(t, 1, letter.Version)
}

func TestLetterServiceSubmitExhaustsRetries(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req, recipient := portalFixture(now)
	letters := &fakeLetterStore{failuresBefore: 5}
	svc := newLetterService(letters, &fakeReceivedMarker{}, &fakeResolver{req: req, recipient: recipient}, &fakeGateway{constraints: pdfConstraints()}).
		WithClock(func() time.Time { return now })

	_, err := svc.Submit(context.Background(), "tok", dto.SubmitLetterPayload{Content: "raced"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrVersionConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 3, letters.creates)
}

func TestLetterServiceSubmitRequiresContentOrFile(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req, recipient := portalFixture(now)
	svc := newLetterService(&fakeLetterStore{}, &fakeReceivedMarker{}, &fakeResolver{req: req, recipient: recipient}, &fakeGateway{constraints: pdfConstraints()})

	_, err := svc.Submit(context.Background(), "tok", dto.SubmitLetterPayload{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLetterServiceSubmitRejectsDisallowedFileType(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req, recipient := portalFixture(now)
	letters := &fakeLetterStore{}
	svc := newLetterService(letters, &fakeReceivedMarker{}, &fakeResolver{req: req, recipient: recipient}, &fakeGateway{constraints: pdfConstraints()})

	_, err := svc.Submit(context.Background(), "tok", dto.SubmitLetterPayload{
		FileName: "letter.exe",
		FileKey:  "letters/req-1/abc.exe",
		FileType: "application/x-msdownload",
		FileSize: 1024,
	})
	require.Error(t, err)
	assert.Equal(t, 0, letters.creates)
}

func TestLetterServiceSubmitRejectsForeignFileKey(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req, recipient := portalFixture(now)
	letters := &fakeLetterStore{}
	svc := newLetterService(letters, &fakeReceivedMarker{}, &fakeResolver{req: req, recipient: recipient}, &fakeGateway{constraints: pdfConstraints()})

	// Valid token for req-1, but the key points into another request's space.
	_, err := svc.Submit(context.Background(), "tok", dto.SubmitLetterPayload{
		FileName: "stolen.pdf",
		FileKey:  "letters/req-2/stolen.pdf",
		FileType: "application/pdf",
		FileSize: 2048,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, letters.creates)
}

func TestLetterServiceSubmitStoresScopedFile(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req, recipient := portalFixture(now)
	letters := &fakeLetterStore{}
	svc := newLetterService(letters, &fakeReceivedMarker{}, &fakeResolver{req: req, recipient: recipient}, &fakeGateway{constraints: pdfConstraints()}).
		WithClock(func() time.Time { return now })

	letter, err := svc.Submit(context.Background(), "tok", dto.SubmitLetterPayload{
		FileName: "letter.pdf",
		FileKey:  "letters/req-1/7f3a.pdf",
		FileType: "application/pdf",
		FileSize: 2048,
	})
	require.NoError(t, err)
	assert.True(t, letter.HasFile())
	require.NotNil(t, letter.FileKey)
	assert.Equal(t, "letters/req-1/7f3a.pdf", *letter.FileKey)
}

func TestLetterServiceSubmitPropagatesAccessError(t *testing.T) {
	svc := newLetterService(&fakeLetterStore{}, &fakeReceivedMarker{}, &fakeResolver{err: appErrors.ErrTokenExpired}, &fakeGateway{constraints: pdfConstraints()})

	_, err := svc.Submit(context.Background(), "tok", dto.SubmitLetterPayload{Content: "x"})
	assert.ErrorIs(t, err, appErrors.ErrTokenExpired)
}

func TestLetterServiceCreateUploadTarget(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req, recipient := portalFixture(now)
	svc := newLetterService(&fakeLetterStore{}, &fakeReceivedMarker{}, &fakeResolver{req: req, recipient: recipient}, &fakeGateway{constraints: pdfConstraints()})

	resp, err := svc.CreateUploadTarget(context.Background(), "tok", dto.UploadTargetPayload{
		FileName:    "letter.pdf",
		ContentType: "application/pdf",
		FileSize:    2048,
	})
	require.NoError(t, err)
	assert.Equal(t, "PUT", resp.Target.Method)
	assert.Contains(t, resp.Target.ObjectKey, "letters/req-1/")
	assert.Contains(t, resp.Target.ObjectKey, ".pdf")
}

func TestLetterServiceCreateUploadTargetRejectsOversize(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req, recipient := portalFixture(now)
	svc := newLetterService(&fakeLetterStore{}, &fakeReceivedMarker{}, &fakeResolver{req: req, recipient: recipient}, &fakeGateway{constraints: pdfConstraints()})

	_, err := svc.CreateUploadTarget(context.Background(), "tok", dto.UploadTargetPayload{
		FileName:    "letter.pdf",
		ContentType: "application/pdf",
		FileSize:    12 * 1024 * 1024,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLetterServiceFallbackUpload(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req, recipient := portalFixture(now)
	gateway := &fakeGateway{constraints: pdfConstraints()}
	svc := newLetterService(&fakeLetterStore{}, &fakeReceivedMarker{}, &fakeResolver{req: req, recipient: recipient}, gateway)

	body := []byte("%PDF-1.7 ...")
	resp, err := svc.FallbackUpload(context.Background(), "tok", "letter.pdf", "application/pdf", body)
	require.NoError(t, err)

	assert.Equal(t, gateway.uploadedKey, resp.FileKey)
	assert.Equal(t, int64(len(body)), resp.FileSize)
	assert.Equal(t, body, gateway.uploadedBody)
}

func TestLetterServiceVerifyRequiresAdmin(t *testing.T) {
	svc := newLetterService(&fakeLetterStore{}, &fakeReceivedMarker{}, &fakeResolver{}, &fakeGateway{constraints: pdfConstraints()})

	_, err := svc.Verify(context.Background(), "letter-1", studentClaims("student-1"), dto.VerifyLetterPayload{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestLetterServiceVerify(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	letters := &fakeLetterStore{letters: []models.RecommendationLetter{{ID: "letter-1", Version: 1}}}
	svc := newLetterService(letters, &fakeReceivedMarker{}, &fakeResolver{}, &fakeGateway{constraints: pdfConstraints()}).
		WithClock(func() time.Time { return now })

	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	letter, err := svc.Verify(context.Background(), "letter-1", admin, dto.VerifyLetterPayload{Notes: "checked"})
	require.NoError(t, err)
	assert.True(t, letter.IsVerified)
	require.NotNil(t, letter.VerifiedBy)
	assert.Equal(t, "admin-1", *letter.VerifiedBy)
}
