package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/reco-letter-api/internal/dto"
	"github.com/noah-isme/reco-letter-api/internal/models"
	"github.com/noah-isme/reco-letter-api/internal/repository"
	appErrors "github.com/noah-isme/reco-letter-api/pkg/errors"
	"github.com/noah-isme/reco-letter-api/pkg/storage"
)

type letterStore interface {
	Create(ctx context.Context, letter *models.RecommendationLetter) error
	MaxVersion(ctx context.Context, requestID string) (int, error)
	Latest(ctx context.Context, requestID string) (*models.RecommendationLetter, error)
	GetByID(ctx context.Context, id string) (*models.RecommendationLetter, error)
	Verify(ctx context.Context, id, verifiedBy, notes string, at time.Time) error
}

type portalResolver interface {
	Resolve(ctx context.Context, token string) (*models.RecommendationRequest, *models.Recipient, error)
}

type receivedMarker interface {
	MarkReceived(ctx context.Context, id string, receivedAt time.Time) error
}

type objectGateway interface {
	CreateUploadTarget(ctx context.Context, key, contentType string, size int64, ttl time.Duration) (*storage.UploadTarget, error)
	FallbackUpload(ctx context.Context, key, contentType string, body []byte) (string, error)
	CreateViewTarget(ctx context.Context, key string, ttl time.Duration, forceDownload bool, filename string) (*storage.ViewTarget, error)
	Constraints() storage.Constraints
	ObjectURL(key string) string
}

// LetterServiceConfig carries upload and retry tuning.
type LetterServiceConfig struct {
	UploadURLTTL   time.Duration
	ViewURLTTL     time.Duration
	VersionRetries int
}

// LetterService handles everything the recipient does through their portal
// link plus the versioned letter store behind it.
type LetterService struct {
	letters   letterStore
	requests  receivedMarker
	resolver  portalResolver
	gateway   objectGateway
	summaries summaryInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	cfg       LetterServiceConfig
	now       func() time.Time
}

// NewLetterService constructs the letter service.
func NewLetterService(
	letters letterStore,
	requests receivedMarker,
	resolver portalResolver,
	gateway objectGateway,
	summaries summaryInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg LetterServiceConfig,
) *LetterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UploadURLTTL <= 0 {
		cfg.UploadURLTTL = 15 * time.Minute
	}
	if cfg.ViewURLTTL <= 0 {
		cfg.ViewURLTTL = 10 * time.Minute
	}
	if cfg.VersionRetries <= 0 {
		cfg.VersionRetries = 3
	}
	return &LetterService{
		letters:   letters,
		requests:  requests,
		resolver:  resolver,
		gateway:   gateway,
		summaries: summaries,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (s *LetterService) WithClock(now func() time.Time) *LetterService {
	if now != nil {
		s.now = now
	}
	return s
}

// PortalView resolves the token and assembles what the recipient sees.
func (s *LetterService) PortalView(ctx context.Context, token string) (*dto.PortalView, error) {
	req, recipient, err := s.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	view := &dto.PortalView{
		Request:   *req,
		Recipient: *recipient,
		Deadline:  req.Deadline,
		DaysLeft:  daysUntil(req.Deadline, s.now().UTC()),
	}
	if latest, err := s.letters.Latest(ctx, req.ID); err == nil {
		view.LatestLetter = latest
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load letter")
	}
	return view, nil
}

// CreateUploadTarget validates the declared file metadata and returns a
// presigned PUT scoped to the request. Nothing touches storage on rejection.
func (s *LetterService) CreateUploadTarget(ctx context.Context, token string, payload dto.UploadTargetPayload) (*dto.UploadTargetResponse, error) {
	req, _, err := s.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload payload")
	}
	key := s.objectKey(req.ID, payload.FileName)
	target, err := s.gateway.CreateUploadTarget(ctx, key, payload.ContentType, payload.FileSize, s.cfg.UploadURLTTL)
	if err != nil {
		return nil, err
	}
	return &dto.UploadTargetResponse{Target: *target}, nil
}

// FallbackUpload stores the file bytes server-side when the client's direct
// PUT failed. The same validation gate applies before any storage call.
func (s *LetterService) FallbackUpload(ctx context.Context, token, fileName, contentType string, body []byte) (*dto.FallbackUploadResponse, error) {
	req, _, err := s.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if fileName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file name is required")
	}
	key := s.objectKey(req.ID, fileName)
	url, err := s.gateway.FallbackUpload(ctx, key, contentType, body)
	if err != nil {
		return nil, err
	}
	return &dto.FallbackUploadResponse{
		FileKey:  key,
		FileURL:  url,
		FileName: fileName,
		FileType: contentType,
		FileSize: int64(len(body)),
	}, nil
}

// Submit persists a new letter version and marks the request received.
// Versions are allocated as max+1 with a short retry on the unique
// (request_id, version) index so concurrent submissions both land.
func (s *LetterService) Submit(ctx context.Context, token string, payload dto.SubmitLetterPayload) (*models.RecommendationLetter, error) {
	req, recipient, err := s.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	letter, err := s.persistVersion(ctx, req, recipient.ID, payload)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.requests.MarkReceived(ctx, req.ID, now); err != nil {
		// The version is already stored; surface the state drift loudly.
		s.logger.Error("letter stored but request not marked received",
			zap.String("request_id", req.ID),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request status")
	}
	s.summaries.Invalidate(ctx, req.StudentID)
	return letter, nil
}

func (s *LetterService) persistVersion(ctx context.Context, req *models.RecommendationRequest, recipientID string, payload dto.SubmitLetterPayload) (*models.RecommendationLetter, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission")
	}
	if !payload.HasContent() && !payload.HasFile() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submission requires letter text or an uploaded file")
	}
	if payload.HasFile() {
		// Only keys minted for this request are acceptable; anything else is
		// a reference into another request's objects.
		if !strings.HasPrefix(payload.FileKey, objectKeyPrefix(req.ID)) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "file key does not belong to this request")
		}
		if err := s.gateway.Constraints().Validate(payload.FileType, payload.FileSize); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	var lastErr error
	for attempt := 0; attempt < s.cfg.VersionRetries; attempt++ {
		maxVersion, err := s.letters.MaxVersion(ctx, req.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read version")
		}
		letter := &models.RecommendationLetter{
			RequestID:   req.ID,
			RecipientID: recipientID,
			Version:     maxVersion + 1,
			SubmittedAt: now,
			SubmittedBy: recipientID,
		}
		if payload.HasContent() {
			letter.Content = &payload.Content
		}
		if payload.HasFile() {
			url := s.gateway.ObjectURL(payload.FileKey)
			letter.FileKey = &payload.FileKey
			letter.FileURL = &url
			letter.FileName = &payload.FileName
			letter.FileType = &payload.FileType
			letter.FileSize = &payload.FileSize
		}
		if maxVersion > 0 {
			prev, err := s.letters.Latest(ctx, req.ID)
			if err == nil {
				letter.PreviousVersionID = &prev.ID
			} else if !errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load previous version")
			}
		}
		if err := s.letters.Create(ctx, letter); err != nil {
			if repository.IsUniqueViolation(err) {
				lastErr = err
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store letter")
		}
		return letter, nil
	}
	return nil, appErrors.Wrap(lastErr, appErrors.ErrVersionConflict.Code, appErrors.ErrVersionConflict.Status, appErrors.ErrVersionConflict.Message)
}

// PortalViewTarget returns a short-lived inline preview of the recipient's
// latest uploaded file.
func (s *LetterService) PortalViewTarget(ctx context.Context, token string) (*storage.ViewTarget, error) {
	req, _, err := s.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	latest, err := s.letters.Latest(ctx, req.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no letter has been submitted yet")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load letter")
	}
	return s.ViewTarget(ctx, latest, false)
}

// ViewTarget issues a presigned GET for a stored letter file. Ownership of
// the surrounding request is the caller's concern.
func (s *LetterService) ViewTarget(ctx context.Context, letter *models.RecommendationLetter, forceDownload bool) (*storage.ViewTarget, error) {
	if letter == nil || !letter.HasFile() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "letter has no uploaded file")
	}
	name := fmt.Sprintf("letter-v%d", letter.Version)
	if letter.FileName != nil && *letter.FileName != "" {
		name = *letter.FileName
	}
	return s.gateway.CreateViewTarget(ctx, *letter.FileKey, s.cfg.ViewURLTTL, forceDownload, name)
}

// Verify records the admin verification overlay on one letter version.
func (s *LetterService) Verify(ctx context.Context, letterID string, actor *models.JWTClaims, payload dto.VerifyLetterPayload) (*models.RecommendationLetter, error) {
	if actor == nil || actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verification payload")
	}
	if _, err := s.letters.GetByID(ctx, letterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "letter not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load letter")
	}
	if err := s.letters.Verify(ctx, letterID, actor.UserID, payload.Notes, s.now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify letter")
	}
	return s.letters.GetByID(ctx, letterID)
}

// objectKey scopes uploads per request while keeping the original extension.
func (s *LetterService) objectKey(requestID, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return objectKeyPrefix(requestID) + uuid.NewString() + ext
}

// objectKeyPrefix is the per-request key space. Both upload paths mint keys
// under it and submissions may only reference keys inside it.
func objectKeyPrefix(requestID string) string {
	return fmt.Sprintf("letters/%s/", requestID)
}

// daysUntil rounds up so a deadline later today still counts as one day left.
func daysUntil(deadline, now time.Time) int {
	diff := deadline.Sub(now)
	if diff <= 0 {
		return 0
	}
	return int(math.Ceil(diff.Hours() / 24))
}
