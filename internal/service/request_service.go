package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/reco-letter-api/internal/dto"
	"github.com/noah-isme/reco-letter-api/internal/models"
	appErrors "github.com/noah-isme/reco-letter-api/pkg/errors"
)

type requestRepository interface {
	Create(ctx context.Context, req *models.RecommendationRequest) error
	GetByID(ctx context.Context, id string) (*models.RecommendationRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.RecommendationRequest, int, error)
	UpdateSendState(ctx context.Context, id, token string, tokenExpires, sentAt time.Time, nextReminder *time.Time) error
	UpdateStatus(ctx context.Context, id string, status models.RequestStatus) error
	MarkCancelled(ctx context.Context, id string, now time.Time) error
}

type tokenIssuer interface {
	Generate(ttl time.Duration) (token string, expiresAt time.Time, err error)
}

type invitationNotifier interface {
	SendInvitation(req *models.RecommendationRequest, recipient *models.Recipient, token string)
	PortalLink(token string) string
}

type latestLetterReader interface {
	Latest(ctx context.Context, requestID string) (*models.RecommendationLetter, error)
	ListByRequest(ctx context.Context, requestID string) ([]models.RecommendationLetter, error)
}

type summaryInvalidator interface {
	Invalidate(ctx context.Context, studentID string)
}

// RequestServiceConfig carries workflow tuning.
type RequestServiceConfig struct {
	TokenTTL         time.Duration
	DefaultIntervals []int
}

// RequestService owns the request lifecycle: draft → sent → pending →
// received, with cancellation from any non-terminal state.
type RequestService struct {
	repo       requestRepository
	recipients recipientReader
	letters    latestLetterReader
	tokens     tokenIssuer
	notifier   invitationNotifier
	summaries  summaryInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        RequestServiceConfig
	now        func() time.Time
}

// NewRequestService constructs the request service.
func NewRequestService(
	repo requestRepository,
	recipients recipientReader,
	letters latestLetterReader,
	tokens tokenIssuer,
	notifier invitationNotifier,
	summaries summaryInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg RequestServiceConfig,
) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 30 * 24 * time.Hour
	}
	if len(cfg.DefaultIntervals) == 0 {
		cfg.DefaultIntervals = []int{14, 7, 3, 1}
	}
	return &RequestService{
		repo:       repo,
		recipients: recipients,
		letters:    letters,
		tokens:     tokens,
		notifier:   notifier,
		summaries:  summaries,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (s *RequestService) WithClock(now func() time.Time) *RequestService {
	if now != nil {
		s.now = now
	}
	return s
}

// Create registers a draft request against one of the student's recipients.
// No token exists until the first send.
func (s *RequestService) Create(ctx context.Context, studentID string, payload dto.CreateRequestPayload) (*models.RecommendationRequest, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	now := s.now().UTC()
	if !payload.Deadline.After(now) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "deadline must be in the future")
	}

	recipient, err := s.recipients.GetByID(ctx, payload.RecipientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recipient")
	}
	if recipient.CreatedBy != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "recipient belongs to another user")
	}

	intervals := payload.ReminderIntervals
	if len(intervals) == 0 {
		intervals = s.cfg.DefaultIntervals
	}
	intervals = normalizeIntervals(intervals)

	priority := payload.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	req := &models.RecommendationRequest{
		StudentID:         studentID,
		RecipientID:       recipient.ID,
		ApplicationID:     payload.ApplicationID,
		ScholarshipID:     payload.ScholarshipID,
		Title:             payload.Title,
		Description:       payload.Description,
		Priority:          priority,
		Deadline:          payload.Deadline.UTC(),
		Status:            models.RequestStatusDraft,
		ReminderIntervals: toInt64Array(intervals),
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}
	s.summaries.Invalidate(ctx, studentID)
	return req, nil
}

// Get returns one request with recipient and latest letter metadata.
func (s *RequestService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.RequestDetail, error) {
	req, err := s.loadOwned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	detail := &models.RequestDetail{Request: *req}

	if recipient, err := s.recipients.GetByID(ctx, req.RecipientID); err == nil {
		detail.Recipient = recipient
	}
	if letter, err := s.letters.Latest(ctx, req.ID); err == nil {
		detail.LatestLetter = letter
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load letter")
	}
	return detail, nil
}

// List returns the student's requests with pagination metadata.
func (s *RequestService) List(ctx context.Context, filter models.RequestFilter) ([]models.RecommendationRequest, *models.Pagination, error) {
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListLetters returns the full version history of a request's letters.
func (s *RequestService) ListLetters(ctx context.Context, id string, actor *models.JWTClaims) ([]models.RecommendationLetter, error) {
	req, err := s.loadOwned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	letters, err := s.letters.ListByRequest(ctx, req.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list letters")
	}
	return letters, nil
}

// Send issues (or refreshes) the secure token, moves the request to SENT,
// schedules the first reminder and emails the recipient their portal link.
func (s *RequestService) Send(ctx context.Context, id string, actor *models.JWTClaims) (*dto.SendRequestResponse, error) {
	req, err := s.loadOwned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if !req.Status.CanTransitionTo(models.RequestStatusSent) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "request can only be sent from draft or pending")
	}
	now := s.now().UTC()
	if !req.Deadline.After(now) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot send a request past its deadline")
	}

	recipient, err := s.recipients.GetByID(ctx, req.RecipientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recipient")
	}

	token, expiresAt, err := s.tokens.Generate(s.cfg.TokenTTL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue token")
	}

	nextReminder := firstReminderDate(req.Deadline, req.Intervals(), now)
	if err := s.repo.UpdateSendState(ctx, req.ID, token, expiresAt, now, nextReminder); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send request")
	}

	req.Status = models.RequestStatusSent
	req.SecureToken = &token
	req.TokenExpiresAt = &expiresAt
	req.SentAt = &now
	req.NextReminderDate = nextReminder

	s.notifier.SendInvitation(req, recipient, token)
	s.summaries.Invalidate(ctx, req.StudentID)

	return &dto.SendRequestResponse{
		Request:    *req,
		PortalLink: s.notifier.PortalLink(token),
		TokenTTL:   s.cfg.TokenTTL.String(),
	}, nil
}

// MarkPending records the optional recipient acknowledgement hop.
func (s *RequestService) MarkPending(ctx context.Context, id string) error {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if req.Status == models.RequestStatusPending {
		return nil
	}
	if !req.Status.CanTransitionTo(models.RequestStatusPending) {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "request cannot be acknowledged in its current status")
	}
	if err := s.repo.UpdateStatus(ctx, id, models.RequestStatusPending); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request")
	}
	s.summaries.Invalidate(ctx, req.StudentID)
	return nil
}

// Cancel terminates the request and defensively expires its token so emailed
// links die immediately.
func (s *RequestService) Cancel(ctx context.Context, id string, actor *models.JWTClaims) error {
	req, err := s.loadOwned(ctx, id, actor)
	if err != nil {
		return err
	}
	if !req.Status.CanTransitionTo(models.RequestStatusCancelled) {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "request is already in a terminal status")
	}
	if err := s.repo.MarkCancelled(ctx, req.ID, s.now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel request")
	}
	s.summaries.Invalidate(ctx, req.StudentID)
	return nil
}

func (s *RequestService) loadOwned(ctx context.Context, id string, actor *models.JWTClaims) (*models.RecommendationRequest, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if actor != nil && actor.Role != models.RoleAdmin && req.StudentID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return req, nil
}

// normalizeIntervals dedupes and orders thresholds largest-first.
func normalizeIntervals(intervals []int) []int {
	seen := make(map[int]struct{}, len(intervals))
	out := make([]int, 0, len(intervals))
	for _, v := range intervals {
		if v <= 0 {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

func toInt64Array(intervals []int) pq.Int64Array {
	out := make(pq.Int64Array, 0, len(intervals))
	for _, v := range intervals {
		out = append(out, int64(v))
	}
	return out
}
