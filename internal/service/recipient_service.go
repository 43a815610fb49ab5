package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/reco-letter-api/internal/dto"
	"github.com/noah-isme/reco-letter-api/internal/models"
	"github.com/noah-isme/reco-letter-api/internal/repository"
	appErrors "github.com/noah-isme/reco-letter-api/pkg/errors"
)

type recipientRepository interface {
	Create(ctx context.Context, recipient *models.Recipient) error
	GetByID(ctx context.Context, id string) (*models.Recipient, error)
	List(ctx context.Context, filter models.RecipientFilter) ([]models.Recipient, int, error)
	Update(ctx context.Context, recipient *models.Recipient) error
	Delete(ctx context.Context, id string) error
	HasActiveRequests(ctx context.Context, id string) (bool, error)
}

// RecipientService manages each student's private recipient directory.
type RecipientService struct {
	repo      recipientRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRecipientService constructs the recipient service.
func NewRecipientService(repo recipientRepository, validate *validator.Validate, logger *zap.Logger) *RecipientService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecipientService{repo: repo, validator: validate, logger: logger}
}

// Create adds a recipient to the student's directory. The primary email must
// be one of the listed addresses.
func (s *RecipientService) Create(ctx context.Context, studentID string, payload dto.CreateRecipientPayload) (*models.Recipient, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recipient payload")
	}
	emails := normalizeEmails(payload.Emails)
	primary := strings.ToLower(strings.TrimSpace(payload.PrimaryEmail))
	if !containsEmail(emails, primary) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "primary email must be one of the listed emails")
	}

	recipient := &models.Recipient{
		CreatedBy:         studentID,
		Name:              payload.Name,
		Title:             payload.Title,
		Institution:       payload.Institution,
		Department:        payload.Department,
		Emails:            pq.StringArray(emails),
		PrimaryEmail:      primary,
		Phone:             payload.Phone,
		PreferredLanguage: payload.PreferredLanguage,
	}
	if err := s.repo.Create(ctx, recipient); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a recipient with this primary email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create recipient")
	}
	return recipient, nil
}

// Get returns one recipient owned by the caller.
func (s *RecipientService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Recipient, error) {
	return s.loadOwned(ctx, id, actor)
}

// List returns the caller's recipients with optional name/institution search.
func (s *RecipientService) List(ctx context.Context, filter models.RecipientFilter) ([]models.Recipient, *models.Pagination, error) {
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recipients")
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

// Update applies partial changes to a recipient the caller owns.
func (s *RecipientService) Update(ctx context.Context, id string, actor *models.JWTClaims, payload dto.UpdateRecipientPayload) (*models.Recipient, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recipient payload")
	}
	recipient, err := s.loadOwned(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	if payload.Name != nil {
		recipient.Name = *payload.Name
	}
	if payload.Title != nil {
		recipient.Title = *payload.Title
	}
	if payload.Institution != nil {
		recipient.Institution = *payload.Institution
	}
	if payload.Department != nil {
		recipient.Department = payload.Department
	}
	if payload.Phone != nil {
		recipient.Phone = payload.Phone
	}
	if payload.PreferredLanguage != nil {
		recipient.PreferredLanguage = payload.PreferredLanguage
	}
	if payload.Emails != nil {
		recipient.Emails = pq.StringArray(normalizeEmails(payload.Emails))
	}
	if payload.PrimaryEmail != nil {
		recipient.PrimaryEmail = strings.ToLower(strings.TrimSpace(*payload.PrimaryEmail))
	}
	if !containsEmail(recipient.Emails, recipient.PrimaryEmail) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "primary email must be one of the listed emails")
	}

	if err := s.repo.Update(ctx, recipient); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a recipient with this primary email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update recipient")
	}
	return recipient, nil
}

// Delete removes a recipient unless a non-terminal request still points at
// them.
func (s *RecipientService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if _, err := s.loadOwned(ctx, id, actor); err != nil {
		return err
	}
	active, err := s.repo.HasActiveRequests(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check recipient usage")
	}
	if active {
		return appErrors.Clone(appErrors.ErrConflict, "recipient has active requests and cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete recipient")
	}
	return nil
}

func (s *RecipientService) loadOwned(ctx context.Context, id string, actor *models.JWTClaims) (*models.Recipient, error) {
	recipient, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recipient")
	}
	if actor != nil && actor.Role != models.RoleAdmin && recipient.CreatedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return recipient, nil
}

func normalizeEmails(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, e := range in {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

func containsEmail(emails []string, addr string) bool {
	for _, e := range emails {
		if e == addr {
			return true
		}
	}
	return false
}
