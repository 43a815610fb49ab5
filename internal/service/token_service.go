package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/reco-letter-api/internal/models"
	appErrors "github.com/noah-isme/reco-letter-api/pkg/errors"
)

const tokenEntropyBytes = 32

type tokenRequestStore interface {
	GetByToken(ctx context.Context, token string) (*models.RecommendationRequest, error)
}

type recipientReader interface {
	GetByID(ctx context.Context, id string) (*models.Recipient, error)
}

// TokenService issues and resolves the secure bearer tokens that grant
// recipients access to a single request without an account.
type TokenService struct {
	requests   tokenRequestStore
	recipients recipientReader
	logger     *zap.Logger
	now        func() time.Time
}

// NewTokenService constructs the token service.
func NewTokenService(requests tokenRequestStore, recipients recipientReader, logger *zap.Logger) *TokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenService{requests: requests, recipients: recipients, logger: logger, now: time.Now}
}

// WithClock overrides the clock, for tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		s.now = now
	}
	return s
}

// Generate produces a fresh opaque token and its expiry. The caller persists
// both on the request; any previously issued token stops matching at that point.
func (s *TokenService) Generate(ttl time.Duration) (token string, expiresAt time.Time, err error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("generate secure token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), s.now().UTC().Add(ttl), nil
}

// Resolve looks up the request owning a token and enforces the access policy:
// unknown tokens, cancelled requests and expired tokens all fail. Cancellation
// is checked before expiry so a defensively expired token still reports the
// request as cancelled. Expiry is re-checked on every call.
func (s *TokenService) Resolve(ctx context.Context, token string) (*models.RecommendationRequest, *models.Recipient, error) {
	if token == "" {
		return nil, nil, appErrors.ErrTokenNotFound
	}
	req, err := s.requests.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrTokenNotFound
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve token")
	}
	if req.Status == models.RequestStatusCancelled {
		return nil, nil, appErrors.ErrRequestCancelled
	}
	if !req.TokenValidAt(s.now()) {
		return nil, nil, appErrors.ErrTokenExpired
	}

	recipient, err := s.recipients.GetByID(ctx, req.RecipientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Orphaned reference: the request survived its recipient. Treat as
			// an invalid link rather than a server error.
			s.logger.Warn("request references missing recipient",
				zap.String("request_id", req.ID), zap.String("recipient_id", req.RecipientID))
			return nil, nil, appErrors.ErrTokenNotFound
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recipient")
	}
	return req, recipient, nil
}
