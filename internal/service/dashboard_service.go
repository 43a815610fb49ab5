package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/reco-letter-api/internal/dto"
	"github.com/noah-isme/reco-letter-api/internal/models"
	appErrors "github.com/noah-isme/reco-letter-api/pkg/errors"
)

type summaryStore interface {
	CountByStatus(ctx context.Context, studentID string) ([]models.StatusCount, error)
	CountOverdueForStudent(ctx context.Context, studentID string, now time.Time) (int, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// DashboardService serves the per-student summary behind a short-lived cache.
// Lifecycle transitions invalidate the student's keys.
type DashboardService struct {
	repo   summaryStore
	cache  summaryCache
	logger *zap.Logger
	ttl    time.Duration
	now    func() time.Time
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(repo summaryStore, cache summaryCache, logger *zap.Logger, ttl time.Duration) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &DashboardService{repo: repo, cache: cache, logger: logger, ttl: ttl, now: time.Now}
}

// WithClock overrides the clock, for tests.
func (s *DashboardService) WithClock(now func() time.Time) *DashboardService {
	if now != nil {
		s.now = now
	}
	return s
}

// Summary returns the student's request counts, cached.
func (s *DashboardService) Summary(ctx context.Context, studentID string) (*dto.RequestSummary, error) {
	key := summaryKey(studentID)
	var cached dto.RequestSummary
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	counts, err := s.repo.CountByStatus(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count requests")
	}
	overdue, err := s.repo.CountOverdueForStudent(ctx, studentID, s.now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count overdue requests")
	}

	summary := &dto.RequestSummary{
		ByStatus: make(map[models.RequestStatus]int, len(counts)),
		Overdue:  overdue,
	}
	for _, c := range counts {
		summary.ByStatus[c.Status] = c.Count
		summary.Total += c.Count
	}

	if err := s.cache.Set(ctx, key, summary, s.ttl); err != nil {
		s.logger.Warn("summary cache write failed", zap.String("student_id", studentID), zap.Error(err))
	}
	return summary, nil
}

// Invalidate drops the student's cached summary after a lifecycle change.
func (s *DashboardService) Invalidate(ctx context.Context, studentID string) {
	if err := s.cache.DeleteByPattern(ctx, summaryKey(studentID)); err != nil {
		s.logger.Warn("summary cache invalidation failed", zap.String("student_id", studentID), zap.Error(err))
	}
}

func summaryKey(studentID string) string {
	return fmt.Sprintf("reco:summary:%s", studentID)
}
