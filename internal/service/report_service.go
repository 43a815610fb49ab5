package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/reco-letter-api/internal/models"
	appErrors "github.com/noah-isme/reco-letter-api/pkg/errors"
	"github.com/noah-isme/reco-letter-api/pkg/export"
)

type overdueStore interface {
	ListOverdue(ctx context.Context, now time.Time) ([]models.OverdueRequest, error)
}

// ReportService builds the operator overdue report in JSON, CSV or PDF.
type ReportService struct {
	repo   overdueStore
	logger *zap.Logger
	now    func() time.Time
}

// NewReportService constructs the report service.
func NewReportService(repo overdueStore, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{repo: repo, logger: logger, now: time.Now}
}

// WithClock overrides the clock, for tests.
func (s *ReportService) WithClock(now func() time.Time) *ReportService {
	if now != nil {
		s.now = now
	}
	return s
}

// Overdue lists requests whose deadline passed without a letter.
func (s *ReportService) Overdue(ctx context.Context, actor *models.JWTClaims) ([]models.OverdueRequest, error) {
	if actor == nil || actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	rows, err := s.repo.ListOverdue(ctx, s.now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list overdue requests")
	}
	return rows, nil
}

// OverdueCSV renders the overdue report as CSV bytes.
func (s *ReportService) OverdueCSV(ctx context.Context, actor *models.JWTClaims) ([]byte, error) {
	rows, err := s.Overdue(ctx, actor)
	if err != nil {
		return nil, err
	}
	out, err := export.RenderCSV(overdueDataset(rows))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return out, nil
}

// OverduePDF renders the overdue report as a tabular PDF.
func (s *ReportService) OverduePDF(ctx context.Context, actor *models.JWTClaims) ([]byte, error) {
	rows, err := s.Overdue(ctx, actor)
	if err != nil {
		return nil, err
	}
	out, err := export.RenderPDF(overdueDataset(rows), "Overdue Recommendation Requests")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return out, nil
}

func overdueDataset(rows []models.OverdueRequest) export.Dataset {
	data := export.Dataset{
		Columns: []string{"Request ID", "Title", "Student ID", "Recipient", "Recipient Email", "Status", "Deadline", "Days Overdue"},
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, r := range rows {
		data.Rows = append(data.Rows, []string{
			r.RequestID,
			r.Title,
			r.StudentID,
			r.RecipientName,
			r.PrimaryEmail,
			string(r.Status),
			r.Deadline.Format("2006-01-02"),
			strconv.Itoa(r.DaysOverdue),
		})
	}
	return data
}
