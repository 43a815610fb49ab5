package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/reco-letter-api/internal/models"
)

type reminderStore interface {
	ListDueReminders(ctx context.Context, now time.Time, limit int) ([]models.RecommendationRequest, error)
	MarkReminderSent(ctx context.Context, id string, sentAt time.Time, next *time.Time) error
	ClearReminderCursor(ctx context.Context, id string) error
}

type reminderNotifier interface {
	SendReminder(req *models.RecommendationRequest, recipient *models.Recipient, token string, daysLeft int)
}

// ReminderService walks the next_reminder_date cursor. Each scan sends at
// most one reminder per request: when several thresholds were crossed during
// an outage they coalesce into the most urgent one and the cursor moves past
// the rest.
type ReminderService struct {
	repo       reminderStore
	recipients recipientReader
	notifier   reminderNotifier
	logger     *zap.Logger
	batchSize  int
	now        func() time.Time
}

// NewReminderService constructs the reminder scanner.
func NewReminderService(repo reminderStore, recipients recipientReader, notifier reminderNotifier, logger *zap.Logger, batchSize int) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ReminderService{
		repo:       repo,
		recipients: recipients,
		notifier:   notifier,
		logger:     logger,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (s *ReminderService) WithClock(now func() time.Time) *ReminderService {
	if now != nil {
		s.now = now
	}
	return s
}

// Scan processes every request whose cursor has come due. Overdue requests
// never show up here: the store only yields deadlines still in the future.
// Returns the number of reminders sent.
func (s *ReminderService) Scan(ctx context.Context) (int, error) {
	now := s.now().UTC()
	due, err := s.repo.ListDueReminders(ctx, now, s.batchSize)
	if err != nil {
		return 0, err
	}
	sent := 0
	for i := range due {
		req := &due[i]
		delivered, err := s.remind(ctx, req, now)
		if err != nil {
			s.logger.Error("reminder failed",
				zap.String("request_id", req.ID),
				zap.Error(err))
			continue
		}
		if delivered {
			sent++
		}
	}
	return sent, nil
}

func (s *ReminderService) remind(ctx context.Context, req *models.RecommendationRequest, now time.Time) (bool, error) {
	intervals := req.Intervals()
	daysLeft := daysUntil(req.Deadline, now)
	interval, ok := dueThreshold(intervals, daysLeft)
	if !ok {
		// Cursor due but every threshold is behind us already. Park the
		// cursor so the row stops matching the scan; last_reminder_sent
		// stays untouched since nothing went out.
		return false, s.repo.ClearReminderCursor(ctx, req.ID)
	}

	recipient, err := s.recipients.GetByID(ctx, req.RecipientID)
	if err != nil {
		return false, err
	}

	token := ""
	if req.SecureToken != nil {
		token = *req.SecureToken
	}
	s.notifier.SendReminder(req, recipient, token, daysLeft)

	next := nextReminderAfter(req.Deadline, intervals, interval)
	if err := s.repo.MarkReminderSent(ctx, req.ID, now, next); err != nil {
		return true, err
	}
	s.logger.Info("reminder sent",
		zap.String("request_id", req.ID),
		zap.Int("threshold_days", interval),
		zap.Int("days_left", daysLeft))
	return true, nil
}

// firstReminderDate picks the initial cursor at send time: the largest
// threshold whose date has not already passed. A request sent exactly on a
// threshold gets that reminder on the next scan.
func firstReminderDate(deadline time.Time, intervals []int, now time.Time) *time.Time {
	for _, days := range intervals {
		at := deadline.Add(-time.Duration(days) * 24 * time.Hour)
		if !at.Before(now) {
			return &at
		}
	}
	return nil
}

// dueThreshold is the smallest threshold still ahead of or at the deadline
// distance, i.e. the most urgent one that has been crossed.
func dueThreshold(intervals []int, daysLeft int) (int, bool) {
	chosen := 0
	found := false
	for _, days := range intervals {
		if days >= daysLeft {
			chosen = days
			found = true
		}
	}
	return chosen, found
}

// nextReminderAfter advances the cursor to the next smaller threshold than
// the one just satisfied, even when that date is already in the past; the
// following scan catches up.
func nextReminderAfter(deadline time.Time, intervals []int, satisfied int) *time.Time {
	for _, days := range intervals {
		if days < satisfied {
			at := deadline.Add(-time.Duration(days) * 24 * time.Hour)
			return &at
		}
	}
	return nil
}
