package service

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/reco-letter-api/internal/models"
	"github.com/noah-isme/reco-letter-api/pkg/jobs"
	"github.com/noah-isme/reco-letter-api/pkg/mailer"
)

type emailDispatcher interface {
	Enqueue(job jobs.EmailJob) error
}

type emailMeter interface {
	RecordEmailQueued(kind string)
}

// NotificationService composes recipient-facing emails and hands them to the
// dispatch queue. Delivery is asynchronous; failures are retried by the queue.
type NotificationService struct {
	queue    emailDispatcher
	metrics  emailMeter
	linkBase string
	logger   *zap.Logger
}

// NewNotificationService constructs the notification service.
func NewNotificationService(queue emailDispatcher, metrics emailMeter, linkBase string, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{queue: queue, metrics: metrics, linkBase: strings.TrimRight(linkBase, "/"), logger: logger}
}

// PortalLink renders the emailed link embedding the secure token.
func (s *NotificationService) PortalLink(token string) string {
	return s.linkBase + "/" + token
}

// SendInvitation emails the recipient their secure link for a freshly sent request.
func (s *NotificationService) SendInvitation(req *models.RecommendationRequest, recipient *models.Recipient, token string) {
	link := s.PortalLink(token)
	subject := fmt.Sprintf("Recommendation letter request: %s", req.Title)
	text := fmt.Sprintf(
		"Dear %s,\n\nYou have been asked to write a recommendation letter (%q).\n"+
			"The deadline is %s.\n\nSubmit your letter here: %s\n\n"+
			"No account is needed; this link is personal, please do not forward it.\n",
		recipient.Name, req.Title, req.Deadline.Format("January 2, 2006"), link)

	s.enqueue(req.ID, jobs.KindInvitation, recipient.PrimaryEmail, subject, text)
}

// SendReminder emails the recipient that the deadline is approaching.
func (s *NotificationService) SendReminder(req *models.RecommendationRequest, recipient *models.Recipient, token string, daysLeft int) {
	link := s.PortalLink(token)
	subject := fmt.Sprintf("Reminder: recommendation letter due in %d day(s)", daysLeft)
	text := fmt.Sprintf(
		"Dear %s,\n\nThis is a reminder that the recommendation letter %q is due on %s "+
			"(%d day(s) from now).\n\nSubmit your letter here: %s\n",
		recipient.Name, req.Title, req.Deadline.Format("January 2, 2006"), daysLeft, link)

	s.enqueue(req.ID, jobs.KindReminder, recipient.PrimaryEmail, subject, text)
}

func (s *NotificationService) enqueue(requestID string, kind jobs.EmailKind, to, subject, text string) {
	job := jobs.EmailJob{
		RequestID: requestID,
		Kind:      kind,
		Message: mailer.Message{
			To:       []string{to},
			Subject:  subject,
			TextBody: text,
		},
		Enqueued: time.Now().UTC(),
	}
	if err := s.queue.Enqueue(job); err != nil {
		// Email is best-effort; the request transition has already been
		// persisted and must not be rolled back for a full queue.
		s.logger.Error("failed to enqueue email",
			zap.String("request_id", requestID), zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.RecordEmailQueued(string(kind))
	}
}
