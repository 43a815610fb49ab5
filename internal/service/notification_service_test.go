package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/reco-letter-api/internal/models"
	"github.com/noah-isme/reco-letter-api/pkg/jobs"
)

type fakeDispatcher struct {
	jobs []jobs.EmailJob
	err  error
}

func (f *fakeDispatcher) Enqueue(job jobs.EmailJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeEmailMeter struct {
	kinds []string
}

func (f *fakeEmailMeter) RecordEmailQueued(kind string) {
	f.kinds = append(f.kinds, kind)
}

func notificationFixture() (*models.RecommendationRequest, *models.Recipient) {
	req := &models.RecommendationRequest{
		ID:          "req-1",
		RecipientID: "rec-1",
		Title:       "Fellowship application",
		Deadline:    time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	return req, &models.Recipient{ID: "rec-1", Name: "Prof. Chen", PrimaryEmail: "chen@uni.edu"}
}

func TestNotificationServiceSendInvitation(t *testing.T) {
	queue := &fakeDispatcher{}
	meter := &fakeEmailMeter{}
	svc := NewNotificationService(queue, meter, "https://letters.example.com/portal/", nil)
	req, recipient := notificationFixture()

	svc.SendInvitation(req, recipient, "tok-abc")

	require.Len(t, queue.jobs, 1)
	job := queue.jobs[0]
	assert.Equal(t, jobs.KindInvitation, job.Kind)
	assert.Equal(t, "req-1", job.RequestID)
	assert.Equal(t, []string{"chen@uni.edu"}, job.Message.To)
	assert.Contains(t, job.Message.TextBody, "https://letters.example.com/portal/tok-abc")
	assert.Equal(t, []string{"invitation"}, meter.kinds)
}

func TestNotificationServiceSendReminder(t *testing.T) {
	queue := &fakeDispatcher{}
	meter := &fakeEmailMeter{}
	svc := NewNotificationService(queue, meter, "https://letters.example.com/portal", nil)
	req, recipient := notificationFixture()

	svc.SendReminder(req, recipient, "tok-abc", 3)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, jobs.KindReminder, queue.jobs[0].Kind)
	assert.Contains(t, queue.jobs[0].Message.Subject, "3 day(s)")
	assert.Equal(t, []string{"reminder"}, meter.kinds)
}

func TestNotificationServiceEnqueueFailureNotCounted(t *testing.T) {
	queue := &fakeDispatcher{err: errors.New("queue full")}
	meter := &fakeEmailMeter{}
	svc := NewNotificationService(queue, meter, "https://letters.example.com/portal", nil)
	req, recipient := notificationFixture()

	svc.SendInvitation(req, recipient, "tok-abc")

	assert.Empty(t, queue.jobs)
	assert.Empty(t, meter.kinds)
}
