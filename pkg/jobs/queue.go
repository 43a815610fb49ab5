package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/reco-letter-api/pkg/mailer"
)

// EmailKind distinguishes the email flavours the workflow produces.
type EmailKind string

const (
	KindInvitation EmailKind = "invitation"
	KindReminder   EmailKind = "reminder"
)

// EmailJob is a queued outbound email tied to a recommendation request.
type EmailJob struct {
	RequestID string
	Kind      EmailKind
	Message   mailer.Message
	Attempt   int
	Enqueued  time.Time
}

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// EmailQueue dispatches email jobs to a Mailer on a small worker pool, so SES
// latency never sits on the request path. Delivery is retried with a fixed delay.
type EmailQueue struct {
	sender mailer.Mailer

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	jobs    chan EmailJob
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewEmailQueue builds a queue delivering through the provided mailer.
func NewEmailQueue(sender mailer.Mailer, cfg QueueConfig) *EmailQueue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 8
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &EmailQueue{
		sender:     sender,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		jobs:       make(chan EmailJob, cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *EmailQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Sugar().Infow("email queue started", "workers", q.workers)
}

// Stop cancels workers and waits for them to exit.
func (q *EmailQueue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Sugar().Infow("email queue stopped")
}

// Enqueue pushes an email job onto the queue.
func (q *EmailQueue) Enqueue(job EmailJob) error {
	q.mu.Lock()
	ctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("email queue not started")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("email queue stopped: %w", err)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("email queue stopped: %w", ctx.Err())
	case q.jobs <- job:
		return nil
	}
}

func (q *EmailQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.sender.Send(q.ctx, job.Message); err != nil {
				q.handleFailure(job, err)
			}
		}
	}
}

func (q *EmailQueue) handleFailure(job EmailJob, err error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.logger.Sugar().Errorw("email delivery exceeded retries",
			"request_id", job.RequestID, "kind", job.Kind, "error", err)
		return
	}
	q.logger.Sugar().Warnw("email delivery failed, retrying",
		"request_id", job.RequestID, "kind", job.Kind, "attempt", job.Attempt, "error", err)

	go func(j EmailJob) {
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			if err := q.Enqueue(j); err != nil {
				q.logger.Sugar().Errorw("failed to requeue email job", "request_id", j.RequestID, "error", err)
			}
		}
	}(job)
}
