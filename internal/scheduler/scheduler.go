package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultScanSpec = "@hourly"

type reminderScanner interface {
	Scan(ctx context.Context) (int, error)
}

type reminderMeter interface {
	RecordReminderSent()
}

// Scheduler drives the periodic reminder scan on a cron schedule.
type Scheduler struct {
	scanner  reminderScanner
	metrics  reminderMeter
	cron     *cron.Cron
	scanSpec string
	enabled  bool
	log      *zap.Logger
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithScanSchedule overrides the cron specification for the reminder scan.
func WithScanSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.scanSpec = spec
		}
	}
}

// WithMetrics attaches the reminder counter.
func WithMetrics(m reminderMeter) Option {
	return func(s *Scheduler) {
		if m != nil {
			s.metrics = m
		}
	}
}

// Disabled turns the scheduler into a no-op while keeping RunOnce usable.
func Disabled() Option {
	return func(s *Scheduler) {
		s.enabled = false
	}
}

// New constructs a Scheduler. A nil scanner results in a no-op scheduler.
func New(scanner reminderScanner, log *zap.Logger, opts ...Option) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		scanner:  scanner,
		scanSpec: defaultScanSpec,
		enabled:  scanner != nil,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return s
}

// Start registers the scan job and launches the scheduler.
func (s *Scheduler) Start() error {
	if !s.enabled {
		return nil
	}
	if _, err := s.cron.AddFunc(s.scanSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("reminder scan failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("reminder scheduler started", zap.String("schedule", s.scanSpec))
	return nil
}

// Stop halts the scheduler, waiting for any running scan to complete.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes a single reminder scan. Used by the cron job, tests and
// graceful shutdown.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.scanner == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	sent, err := s.scanner.Scan(ctx)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		for i := 0; i < sent; i++ {
			s.metrics.RecordReminderSent()
		}
	}
	if sent > 0 {
		s.log.Info("reminder scan complete", zap.Int("sent", sent))
	}
	return nil
}
