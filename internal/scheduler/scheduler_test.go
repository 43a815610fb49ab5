package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeScanner struct {
	sent  int
	err   error
	calls int
}

func (f *fakeScanner) Scan(ctx context.Context) (int, error) {
	f.calls++
	return f.sent, f.err
}

type fakeMeter struct {
	count int
}

func (f *fakeMeter) RecordReminderSent() { f.count++ }

func TestSchedulerRunOnceCountsSentReminders(t *testing.T) {
	scanner := &fakeScanner{sent: 3}
	meter := &fakeMeter{}
	s := New(scanner, zap.NewNop(), WithMetrics(meter))

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, scanner.calls)
	assert.Equal(t, 3, meter.count)
}

func TestSchedulerRunOncePropagatesScanError(t *testing.T) {
	scanner := &fakeScanner{err: errors.New("db down")}
	meter := &fakeMeter{}
	s := New(scanner, zap.NewNop(), WithMetrics(meter))

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, meter.count)
}

func TestSchedulerDisabledStartIsNoop(t *testing.T) {
	scanner := &fakeScanner{sent: 1}
	s := New(scanner, zap.NewNop(), Disabled())

	require.NoError(t, s.Start())
	assert.Equal(t, 0, scanner.calls)
	<-s.Stop().Done()
}

func TestSchedulerNilScannerRunOnce(t *testing.T) {
	s := New(nil, zap.NewNop())
	require.NoError(t, s.RunOnce(context.Background()))
}

func TestSchedulerStartRejectsBadSpec(t *testing.T) {
	s := New(&fakeScanner{}, zap.NewNop(), WithScanSchedule("not a cron spec"))
	assert.Error(t, s.Start())
}
