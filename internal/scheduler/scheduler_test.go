package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/intakeplan/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	logger.Discard()
	s := New(logger.WithComponent("scheduler-test"))
	t.Cleanup(s.Stop)
	return s
}

func TestAddRejectsInvalidJobs(t *testing.T) {
	s := newTestScheduler(t)

	err := s.Add(Job{Name: "broken", Spec: "not a cron", Run: func(context.Context) error { return nil }})
	assert.Error(t, err)

	err = s.Add(Job{Name: "empty", Spec: "@daily"})
	assert.Error(t, err)

	require.NoError(t, s.Add(Job{Name: "refresh", Spec: "0 0 * * *", Run: func(context.Context) error { return nil }}))
	assert.Error(t, s.Add(Job{Name: "refresh", Spec: "@hourly", Run: func(context.Context) error { return nil }}))

	_, ok := s.Next("missing")
	assert.False(t, ok)
}

func TestJobsRunAfterStart(t *testing.T) {
	s := newTestScheduler(t)

	var ok, failed atomic.Int32
	require.NoError(t, s.Add(Job{Name: "tick", Spec: "@every 1s", Run: func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		ok.Add(1)
		return nil
	}}))
	require.NoError(t, s.Add(Job{Name: "fail", Spec: "@every 1s", Timeout: time.Second, Run: func(context.Context) error {
		failed.Add(1)
		return errors.New("boom")
	}}))

	s.Start()
	assert.Eventually(t, func() bool {
		next, found := s.Next("tick")
		return found && !next.IsZero()
	}, time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool { return ok.Load() > 0 && failed.Load() > 0 }, 3*time.Second, 20*time.Millisecond)

	s.Stop()
	ran := ok.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, ran, ok.Load())
}
