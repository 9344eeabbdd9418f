package jobs_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/jobs"
	"dispatch/internal/tests"
)

type fakeExpirer struct {
	n     int64
	err   error
	calls atomic.Int32
}

func (f *fakeExpirer) ExpireOverdue(ctx context.Context) (int64, error) {
	f.calls.Add(1)
	return f.n, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQuoteExpiryJob_RunOnce(t *testing.T) {
	expirer := &fakeExpirer{n: 3}
	lock := tests.NewMockLockStore()
	job := jobs.NewQuoteExpiryJob(expirer, lock, "@every 1m", quietLogger())

	assert.Equal(t, int64(3), job.RunOnce(context.Background()))
	assert.Equal(t, int32(1), expirer.calls.Load())
	assert.False(t, lock.IsLocked("job:quote_expiry"), "lock released after the sweep")
}

func TestQuoteExpiryJob_SkipsWhenLockHeld(t *testing.T) {
	expirer := &fakeExpirer{n: 3}
	lock := tests.NewMockLockStore()
	lock.Hold("job:quote_expiry", time.Minute)
	job := jobs.NewQuoteExpiryJob(expirer, lock, "@every 1m", quietLogger())

	assert.Equal(t, int64(-1), job.RunOnce(context.Background()))
	assert.Zero(t, expirer.calls.Load())
}

func TestQuoteExpiryJob_LockError(t *testing.T) {
	expirer := &fakeExpirer{n: 3}
	lock := tests.NewMockLockStore()
	lock.AcquireError = errors.New("redis down")
	job := jobs.NewQuoteExpiryJob(expirer, lock, "@every 1m", quietLogger())

	assert.Equal(t, int64(-1), job.RunOnce(context.Background()))
	assert.Zero(t, expirer.calls.Load())
}

func TestQuoteExpiryJob_SweepError(t *testing.T) {
	expirer := &fakeExpirer{err: errors.New("db down")}
	job := jobs.NewQuoteExpiryJob(expirer, nil, "@every 1m", quietLogger())

	assert.Zero(t, job.RunOnce(context.Background()))
	assert.Equal(t, int32(1), expirer.calls.Load())
}

func TestQuoteExpiryJob_StartRejectsBadSchedule(t *testing.T) {
	job := jobs.NewQuoteExpiryJob(&fakeExpirer{}, nil, "not a schedule", quietLogger())
	assert.Error(t, job.Start())
}

func TestQuoteExpiryJob_StartStop(t *testing.T) {
	job := jobs.NewQuoteExpiryJob(&fakeExpirer{}, nil, "@every 1h", quietLogger())
	require.NoError(t, job.Start())
	job.Stop()
}
