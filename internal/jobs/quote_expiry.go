package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"dispatch/internal/redis"
)

const (
	quoteExpiryLockName = "job:quote_expiry"
	quoteExpiryLockTTL  = time.Minute
	quoteExpiryTimeout  = 30 * time.Second
)

// QuoteExpirer persists lazy quote expiry.
type QuoteExpirer interface {
	ExpireOverdue(ctx context.Context) (int64, error)
}

// QuoteExpiryJob periodically marks overdue quotes expired. A Redis lock
// keeps replicas from sweeping concurrently.
type QuoteExpiryJob struct {
	expirer  QuoteExpirer
	lock     redis.LockStoreInterface
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewQuoteExpiryJob creates the job. schedule uses cron syntax or
// descriptors such as "@every 5m". lock may be nil for a single replica.
func NewQuoteExpiryJob(expirer QuoteExpirer, lock redis.LockStoreInterface, schedule string, logger *slog.Logger) *QuoteExpiryJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteExpiryJob{
		expirer:  expirer,
		lock:     lock,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "quote_expiry_job"),
	}
}

// Start registers the sweep and starts the scheduler.
func (j *QuoteExpiryJob) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), quoteExpiryTimeout)
		defer cancel()
		j.RunOnce(ctx)
	}); err != nil {
		return err
	}

	j.cron.Start()
	j.logger.Info("quote expiry job started", "schedule", j.schedule)
	return nil
}

// Stop stops the scheduler and waits for a running sweep.
func (j *QuoteExpiryJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("quote expiry job stopped")
}

// RunOnce performs a single sweep. It returns how many quotes expired, or
// -1 when another replica holds the lock.
func (j *QuoteExpiryJob) RunOnce(ctx context.Context) int64 {
	if j.lock != nil {
		acquired, err := j.lock.Acquire(ctx, quoteExpiryLockName, quoteExpiryLockTTL)
		if err != nil {
			j.logger.ErrorContext(ctx, "quote expiry lock failed", "error", err)
			return -1
		}
		if !acquired {
			return -1
		}
		defer func() {
			_ = j.lock.Release(context.Background(), quoteExpiryLockName)
		}()
	}

	n, err := j.expirer.ExpireOverdue(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "quote expiry sweep failed", "error", err)
		return 0
	}
	return n
}
