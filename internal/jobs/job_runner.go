package jobs

import (
	"context"
	"time"

	"bookshare-backend/internal/config"
	"bookshare-backend/internal/logger"
	"bookshare-backend/internal/repository"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	keys    repository.IdempotencyRepository
	ledgers repository.LedgerRepository
	config  *config.Config
	now     func() time.Time
	timeout time.Duration
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(keys repository.IdempotencyRepository, ledgers repository.LedgerRepository, cfg *config.Config) *JobRunner {
	return &JobRunner{
		keys:    keys,
		ledgers: ledgers,
		config:  cfg,
		now:     func() time.Time { return time.Now().UTC() },
		timeout: 5 * time.Minute,
	}
}

// Config returns the configuration the runner was built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery and a deadline
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jr.timeout)
	defer cancel()

	logger.Info("Starting job", "job", jobName)
	start := time.Now()
	if err := jobFunc(ctx); err != nil {
		logger.Error("Job failed", "job", jobName, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	logger.Info("Job completed", "job", jobName, "duration_ms", time.Since(start).Milliseconds())
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.PurgeExpiredIdempotencyKeys()
	jr.AuditLedgerInvariants()
}
