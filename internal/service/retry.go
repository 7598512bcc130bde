package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/logger"
	"bookshare-backend/internal/repository"
)

const (
	defaultMaxAttempts  = 5
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{maxAttempts: defaultMaxAttempts, baseDelay: defaultBaseDelay}
}

// inTx runs fn as one unit of work and re-runs it with exponential backoff
// while it fails with a concurrency conflict. Every other error fails fast.
func (p retryPolicy) inTx(ctx context.Context, tx repository.Transactor, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := p.baseDelay * time.Duration(1<<(attempt-1))
			delay += time.Duration(rand.Float64() * float64(delay) * defaultJitterFactor)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = tx.WithinTx(ctx, fn)
		if lastErr == nil || !errors.Is(lastErr, domain.ErrConcurrencyConflict) {
			return lastErr
		}
		logger.FromContext(ctx).Warn("Unit of work hit a concurrency conflict", "attempt", attempt+1, "error", lastErr)
	}
	return lastErr
}
