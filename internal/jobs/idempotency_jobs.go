package jobs

import (
	"context"
	"fmt"

	"bookshare-backend/internal/logger"
)

// PurgeExpiredIdempotencyKeys deletes idempotency records whose window has
// closed. Live keys are never touched.
func (jr *JobRunner) PurgeExpiredIdempotencyKeys() {
	jr.runWithRecovery("PurgeExpiredIdempotencyKeys", func(ctx context.Context) error {
		_, err := jr.purgeExpiredIdempotencyKeys(ctx)
		return err
	})
}

func (jr *JobRunner) purgeExpiredIdempotencyKeys(ctx context.Context) (int64, error) {
	purged, err := jr.keys.PurgeExpired(ctx, jr.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge idempotency keys: %w", err)
	}
	logger.Info("Purged expired idempotency keys", "count", purged)
	return purged, nil
}
