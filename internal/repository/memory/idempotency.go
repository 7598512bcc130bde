package memory

import (
	"context"
	"sync"
	"time"

	"bookshare-backend/internal/domain"
)

// idempotencyRepository keeps keys outside the transactional state so that a
// claimed key survives a rolled back unit of work.
type idempotencyRepository struct {
	mu   sync.Mutex
	keys map[string]domain.IdempotencyRecord
}

func (r *idempotencyRepository) Claim(ctx context.Context, key string, now, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.keys[key]; ok && rec.Live(now) {
		return false, nil
	}
	r.keys[key] = domain.IdempotencyRecord{Key: key, CreatedOn: now, ExpiresAt: expiresAt}
	return true, nil
}

func (r *idempotencyRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key, rec := range r.keys {
		if !rec.Live(now) {
			delete(r.keys, key)
			n++
		}
	}
	return n, nil
}
