package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bookshare-backend/internal/logger"
	"bookshare-backend/internal/repository"
)

type idempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) repository.IdempotencyRepository {
	return &idempotencyRepository{db: db}
}

// Claim always runs on its own connection so that a key stays used even
// when the business transaction behind it rolls back. An expired row is
// taken over in place.
func (r *idempotencyRepository) Claim(ctx context.Context, key string, now, expiresAt time.Time) (bool, error) {
	query := `INSERT INTO idempotency_keys (key, created_on, expires_at) VALUES ($1, $2, $3)
	          ON CONFLICT (key) DO UPDATE SET created_on = EXCLUDED.created_on, expires_at = EXCLUDED.expires_at
	          WHERE idempotency_keys.expires_at <= EXCLUDED.created_on
	          RETURNING key`
	logger.DatabaseCall("UPSERT", "idempotency_keys", "key", key)
	var claimed string
	err := r.db.QueryRowContext(ctx, query, key, now, expiresAt).Scan(&claimed)
	if errors.Is(err, sql.ErrNoRows) {
		logger.DatabaseResult("UPSERT", 0, nil, "key", key)
		return false, nil
	}
	if err != nil {
		logger.DatabaseResult("UPSERT", 0, err, "key", key)
		return false, err
	}
	logger.DatabaseResult("UPSERT", 1, nil, "key", key)
	return true, nil
}

func (r *idempotencyRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("DELETE", n, err, "table", "idempotency_keys")
	return n, err
}
