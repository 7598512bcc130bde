package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/logger"
	"bookshare-backend/internal/repository"
)

// keyNamespace seeds the name-based UUIDs used as idempotency keys. Changing
// it invalidates every live key.
var keyNamespace = uuid.MustParse("5b0e3a6c-8f4d-4e2a-9c71-3d2f6a8b1e47")

// Key derives the idempotency key for op and the caller's trace id.
func Key(op domain.Operation, traceID string) (string, error) {
	if op == "" {
		return "", domain.ErrInvalidArgument.Withf("operation is required")
	}
	if traceID == "" {
		return "", domain.ErrInvalidArgument.Withf("trace id is required")
	}
	return uuid.NewSHA1(keyNamespace, []byte(string(op)+":"+traceID)).String(), nil
}

type idempotencyGuard struct {
	keys       repository.IdempotencyRepository
	audit      repository.AuditRepository
	defaultTTL time.Duration
	overrides  map[string]time.Duration
	// keys this process claimed, with their expiry
	claimed *expirable.LRU[string, time.Time]
	now     func() time.Time
}

func NewIdempotencyGuard(
	keys repository.IdempotencyRepository,
	audit repository.AuditRepository,
	defaultTTL time.Duration,
	overrides map[string]time.Duration,
	cacheSize int,
	opts ...Option,
) IdempotencyGuard {
	o := buildOptions(opts)

	maxTTL := defaultTTL
	for _, ttl := range overrides {
		if ttl > maxTTL {
			maxTTL = ttl
		}
	}
	return &idempotencyGuard{
		keys:       keys,
		audit:      audit,
		defaultTTL: defaultTTL,
		overrides:  overrides,
		claimed:    expirable.NewLRU[string, time.Time](cacheSize, nil, maxTTL),
		now:        o.now,
	}
}

func (g *idempotencyGuard) Guard(ctx context.Context, op domain.Operation, traceID string, onFirstUse func() *domain.AuditEvent) error {
	key, err := Key(op, traceID)
	if err != nil {
		return err
	}
	return g.CheckIdempotency(ctx, key, g.ttlFor(op), onFirstUse)
}

// CheckIdempotency claims key for ttl. A key that is already held fails with
// ErrDuplicateRequest no matter how the earlier attempt ended.
func (g *idempotencyGuard) CheckIdempotency(ctx context.Context, key string, ttl time.Duration, onFirstUse func() *domain.AuditEvent) error {
	if key == "" {
		return domain.ErrInvalidArgument.Withf("idempotency key is required")
	}
	if ttl <= 0 {
		return domain.ErrInvalidArgument.Withf("idempotency ttl must be positive, got %s", ttl)
	}
	log := logger.FromContext(ctx)
	now := g.now()

	if expiresAt, ok := g.claimed.Get(key); ok && now.Before(expiresAt) {
		log.Info("Duplicate request rejected", "key", key, "source", "cache")
		return domain.ErrDuplicateRequest.Withf("key %s is held until %s", key, expiresAt.Format(time.RFC3339))
	}

	expiresAt := now.Add(ttl)
	ok, err := g.keys.Claim(ctx, key, now, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if !ok {
		log.Info("Duplicate request rejected", "key", key, "source", "store")
		return domain.ErrDuplicateRequest.Withf("key %s is already in use", key)
	}
	g.claimed.Add(key, expiresAt)

	if onFirstUse == nil {
		return nil
	}
	event := onFirstUse()
	if event == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now
	}
	if err := g.audit.Append(ctx, event); err != nil {
		log.Warn("Failed to record audit event", "key", key, "operation", event.Operation, "error", err)
	}
	return nil
}

func (g *idempotencyGuard) ttlFor(op domain.Operation) time.Duration {
	if ttl, ok := g.overrides[string(op)]; ok {
		return ttl
	}
	return g.defaultTTL
}

// accepted builds the audit event recorded when a guarded request is first
// seen.
func accepted(op domain.Operation, traceID string, actor domain.Actor, aggregateType string, aggregateID int64, payload map[string]any) func() *domain.AuditEvent {
	return func() *domain.AuditEvent {
		return &domain.AuditEvent{
			Type:          "request.accepted",
			Operation:     op,
			TraceID:       traceID,
			ActorID:       actor.UserID,
			AggregateType: aggregateType,
			AggregateID:   aggregateID,
			Payload:       payload,
		}
	}
}
