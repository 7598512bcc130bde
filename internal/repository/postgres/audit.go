package postgres

import (
	"context"
	"database/sql"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/repository"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type auditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) repository.AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, e *domain.AuditEvent) error {
	var payload any
	if len(e.Payload) > 0 {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode audit payload: %w", err)
		}
		payload = string(b)
	}
	query := `INSERT INTO audit_events (type, operation, trace_id, actor_id, aggregate_type, aggregate_id, payload, occurred_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	return conn(ctx, r.db).QueryRowContext(ctx, query, e.Type, e.Operation, e.TraceID, e.ActorID, e.AggregateType,
		e.AggregateID, payload, e.OccurredAt).Scan(&e.ID)
}
