package memory

import (
	"context"

	"bookshare-backend/internal/domain"
)

type auditRepository struct {
	store *Store
}

func (r *auditRepository) Append(ctx context.Context, e *domain.AuditEvent) error {
	return r.store.run(ctx, func(st *state) error {
		st.nextAuditID++
		e.ID = st.nextAuditID
		st.audit = append(st.audit, *e)
		return nil
	})
}
