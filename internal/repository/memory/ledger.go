package memory

import (
	"context"
	"time"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/repository"
)

type ledgerRepository struct {
	store *Store
}

func (r *ledgerRepository) Create(ctx context.Context, l *domain.Ledger) error {
	return r.store.run(ctx, func(st *state) error {
		for _, other := range st.ledgers {
			if !other.IsDeleted() && other.TitleID == l.TitleID && other.LocationID == l.LocationID {
				return domain.ErrLedgerExists.Withf("title %d at location %d", l.TitleID, l.LocationID)
			}
		}
		st.nextLedgerID++
		l.ID = st.nextLedgerID
		l.Version = 1
		applyCopyChanges(st, l)
		st.ledgers[l.ID] = l.Clone()
		return nil
	})
}

func (r *ledgerRepository) GetByID(ctx context.Context, id int64) (*domain.Ledger, error) {
	var out *domain.Ledger
	err := r.store.run(ctx, func(st *state) error {
		l, ok := st.ledgers[id]
		if !ok || l.IsDeleted() {
			return domain.ErrLedgerNotFound.Withf("ledger %d", id)
		}
		out = l.Clone()
		return nil
	})
	return out, err
}

// GetForUpdate needs no extra locking: units of work are already serialized.
func (r *ledgerRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Ledger, error) {
	return r.GetByID(ctx, id)
}

func (r *ledgerRepository) Save(ctx context.Context, l *domain.Ledger) error {
	return r.store.run(ctx, func(st *state) error {
		current, ok := st.ledgers[l.ID]
		if !ok || current.IsDeleted() {
			return domain.ErrLedgerNotFound.Withf("ledger %d", l.ID)
		}
		if current.Version != l.Version {
			return domain.ErrConcurrencyConflict.Withf("ledger %d changed since version %d", l.ID, l.Version)
		}
		applyCopyChanges(st, l)
		l.Version++
		st.ledgers[l.ID] = l.Clone()
		return nil
	})
}

func (r *ledgerRepository) SoftDelete(ctx context.Context, l *domain.Ledger, at time.Time) error {
	return r.store.run(ctx, func(st *state) error {
		current, ok := st.ledgers[l.ID]
		if !ok || current.IsDeleted() {
			return domain.ErrLedgerNotFound.Withf("ledger %d", l.ID)
		}
		if current.Version != l.Version {
			return domain.ErrConcurrencyConflict.Withf("ledger %d changed since version %d", l.ID, l.Version)
		}
		l.DeletedOn = &at
		l.UpdatedOn = at
		l.Version++
		st.ledgers[l.ID] = l.Clone()
		return nil
	})
}

func (r *ledgerRepository) List(ctx context.Context, filter repository.LedgerFilter) ([]domain.Ledger, int32, error) {
	var out []domain.Ledger
	var total int32
	err := r.store.run(ctx, func(st *state) error {
		var matched []domain.Ledger
		for _, id := range sortedIDs(st.ledgers) {
			l := st.ledgers[id]
			if l.IsDeleted() ||
				(filter.OwnerID != 0 && l.OwnerID != filter.OwnerID) ||
				(filter.LocationID != 0 && l.LocationID != filter.LocationID) ||
				(filter.TitleID != 0 && l.TitleID != filter.TitleID) {
				continue
			}
			cp := l.Clone()
			cp.Copies = nil
			matched = append(matched, *cp)
		}
		total = int32(len(matched))
		out = page(matched, filter.Page, filter.PageSize)
		return nil
	})
	return out, total, err
}

// applyCopyChanges assigns ids to new copies and clears the pending delta.
func applyCopyChanges(st *state, l *domain.Ledger) {
	for _, c := range l.PendingChanges().Added {
		st.nextCopyID++
		c.ID = st.nextCopyID
		c.LedgerID = l.ID
	}
	l.MarkPersisted()
}
