package memory

import (
	"context"
	"sort"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/repository"
)

type loanRepository struct {
	store *Store
}

func (r *loanRepository) Create(ctx context.Context, l *domain.Loan) error {
	return r.store.run(ctx, func(st *state) error {
		for _, other := range st.loans {
			if other.CopyID == l.CopyID && !other.IsTerminal() {
				return domain.ErrNotAvailableCopy.Withf("copy %d already has an open loan", l.CopyID)
			}
		}
		st.nextLoanID++
		l.ID = st.nextLoanID
		st.loans[l.ID] = cloneLoan(l)
		return nil
	})
}

func (r *loanRepository) GetByID(ctx context.Context, id int64) (*domain.Loan, error) {
	var out *domain.Loan
	err := r.store.run(ctx, func(st *state) error {
		l, ok := st.loans[id]
		if !ok {
			return domain.ErrLoanNotFound.Withf("loan %d", id)
		}
		out = cloneLoan(l)
		return nil
	})
	return out, err
}

func (r *loanRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Loan, error) {
	return r.GetByID(ctx, id)
}

func (r *loanRepository) Update(ctx context.Context, l *domain.Loan) error {
	return r.store.run(ctx, func(st *state) error {
		if _, ok := st.loans[l.ID]; !ok {
			return domain.ErrLoanNotFound.Withf("loan %d", l.ID)
		}
		st.loans[l.ID] = cloneLoan(l)
		return nil
	})
}

// List orders newest first like the SQL implementation.
func (r *loanRepository) List(ctx context.Context, filter repository.LoanFilter) ([]domain.Loan, int32, error) {
	var out []domain.Loan
	var total int32
	err := r.store.run(ctx, func(st *state) error {
		var matched []domain.Loan
		for _, l := range st.loans {
			if (filter.BorrowerID != 0 && l.BorrowerID != filter.BorrowerID) ||
				(filter.LedgerID != 0 && l.LedgerID != filter.LedgerID) ||
				(filter.Status != "" && l.Status != filter.Status) {
				continue
			}
			matched = append(matched, *cloneLoan(l))
		}
		sort.Slice(matched, func(i, j int) bool {
			if !matched[i].CreatedOn.Equal(matched[j].CreatedOn) {
				return matched[i].CreatedOn.After(matched[j].CreatedOn)
			}
			return matched[i].ID > matched[j].ID
		})
		total = int32(len(matched))
		out = page(matched, filter.Page, filter.PageSize)
		return nil
	})
	return out, total, err
}
