package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestWithinTx_RollbackDiscardsChanges(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.LedgerRepository.Create(ctx, domain.NewLedger(1, 1, 10, 2, 0, now)))
		_, err := s.AccountRepository.Credit(ctx, 20, 500)
		require.NoError(t, err)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	_, err = s.LedgerRepository.GetByID(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrLedgerNotFound)
	balance, err := s.AccountRepository.GetBalance(ctx, 20)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestWithinTx_NestedJoinsOuter(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		inner := s.WithinTx(ctx, func(ctx context.Context) error {
			_, err := s.AccountRepository.Credit(ctx, 20, 500)
			return err
		})
		require.NoError(t, inner)

		balance, err := s.AccountRepository.GetBalance(ctx, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(500), balance, "inner write visible to the outer unit of work")
		return boom
	})

	assert.ErrorIs(t, err, boom)
	balance, err := s.AccountRepository.GetBalance(ctx, 20)
	require.NoError(t, err)
	assert.Zero(t, balance, "inner write rolled back with the outer one")
}

func TestLedger_CreateAssignsIDs(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	l := domain.NewLedger(1, 1, 10, 3, 0, now)

	require.NoError(t, s.LedgerRepository.Create(ctx, l))

	assert.Equal(t, int64(1), l.ID)
	assert.Equal(t, int64(1), l.Version)
	assert.Empty(t, l.PendingChanges().Added)
	got, err := s.LedgerRepository.GetByID(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, got.Copies, 3)
	for i, c := range got.Copies {
		assert.Equal(t, int64(i+1), c.ID)
		assert.Equal(t, l.ID, c.LedgerID)
	}
}

func TestLedger_UniqueTitlePerLocation(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	first := domain.NewLedger(1, 1, 10, 1, 0, now)
	require.NoError(t, s.LedgerRepository.Create(ctx, first))

	err := s.LedgerRepository.Create(ctx, domain.NewLedger(1, 1, 11, 1, 0, now))
	assert.ErrorIs(t, err, domain.ErrLedgerExists)

	require.NoError(t, s.LedgerRepository.Create(ctx, domain.NewLedger(1, 2, 10, 1, 0, now)))

	require.NoError(t, s.LedgerRepository.SoftDelete(ctx, first, now))
	assert.NoError(t, s.LedgerRepository.Create(ctx, domain.NewLedger(1, 1, 10, 1, 0, now)))
}

func TestLedger_SaveIsVersioned(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.LedgerRepository.Create(ctx, domain.NewLedger(1, 1, 10, 1, 0, now)))

	a, err := s.LedgerRepository.GetByID(ctx, 1)
	require.NoError(t, err)
	b, err := s.LedgerRepository.GetByID(ctx, 1)
	require.NoError(t, err)

	a.Grow(2, now)
	require.NoError(t, s.LedgerRepository.Save(ctx, a))
	assert.Equal(t, int64(2), a.Version)

	b.Grow(1, now)
	err = s.LedgerRepository.Save(ctx, b)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	got, err := s.LedgerRepository.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalCopies)
	assert.NoError(t, got.CheckInvariants())
}

func TestLedger_SoftDeleteHidesLedger(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	l := domain.NewLedger(1, 1, 10, 1, 0, now)
	require.NoError(t, s.LedgerRepository.Create(ctx, l))

	require.NoError(t, s.LedgerRepository.SoftDelete(ctx, l, now))

	_, err := s.LedgerRepository.GetByID(ctx, l.ID)
	assert.ErrorIs(t, err, domain.ErrLedgerNotFound)
	items, total, err := s.LedgerRepository.List(ctx, repository.LedgerFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)
	assert.ErrorIs(t, s.LedgerRepository.SoftDelete(ctx, l, now), domain.ErrLedgerNotFound)
}

func TestLedger_ListFiltersAndPages(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for loc := int64(1); loc <= 5; loc++ {
		require.NoError(t, s.LedgerRepository.Create(ctx, domain.NewLedger(1, loc, 10, 1, 0, now)))
	}
	require.NoError(t, s.LedgerRepository.Create(ctx, domain.NewLedger(2, 1, 11, 1, 0, now)))

	items, total, err := s.LedgerRepository.List(ctx, repository.LedgerFilter{OwnerID: 10, Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int32(5), total)
	require.Len(t, items, 2)
	assert.Equal(t, int64(3), items[0].ID)
	assert.Nil(t, items[0].Copies)

	items, total, err = s.LedgerRepository.List(ctx, repository.LedgerFilter{LocationID: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(2), total)
	assert.Len(t, items, 2)
}

func TestLoan_OneOpenLoanPerCopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	open := &domain.Loan{LedgerID: 1, CopyID: 5, BorrowerID: 20, Status: domain.LoanStatusBorrowed, CreatedOn: now}
	require.NoError(t, s.LoanRepository.Create(ctx, open))

	err := s.LoanRepository.Create(ctx, &domain.Loan{LedgerID: 1, CopyID: 5, BorrowerID: 21, Status: domain.LoanStatusRequested})
	assert.ErrorIs(t, err, domain.ErrNotAvailableCopy)

	require.NoError(t, open.ConfirmReturn("", now))
	require.NoError(t, s.LoanRepository.Update(ctx, open))
	assert.NoError(t, s.LoanRepository.Create(ctx, &domain.Loan{LedgerID: 1, CopyID: 5, BorrowerID: 21, Status: domain.LoanStatusRequested}))
}

func TestLoan_ListNewestFirst(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.LoanRepository.Create(ctx, &domain.Loan{
			LedgerID: 1, CopyID: int64(i + 1), BorrowerID: 20,
			Status: domain.LoanStatusRequested, CreatedOn: now.Add(time.Duration(i) * time.Minute),
		}))
	}

	items, total, err := s.LoanRepository.List(ctx, repository.LoanFilter{BorrowerID: 20})
	require.NoError(t, err)
	assert.Equal(t, int32(3), total)
	require.Len(t, items, 3)
	assert.Equal(t, int64(3), items[0].ID)

	_, err = s.LoanRepository.GetByID(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
	assert.ErrorIs(t, s.LoanRepository.Update(ctx, &domain.Loan{ID: 99}), domain.ErrLoanNotFound)
}

func TestAccount_Debit(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_, err := s.AccountRepository.Credit(ctx, 20, 300)
	require.NoError(t, err)

	_, err = s.AccountRepository.Debit(ctx, 20, 301)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	balance, err := s.AccountRepository.Debit(ctx, 20, 300)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestAccount_TransactionsNewestFirst(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for _, amount := range []int64{100, -50, 25} {
		require.NoError(t, s.AccountRepository.CreateTransaction(ctx, &domain.BalanceTransaction{UserID: 20, Amount: amount}))
	}
	require.NoError(t, s.AccountRepository.CreateTransaction(ctx, &domain.BalanceTransaction{UserID: 21, Amount: 1}))

	items, total, err := s.AccountRepository.ListTransactions(ctx, 20, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(3), total)
	require.Len(t, items, 2)
	assert.Equal(t, int64(25), items[0].Amount)
	assert.Equal(t, int64(-50), items[1].Amount)
}

func TestIdempotency_ClaimSurvivesRollback(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	expires := now.Add(time.Minute)

	_ = s.WithinTx(ctx, func(ctx context.Context) error {
		claimed, err := s.IdempotencyRepository.Claim(ctx, "k1", now, expires)
		require.NoError(t, err)
		assert.True(t, claimed)
		return errors.New("boom")
	})

	claimed, err := s.IdempotencyRepository.Claim(ctx, "k1", now.Add(time.Second), expires)
	require.NoError(t, err)
	assert.False(t, claimed)

	claimed, err = s.IdempotencyRepository.Claim(ctx, "k1", expires, expires.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, claimed, "expired key can be claimed again")
}

func TestIdempotency_PurgeExpired(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_, err := s.IdempotencyRepository.Claim(ctx, "old", now, now.Add(time.Minute))
	require.NoError(t, err)
	_, err = s.IdempotencyRepository.Claim(ctx, "new", now, now.Add(time.Hour))
	require.NoError(t, err)

	n, err := s.IdempotencyRepository.PurgeExpired(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAudit_AppendAndRollback(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.AuditRepository.Append(ctx, &domain.AuditEvent{Type: "ledger.created", Operation: domain.OpCreateLedger}))
	_ = s.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.AuditRepository.Append(ctx, &domain.AuditEvent{Type: "ledger.deleted"}))
		return errors.New("boom")
	})

	events := s.AuditEvents()
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].ID)
	assert.Equal(t, "ledger.created", events[0].Type)
}
