package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/repository"
)

var loanRowColumns = []string{"id", "ledger_id", "copy_id", "borrower_id", "status", "deposit_amount",
	"borrowed_at", "due_at", "returned_at", "return_image_ref", "created_on", "updated_on"}

func newLoan() *domain.Loan {
	return &domain.Loan{
		LedgerID:      7,
		CopyID:        100,
		BorrowerID:    20,
		Status:        domain.LoanStatusRequested,
		DepositAmount: 500,
		BorrowedAt:    now,
		DueAt:         now.Add(14 * 24 * time.Hour),
		CreatedOn:     now,
		UpdatedOn:     now,
	}
}

func TestLoanRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewLoanRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		l := newLoan()
		mock.ExpectQuery("INSERT INTO loans").
			WithArgs(int64(7), int64(100), int64(20), "REQUESTED", int64(500), now, l.DueAt, now, now).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

		require.NoError(t, repo.Create(ctx, l))
		assert.Equal(t, int64(42), l.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Copy already on an open loan", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO loans").
			WillReturnError(&pq.Error{Code: codeUniqueViolation})

		err := repo.Create(ctx, newLoan())

		assert.ErrorIs(t, err, domain.ErrNotAvailableCopy)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLoanRepository_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewLoanRepository(db)
	ctx := context.Background()

	t.Run("Returned loan", func(t *testing.T) {
		mock.ExpectQuery("FROM loans WHERE id = \\$1 FOR UPDATE$").
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows(loanRowColumns).
				AddRow(42, 7, 100, 20, "RETURNED", 500, now, now, now, "img/42.jpg", now, now))

		l, err := repo.GetForUpdate(ctx, 42)

		require.NoError(t, err)
		assert.Equal(t, domain.LoanStatusReturned, l.Status)
		require.NotNil(t, l.ReturnImageRef)
		assert.Equal(t, "img/42.jpg", *l.ReturnImageRef)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not found", func(t *testing.T) {
		mock.ExpectQuery("FROM loans WHERE id = \\$1$").
			WithArgs(int64(43)).
			WillReturnRows(sqlmock.NewRows(loanRowColumns))

		_, err := repo.GetByID(ctx, 43)

		assert.ErrorIs(t, err, domain.ErrLoanNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLoanRepository_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewLoanRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		l := newLoan()
		l.ID = 42
		require.NoError(t, l.Confirm(now))

		mock.ExpectExec("UPDATE loans SET").
			WithArgs("BORROWED", l.DueAt, sqlmock.AnyArg(), sqlmock.AnyArg(), now, int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Update(ctx, l))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing row", func(t *testing.T) {
		l := newLoan()
		l.ID = 99
		mock.ExpectExec("UPDATE loans SET").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Update(ctx, l), domain.ErrLoanNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLoanRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewLoanRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "loans" WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`FROM "loans" WHERE (.+) ORDER BY "created_on" DESC, "id" DESC`).
		WillReturnRows(sqlmock.NewRows(loanRowColumns).
			AddRow(42, 7, 100, 20, "BORROWED", 500, now, now, nil, nil, now, now))

	loans, total, err := repo.List(context.Background(), repository.LoanFilter{BorrowerID: 20, Status: domain.LoanStatusBorrowed})

	require.NoError(t, err)
	assert.Equal(t, int32(1), total)
	require.Len(t, loans, 1)
	assert.Nil(t, loans[0].ReturnedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
