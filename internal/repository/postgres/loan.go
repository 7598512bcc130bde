package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/logger"
	"bookshare-backend/internal/repository"
)

var loanColumns = []any{"id", "ledger_id", "copy_id", "borrower_id", "status", "deposit_amount",
	"borrowed_at", "due_at", "returned_at", "return_image_ref", "created_on", "updated_on"}

const loanSelect = `SELECT id, ledger_id, copy_id, borrower_id, status, deposit_amount, borrowed_at, due_at,
	returned_at, return_image_ref, created_on, updated_on FROM loans`

type loanRepository struct {
	db *sql.DB
}

func NewLoanRepository(db *sql.DB) repository.LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, l *domain.Loan) error {
	logger.EnterMethod("loanRepository.Create", "ledgerID", l.LedgerID, "copyID", l.CopyID, "borrowerID", l.BorrowerID)

	query := `INSERT INTO loans (ledger_id, copy_id, borrower_id, status, deposit_amount, borrowed_at, due_at, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	logger.DatabaseCall("INSERT", "loans")
	err := conn(ctx, r.db).QueryRowContext(ctx, query, l.LedgerID, l.CopyID, l.BorrowerID, l.Status, l.DepositAmount,
		l.BorrowedAt, l.DueAt, l.CreatedOn, l.UpdatedOn).Scan(&l.ID)
	if err != nil {
		if isUniqueViolation(err) {
			err = domain.ErrNotAvailableCopy.Withf("copy %d already has an open loan", l.CopyID)
		}
		logger.ExitMethodWithError("loanRepository.Create", err, "copyID", l.CopyID)
		return err
	}

	logger.ExitMethod("loanRepository.Create", "loanID", l.ID)
	return nil
}

func (r *loanRepository) GetByID(ctx context.Context, id int64) (*domain.Loan, error) {
	return r.get(ctx, id, false)
}

func (r *loanRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Loan, error) {
	return r.get(ctx, id, true)
}

func (r *loanRepository) get(ctx context.Context, id int64, lock bool) (*domain.Loan, error) {
	logger.EnterMethod("loanRepository.get", "loanID", id, "lock", lock)

	query := loanSelect + ` WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	l := &domain.Loan{}
	if err := scanLoan(conn(ctx, r.db).QueryRowContext(ctx, query, id), l); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrLoanNotFound.Withf("loan %d", id)
		}
		logger.ExitMethodWithError("loanRepository.get", err, "loanID", id)
		return nil, err
	}

	logger.ExitMethod("loanRepository.get", "loanID", id, "status", l.Status)
	return l, nil
}

func (r *loanRepository) Update(ctx context.Context, l *domain.Loan) error {
	logger.EnterMethod("loanRepository.Update", "loanID", l.ID, "status", l.Status)

	query := `UPDATE loans SET status=$1, due_at=$2, returned_at=$3, return_image_ref=$4, updated_on=$5 WHERE id=$6`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, l.Status, l.DueAt, l.ReturnedAt, l.ReturnImageRef, l.UpdatedOn, l.ID)
	if err != nil {
		logger.ExitMethodWithError("loanRepository.Update", err, "loanID", l.ID)
		return translate(err)
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err, "loanID", l.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrLoanNotFound.Withf("loan %d", l.ID)
	}

	logger.ExitMethod("loanRepository.Update", "loanID", l.ID)
	return nil
}

func (r *loanRepository) List(ctx context.Context, filter repository.LoanFilter) ([]domain.Loan, int32, error) {
	logger.EnterMethod("loanRepository.List", "borrowerID", filter.BorrowerID, "ledgerID", filter.LedgerID, "status", filter.Status)

	where := goqu.Ex{}
	if filter.BorrowerID != 0 {
		where["borrower_id"] = filter.BorrowerID
	}
	if filter.LedgerID != 0 {
		where["ledger_id"] = filter.LedgerID
	}
	if filter.Status != "" {
		where["status"] = string(filter.Status)
	}
	base := goqu.Dialect(dialect).From("loans").Prepared(true)
	if len(where) > 0 {
		base = base.Where(where)
	}

	countSQL, countArgs, err := base.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}
	db := conn(ctx, r.db)
	var count int32
	if err := db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&count); err != nil {
		logger.ExitMethodWithError("loanRepository.List", err)
		return nil, 0, err
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize)
	listSQL, listArgs, err := base.Select(loanColumns...).
		Order(goqu.I("created_on").Desc(), goqu.I("id").Desc()).
		Limit(limit).
		Offset(offset).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := db.QueryContext(ctx, listSQL, listArgs...)
	if err != nil {
		logger.ExitMethodWithError("loanRepository.List", err)
		return nil, 0, err
	}
	defer rows.Close()

	var loans []domain.Loan
	for rows.Next() {
		var l domain.Loan
		if err := scanLoan(rows, &l); err != nil {
			return nil, 0, err
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	logger.ExitMethod("loanRepository.List", "count", len(loans), "total", count)
	return loans, count, nil
}

func scanLoan(s scanner, l *domain.Loan) error {
	return s.Scan(&l.ID, &l.LedgerID, &l.CopyID, &l.BorrowerID, &l.Status, &l.DepositAmount, &l.BorrowedAt,
		&l.DueAt, &l.ReturnedAt, &l.ReturnImageRef, &l.CreatedOn, &l.UpdatedOn)
}
