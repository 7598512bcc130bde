package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/logger"
	"bookshare-backend/internal/repository"
)

const dialect = "postgres"

const ledgerColumns = `id, title_id, location_id, owner_id, total_copies, available_copies, borrowed_copies,
	deposit_amount, total_borrow_count, version, created_on, updated_on, deleted_on`

type ledgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) repository.LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Create(ctx context.Context, l *domain.Ledger) error {
	logger.EnterMethod("ledgerRepository.Create", "titleID", l.TitleID, "locationID", l.LocationID)

	query := `INSERT INTO ledgers (title_id, location_id, owner_id, total_copies, available_copies, borrowed_copies,
	          deposit_amount, total_borrow_count, version, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $10) RETURNING id, version`
	logger.DatabaseCall("INSERT", "ledgers")
	err := conn(ctx, r.db).QueryRowContext(ctx, query, l.TitleID, l.LocationID, l.OwnerID, l.TotalCopies,
		l.AvailableCopies, l.BorrowedCopies, l.DepositAmount, l.TotalBorrowCount, l.CreatedOn, l.UpdatedOn).
		Scan(&l.ID, &l.Version)
	if err != nil {
		if isUniqueViolation(err) {
			err = domain.ErrLedgerExists.Withf("title %d at location %d", l.TitleID, l.LocationID)
		}
		logger.ExitMethodWithError("ledgerRepository.Create", err, "titleID", l.TitleID)
		return err
	}

	if err := r.applyCopyChanges(ctx, l); err != nil {
		logger.ExitMethodWithError("ledgerRepository.Create", err, "ledgerID", l.ID)
		return err
	}
	l.MarkPersisted()

	logger.ExitMethod("ledgerRepository.Create", "ledgerID", l.ID)
	return nil
}

func (r *ledgerRepository) GetByID(ctx context.Context, id int64) (*domain.Ledger, error) {
	return r.get(ctx, id, false)
}

func (r *ledgerRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Ledger, error) {
	return r.get(ctx, id, true)
}

func (r *ledgerRepository) get(ctx context.Context, id int64, lock bool) (*domain.Ledger, error) {
	logger.EnterMethod("ledgerRepository.get", "ledgerID", id, "lock", lock)

	query := `SELECT ` + ledgerColumns + ` FROM ledgers WHERE id = $1 AND deleted_on IS NULL`
	if lock {
		query += ` FOR UPDATE`
	}
	db := conn(ctx, r.db)
	l := &domain.Ledger{}
	err := scanLedger(db.QueryRowContext(ctx, query, id), l)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrLedgerNotFound.Withf("ledger %d", id)
		}
		logger.ExitMethodWithError("ledgerRepository.get", err, "ledgerID", id)
		return nil, err
	}

	copies, err := r.loadCopies(ctx, db, id)
	if err != nil {
		logger.ExitMethodWithError("ledgerRepository.get", err, "ledgerID", id)
		return nil, err
	}
	l.Copies = copies

	logger.ExitMethod("ledgerRepository.get", "ledgerID", id, "copies", len(copies))
	return l, nil
}

func (r *ledgerRepository) loadCopies(ctx context.Context, db dbtx, ledgerID int64) ([]*domain.Copy, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, ledger_id, status, borrowed_at, due_at, created_on FROM copies WHERE ledger_id = $1 ORDER BY id`, ledgerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var copies []*domain.Copy
	for rows.Next() {
		c := &domain.Copy{}
		if err := rows.Scan(&c.ID, &c.LedgerID, &c.Status, &c.BorrowedAt, &c.DueAt, &c.CreatedOn); err != nil {
			return nil, err
		}
		copies = append(copies, c)
	}
	return copies, rows.Err()
}

// Save bumps the version only when it still matches what was loaded.
func (r *ledgerRepository) Save(ctx context.Context, l *domain.Ledger) error {
	logger.EnterMethod("ledgerRepository.Save", "ledgerID", l.ID, "version", l.Version)

	query := `UPDATE ledgers SET total_copies=$1, available_copies=$2, borrowed_copies=$3, deposit_amount=$4,
	          total_borrow_count=$5, updated_on=$6, version=version+1
	          WHERE id=$7 AND version=$8 AND deleted_on IS NULL`
	logger.DatabaseCall("UPDATE", "ledgers", "ledgerID", l.ID)
	res, err := conn(ctx, r.db).ExecContext(ctx, query, l.TotalCopies, l.AvailableCopies, l.BorrowedCopies,
		l.DepositAmount, l.TotalBorrowCount, l.UpdatedOn, l.ID, l.Version)
	if err != nil {
		logger.ExitMethodWithError("ledgerRepository.Save", err, "ledgerID", l.ID)
		return translate(err)
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err, "ledgerID", l.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		err = domain.ErrConcurrencyConflict.Withf("ledger %d changed since version %d", l.ID, l.Version)
		logger.ExitMethodWithError("ledgerRepository.Save", err, "ledgerID", l.ID)
		return err
	}

	if err := r.applyCopyChanges(ctx, l); err != nil {
		logger.ExitMethodWithError("ledgerRepository.Save", err, "ledgerID", l.ID)
		return err
	}
	l.Version++
	l.MarkPersisted()

	logger.ExitMethod("ledgerRepository.Save", "ledgerID", l.ID, "version", l.Version)
	return nil
}

func (r *ledgerRepository) applyCopyChanges(ctx context.Context, l *domain.Ledger) error {
	db := conn(ctx, r.db)
	changes := l.PendingChanges()

	for _, c := range changes.Added {
		c.LedgerID = l.ID
		err := db.QueryRowContext(ctx,
			`INSERT INTO copies (ledger_id, status, borrowed_at, due_at, created_on) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			c.LedgerID, c.Status, c.BorrowedAt, c.DueAt, c.CreatedOn).Scan(&c.ID)
		if err != nil {
			return fmt.Errorf("failed to insert copy: %w", err)
		}
	}
	for _, c := range changes.Updated {
		_, err := db.ExecContext(ctx,
			`UPDATE copies SET status=$1, borrowed_at=$2, due_at=$3 WHERE id=$4 AND ledger_id=$5`,
			c.Status, c.BorrowedAt, c.DueAt, c.ID, l.ID)
		if err != nil {
			return fmt.Errorf("failed to update copy %d: %w", c.ID, err)
		}
	}
	for _, id := range changes.Removed {
		if _, err := db.ExecContext(ctx, `DELETE FROM copies WHERE id=$1 AND ledger_id=$2`, id, l.ID); err != nil {
			return fmt.Errorf("failed to delete copy %d: %w", id, err)
		}
	}
	return nil
}

func (r *ledgerRepository) SoftDelete(ctx context.Context, l *domain.Ledger, at time.Time) error {
	logger.EnterMethod("ledgerRepository.SoftDelete", "ledgerID", l.ID)

	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE ledgers SET deleted_on=$1, updated_on=$1, version=version+1 WHERE id=$2 AND version=$3 AND deleted_on IS NULL`,
		at, l.ID, l.Version)
	if err != nil {
		logger.ExitMethodWithError("ledgerRepository.SoftDelete", err, "ledgerID", l.ID)
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = domain.ErrConcurrencyConflict.Withf("ledger %d changed since version %d", l.ID, l.Version)
		logger.ExitMethodWithError("ledgerRepository.SoftDelete", err, "ledgerID", l.ID)
		return err
	}
	l.DeletedOn = &at
	l.UpdatedOn = at
	l.Version++

	logger.ExitMethod("ledgerRepository.SoftDelete", "ledgerID", l.ID)
	return nil
}

// List returns live ledgers without their copies.
func (r *ledgerRepository) List(ctx context.Context, filter repository.LedgerFilter) ([]domain.Ledger, int32, error) {
	logger.EnterMethod("ledgerRepository.List", "ownerID", filter.OwnerID, "locationID", filter.LocationID)

	where := goqu.Ex{"deleted_on": nil}
	if filter.OwnerID != 0 {
		where["owner_id"] = filter.OwnerID
	}
	if filter.LocationID != 0 {
		where["location_id"] = filter.LocationID
	}
	if filter.TitleID != 0 {
		where["title_id"] = filter.TitleID
	}
	base := goqu.Dialect(dialect).From("ledgers").Prepared(true).Where(where)

	countSQL, countArgs, err := base.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}
	db := conn(ctx, r.db)
	var count int32
	if err := db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&count); err != nil {
		logger.ExitMethodWithError("ledgerRepository.List", err)
		return nil, 0, err
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize)
	listSQL, listArgs, err := base.
		Select("id", "title_id", "location_id", "owner_id", "total_copies", "available_copies", "borrowed_copies",
			"deposit_amount", "total_borrow_count", "version", "created_on", "updated_on", "deleted_on").
		Order(goqu.I("id").Asc()).
		Limit(limit).
		Offset(offset).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := db.QueryContext(ctx, listSQL, listArgs...)
	if err != nil {
		logger.ExitMethodWithError("ledgerRepository.List", err)
		return nil, 0, err
	}
	defer rows.Close()

	var ledgers []domain.Ledger
	for rows.Next() {
		var l domain.Ledger
		if err := scanLedger(rows, &l); err != nil {
			logger.ExitMethodWithError("ledgerRepository.List", err)
			return nil, 0, err
		}
		ledgers = append(ledgers, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	logger.ExitMethod("ledgerRepository.List", "count", len(ledgers), "total", count)
	return ledgers, count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLedger(s scanner, l *domain.Ledger) error {
	return s.Scan(&l.ID, &l.TitleID, &l.LocationID, &l.OwnerID, &l.TotalCopies, &l.AvailableCopies,
		&l.BorrowedCopies, &l.DepositAmount, &l.TotalBorrowCount, &l.Version, &l.CreatedOn, &l.UpdatedOn, &l.DeletedOn)
}
