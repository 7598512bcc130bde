package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/logger"
	"bookshare-backend/internal/repository"
)

type accountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

// GetBalance reports zero for users that never had an account row.
func (r *accountRepository) GetBalance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT balance_cents FROM accounts WHERE user_id = $1`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

func (r *accountRepository) Debit(ctx context.Context, userID, amount int64) (int64, error) {
	logger.EnterMethod("accountRepository.Debit", "userID", userID, "amount", amount)

	var balance int64
	query := `UPDATE accounts SET balance_cents = balance_cents - $2, updated_on = $3
	          WHERE user_id = $1 AND balance_cents >= $2 RETURNING balance_cents`
	logger.DatabaseCall("UPDATE", "accounts", "userID", userID)
	err := conn(ctx, r.db).QueryRowContext(ctx, query, userID, amount, time.Now()).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrInsufficientBalance.Withf("user %d cannot cover %d", userID, amount)
		}
		logger.ExitMethodWithError("accountRepository.Debit", err, "userID", userID)
		return 0, err
	}

	logger.ExitMethod("accountRepository.Debit", "userID", userID, "balance", balance)
	return balance, nil
}

func (r *accountRepository) Credit(ctx context.Context, userID, amount int64) (int64, error) {
	logger.EnterMethod("accountRepository.Credit", "userID", userID, "amount", amount)

	var balance int64
	query := `INSERT INTO accounts (user_id, balance_cents, updated_on) VALUES ($1, $2, $3)
	          ON CONFLICT (user_id) DO UPDATE SET balance_cents = accounts.balance_cents + EXCLUDED.balance_cents,
	          updated_on = EXCLUDED.updated_on
	          RETURNING balance_cents`
	err := conn(ctx, r.db).QueryRowContext(ctx, query, userID, amount, time.Now()).Scan(&balance)
	if err != nil {
		logger.ExitMethodWithError("accountRepository.Credit", err, "userID", userID)
		return 0, err
	}

	logger.ExitMethod("accountRepository.Credit", "userID", userID, "balance", balance)
	return balance, nil
}

func (r *accountRepository) CreateTransaction(ctx context.Context, tx *domain.BalanceTransaction) error {
	query := `INSERT INTO balance_transactions (user_id, amount, type, related_loan_id, description, created_on)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	return conn(ctx, r.db).QueryRowContext(ctx, query, tx.UserID, tx.Amount, tx.Type, tx.RelatedLoanID,
		tx.Description, tx.CreatedOn).Scan(&tx.ID)
}

func (r *accountRepository) ListTransactions(ctx context.Context, userID int64, page, pageSize int32) ([]domain.BalanceTransaction, int32, error) {
	db := conn(ctx, r.db)

	var count int32
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM balance_transactions WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return nil, 0, err
	}

	limit, offset := pageBounds(page, pageSize)
	query := `SELECT id, user_id, amount, type, related_loan_id, COALESCE(description, ''), created_on
	          FROM balance_transactions WHERE user_id = $1 ORDER BY created_on DESC, id DESC LIMIT $2 OFFSET $3`
	rows, err := db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var txs []domain.BalanceTransaction
	for rows.Next() {
		var tx domain.BalanceTransaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.Type, &tx.RelatedLoanID, &tx.Description, &tx.CreatedOn); err != nil {
			return nil, 0, err
		}
		txs = append(txs, tx)
	}
	return txs, count, rows.Err()
}
