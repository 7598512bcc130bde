package memory

import (
	"context"

	"bookshare-backend/internal/domain"
)

type accountRepository struct {
	store *Store
}

func (r *accountRepository) GetBalance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := r.store.run(ctx, func(st *state) error {
		balance = st.balances[userID]
		return nil
	})
	return balance, err
}

func (r *accountRepository) Debit(ctx context.Context, userID, amount int64) (int64, error) {
	var balance int64
	err := r.store.run(ctx, func(st *state) error {
		if st.balances[userID] < amount {
			return domain.ErrInsufficientBalance.Withf("user %d cannot cover %d", userID, amount)
		}
		st.balances[userID] -= amount
		balance = st.balances[userID]
		return nil
	})
	return balance, err
}

func (r *accountRepository) Credit(ctx context.Context, userID, amount int64) (int64, error) {
	var balance int64
	err := r.store.run(ctx, func(st *state) error {
		st.balances[userID] += amount
		balance = st.balances[userID]
		return nil
	})
	return balance, err
}

func (r *accountRepository) CreateTransaction(ctx context.Context, tx *domain.BalanceTransaction) error {
	return r.store.run(ctx, func(st *state) error {
		st.nextTxID++
		tx.ID = st.nextTxID
		st.transactions = append(st.transactions, *tx)
		return nil
	})
}

func (r *accountRepository) ListTransactions(ctx context.Context, userID int64, pageNum, pageSize int32) ([]domain.BalanceTransaction, int32, error) {
	var out []domain.BalanceTransaction
	var total int32
	err := r.store.run(ctx, func(st *state) error {
		var matched []domain.BalanceTransaction
		for i := len(st.transactions) - 1; i >= 0; i-- {
			if st.transactions[i].UserID == userID {
				matched = append(matched, st.transactions[i])
			}
		}
		total = int32(len(matched))
		out = page(matched, pageNum, pageSize)
		return nil
	})
	return out, total, err
}
