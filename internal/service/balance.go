package service

import (
	"context"
	"time"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/logger"
	"bookshare-backend/internal/repository"
)

type balanceService struct {
	tx       repository.Transactor
	accounts repository.AccountRepository
	guard    IdempotencyGuard
	now      func() time.Time
	retry    retryPolicy
}

func NewBalanceService(tx repository.Transactor, accounts repository.AccountRepository, guard IdempotencyGuard, opts ...Option) BalanceService {
	o := buildOptions(opts)
	return &balanceService{
		tx:       tx,
		accounts: accounts,
		guard:    guard,
		now:      o.now,
		retry:    o.retry,
	}
}

// Debit takes amount from the user's balance and records the transaction.
// When called inside a unit of work it joins it.
func (s *balanceService) Debit(ctx context.Context, userID, amount int64, relatedLoanID *int64, description string) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidArgument.Withf("debit amount must be positive, got %d", amount)
	}

	var balance int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if balance, err = s.accounts.Debit(ctx, userID, amount); err != nil {
			return err
		}
		return s.accounts.CreateTransaction(ctx, &domain.BalanceTransaction{
			UserID:        userID,
			Amount:        -amount,
			Type:          domain.TransactionTypeDepositDebit,
			RelatedLoanID: relatedLoanID,
			Description:   description,
			CreatedOn:     s.now(),
		})
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *balanceService) Credit(ctx context.Context, userID, amount int64, description string) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidArgument.Withf("credit amount must be positive, got %d", amount)
	}

	var balance int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if balance, err = s.accounts.Credit(ctx, userID, amount); err != nil {
			return err
		}
		return s.accounts.CreateTransaction(ctx, &domain.BalanceTransaction{
			UserID:      userID,
			Amount:      amount,
			Type:        domain.TransactionTypeTopUpCredit,
			Description: description,
			CreatedOn:   s.now(),
		})
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *balanceService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	return s.accounts.GetBalance(ctx, userID)
}

func (s *balanceService) ListTransactions(ctx context.Context, userID int64, page, pageSize int32) ([]domain.BalanceTransaction, int32, error) {
	return s.accounts.ListTransactions(ctx, userID, page, pageSize)
}

// TopUp credits a user on behalf of the payment collaborator.
func (s *balanceService) TopUp(ctx context.Context, actor domain.Actor, traceID string, userID, amount int64) (int64, error) {
	if err := domain.AuthorizeSystem(actor); err != nil {
		return 0, err
	}
	if userID <= 0 {
		return 0, domain.ErrInvalidArgument.Withf("user id is required")
	}
	if amount <= 0 {
		return 0, domain.ErrInvalidArgument.Withf("top up amount must be positive, got %d", amount)
	}

	op := domain.OpTopUpBalance
	if err := s.guard.Guard(ctx, op, traceID, accepted(op, traceID, actor, "account", userID, map[string]any{"amount": amount})); err != nil {
		return 0, err
	}

	var balance int64
	err := s.retry.inTx(ctx, s.tx, func(ctx context.Context) error {
		var err error
		balance, err = s.Credit(ctx, userID, amount, "balance top up")
		return err
	})
	if err != nil {
		return 0, err
	}

	logger.FromContext(ctx).Info("Balance topped up", "user_id", userID, "amount", amount, "balance", balance)
	return balance, nil
}
