package service

import (
	"context"
	"time"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/repository"
)

// IdempotencyGuard rejects a second use of the same operation and trace id
// while the first use is still inside its TTL window.
type IdempotencyGuard interface {
	CheckIdempotency(ctx context.Context, key string, ttl time.Duration, onFirstUse func() *domain.AuditEvent) error
	Guard(ctx context.Context, op domain.Operation, traceID string, onFirstUse func() *domain.AuditEvent) error
}

type CreateLedgerInput struct {
	TitleID       int64
	LocationID    int64
	Copies        int
	DepositAmount int64
}

type InventoryService interface {
	CreateLedger(ctx context.Context, actor domain.Actor, traceID string, in CreateLedgerInput) (*domain.Ledger, error)
	ResizeLedger(ctx context.Context, actor domain.Actor, traceID string, ledgerID int64, target int) (*domain.Ledger, error)
	AddCopies(ctx context.Context, actor domain.Actor, traceID string, ledgerID int64, n int) (*domain.Ledger, error)
	RemoveCopies(ctx context.Context, actor domain.Actor, traceID string, ledgerID int64, n int) (*domain.Ledger, error)
	SetDeposit(ctx context.Context, actor domain.Actor, traceID string, ledgerID, amount int64) (*domain.Ledger, error)
	RemoveDeposit(ctx context.Context, actor domain.Actor, traceID string, ledgerID int64) (*domain.Ledger, error)
	DeleteLedger(ctx context.Context, actor domain.Actor, traceID string, ledgerID int64) error
	GetLedger(ctx context.Context, ledgerID int64) (*domain.Ledger, error)
	ListLedgers(ctx context.Context, filter repository.LedgerFilter) ([]domain.Ledger, int32, error)
}

type LendingService interface {
	RequestBorrow(ctx context.Context, actor domain.Actor, traceID string, ledgerID int64, days int) (*domain.LoanOutcome, error)
	ConfirmLoan(ctx context.Context, actor domain.Actor, traceID string, loanID int64) (*domain.LoanOutcome, error)
	ExtendLoan(ctx context.Context, actor domain.Actor, traceID string, loanID int64, newDueAt time.Time) (*domain.LoanOutcome, error)
	SuspendLoan(ctx context.Context, actor domain.Actor, traceID string, loanID int64) (*domain.LoanOutcome, error)
	CancelLoan(ctx context.Context, actor domain.Actor, traceID string, loanID int64) (*domain.LoanOutcome, error)
	ConfirmReturn(ctx context.Context, actor domain.Actor, traceID string, loanID int64, proofRef string) (*domain.LoanOutcome, error)
	MarkOverdue(ctx context.Context, actor domain.Actor, traceID string, loanID int64) (*domain.LoanOutcome, error)
	GetLoan(ctx context.Context, actor domain.Actor, loanID int64) (*domain.Loan, error)
	ListLoans(ctx context.Context, actor domain.Actor, filter repository.LoanFilter) ([]domain.Loan, int32, error)
}

// DepositLedger takes the borrower's deposit as part of a borrow.
type DepositLedger interface {
	Hold(ctx context.Context, borrowerID, amount, loanID int64) error
}

type BalanceService interface {
	Debit(ctx context.Context, userID, amount int64, relatedLoanID *int64, description string) (int64, error)
	Credit(ctx context.Context, userID, amount int64, description string) (int64, error)
	GetBalance(ctx context.Context, userID int64) (int64, error)
	ListTransactions(ctx context.Context, userID int64, page, pageSize int32) ([]domain.BalanceTransaction, int32, error)
	TopUp(ctx context.Context, actor domain.Actor, traceID string, userID, amount int64) (int64, error)
}

type options struct {
	now   func() time.Time
	retry retryPolicy
}

type Option func(*options)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithRetry bounds how often a unit of work is re-run after a concurrency
// conflict.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(o *options) {
		if maxAttempts > 0 {
			o.retry.maxAttempts = maxAttempts
		}
		if baseDelay >= 0 {
			o.retry.baseDelay = baseDelay
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:   func() time.Time { return time.Now().UTC() },
		retry: defaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
