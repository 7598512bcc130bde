package repository

import (
	"context"
	"time"

	"bookshare-backend/internal/domain"
)

// Transactor runs fn as one atomic unit of work. Repository calls made with
// the context passed to fn join the transaction; nested calls join the outer
// one. Any error returned by fn rolls everything back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type LedgerFilter struct {
	OwnerID    int64
	LocationID int64
	TitleID    int64
	Page       int32
	PageSize   int32
}

type LoanFilter struct {
	BorrowerID int64
	LedgerID   int64
	Status     domain.LoanStatus
	Page       int32
	PageSize   int32
}

type LedgerRepository interface {
	// Create inserts the ledger and its copies and assigns their ids.
	Create(ctx context.Context, ledger *domain.Ledger) error
	// GetByID loads a live ledger with its copies.
	GetByID(ctx context.Context, id int64) (*domain.Ledger, error)
	// GetForUpdate is GetByID holding a row lock until the transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.Ledger, error)
	// Save writes the counters and pending copy changes. It fails with
	// domain.ErrConcurrencyConflict when the stored version moved on.
	Save(ctx context.Context, ledger *domain.Ledger) error
	SoftDelete(ctx context.Context, ledger *domain.Ledger, at time.Time) error
	List(ctx context.Context, filter LedgerFilter) ([]domain.Ledger, int32, error)
}

type LoanRepository interface {
	Create(ctx context.Context, loan *domain.Loan) error
	GetByID(ctx context.Context, id int64) (*domain.Loan, error)
	GetForUpdate(ctx context.Context, id int64) (*domain.Loan, error)
	Update(ctx context.Context, loan *domain.Loan) error
	List(ctx context.Context, filter LoanFilter) ([]domain.Loan, int32, error)
}

type AccountRepository interface {
	GetBalance(ctx context.Context, userID int64) (int64, error)
	// Debit lowers the balance only when it covers amount and returns
	// domain.ErrInsufficientBalance otherwise.
	Debit(ctx context.Context, userID, amount int64) (int64, error)
	Credit(ctx context.Context, userID, amount int64) (int64, error)
	CreateTransaction(ctx context.Context, tx *domain.BalanceTransaction) error
	ListTransactions(ctx context.Context, userID int64, page, pageSize int32) ([]domain.BalanceTransaction, int32, error)
}

type IdempotencyRepository interface {
	// Claim stores key until expiresAt unless a live record already holds
	// it. It reports whether this call obtained the key.
	Claim(ctx context.Context, key string, now, expiresAt time.Time) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type AuditRepository interface {
	Append(ctx context.Context, event *domain.AuditEvent) error
}
