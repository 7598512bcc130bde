package service

import (
	"context"
	"errors"
	"time"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/events"
	"bookshare-backend/internal/logger"
	"bookshare-backend/internal/repository"
)

// LendingPolicy bounds loan periods in days. A zero limit means unbounded.
type LendingPolicy struct {
	DefaultLoanDays int
	MaxLoanDays     int
	// MaxExtendDays caps how far past BorrowedAt an extension may push the
	// due date.
	MaxExtendDays int
}

const day = 24 * time.Hour

type lendingService struct {
	tx        repository.Transactor
	ledgers   repository.LedgerRepository
	loans     repository.LoanRepository
	deposits  DepositLedger
	guard     IdempotencyGuard
	publisher events.Publisher
	policy    LendingPolicy
	now       func() time.Time
	retry     retryPolicy
}

func NewLendingService(
	tx repository.Transactor,
	ledgers repository.LedgerRepository,
	loans repository.LoanRepository,
	deposits DepositLedger,
	guard IdempotencyGuard,
	publisher events.Publisher,
	policy LendingPolicy,
	opts ...Option,
) LendingService {
	o := buildOptions(opts)
	return &lendingService{
		tx:        tx,
		ledgers:   ledgers,
		loans:     loans,
		deposits:  deposits,
		guard:     guard,
		publisher: publisher,
		policy:    policy,
		now:       o.now,
		retry:     o.retry,
	}
}

// RequestBorrow reserves a copy, opens a loan and takes the deposit in one
// unit of work. A failed deposit leaves no copy reserved.
func (s *lendingService) RequestBorrow(ctx context.Context, actor domain.Actor, traceID string, ledgerID int64, days int) (*domain.LoanOutcome, error) {
	if actor.UserID == 0 {
		return nil, domain.ErrForbidden.Withf("only users can borrow")
	}
	if days == 0 {
		days = s.policy.DefaultLoanDays
	}
	if days <= 0 {
		return nil, domain.ErrInvalidArgument.Withf("loan period must be positive, got %d days", days)
	}
	if s.policy.MaxLoanDays > 0 && days > s.policy.MaxLoanDays {
		return nil, domain.ErrInvalidArgument.Withf("loan period must be between 1 and %d days, got %d", s.policy.MaxLoanDays, days)
	}

	op := domain.OpRequestBorrow
	if err := s.guard.Guard(ctx, op, traceID, accepted(op, traceID, actor, "ledger", ledgerID, map[string]any{"days": days})); err != nil {
		return nil, err
	}

	var outcome *domain.LoanOutcome
	err := s.retry.inTx(ctx, s.tx, func(ctx context.Context) error {
		ledger, err := s.ledgers.GetForUpdate(ctx, ledgerID)
		if err != nil {
			return err
		}
		now := s.now()
		c, err := ledger.ReserveOneCopy(now, now.Add(time.Duration(days)*day))
		if err != nil {
			return err
		}
		if err := ledger.CheckInvariants(); err != nil {
			return err
		}
		if err := s.ledgers.Save(ctx, ledger); err != nil {
			return err
		}

		loan := domain.NewLoan(ledger.ID, c, actor.UserID, ledger.DepositAmount, now)
		if err := s.loans.Create(ctx, loan); err != nil {
			return err
		}
		if loan.DepositAmount > 0 {
			if err := s.deposits.Hold(ctx, actor.UserID, loan.DepositAmount, loan.ID); err != nil {
				return err
			}
		}
		outcome = &domain.LoanOutcome{Loan: loan, Counters: ledger.Counters()}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, op, 0, err)
		return nil, err
	}

	logger.FromContext(ctx).Info("Borrow requested", "loan_id", outcome.Loan.ID, "ledger_id", ledgerID,
		"copy_id", outcome.Loan.CopyID, "borrower_id", actor.UserID, "deposit", outcome.Loan.DepositAmount)
	s.publish(ctx, "loan.requested", traceID, outcome)
	return outcome, nil
}

func (s *lendingService) ConfirmLoan(ctx context.Context, actor domain.Actor, traceID string, loanID int64) (*domain.LoanOutcome, error) {
	return s.transition(ctx, actor, traceID, domain.OpConfirmLoan, loanID, "loan.borrowed", nil,
		domain.AuthorizeBorrowerOrOwner,
		func(loan *domain.Loan, _ *domain.Ledger, now time.Time) (bool, error) {
			return false, loan.Confirm(now)
		})
}

func (s *lendingService) ExtendLoan(ctx context.Context, actor domain.Actor, traceID string, loanID int64, newDueAt time.Time) (*domain.LoanOutcome, error) {
	if newDueAt.IsZero() {
		return nil, domain.ErrInvalidArgument.Withf("new due date is required")
	}
	return s.transition(ctx, actor, traceID, domain.OpExtendLoan, loanID, "loan.extended",
		map[string]any{"new_due_at": newDueAt},
		domain.AuthorizeBorrowerOrOwner,
		func(loan *domain.Loan, ledger *domain.Ledger, now time.Time) (bool, error) {
			if err := loan.Extend(newDueAt, now); err != nil {
				return false, err
			}
			if limit := s.policy.MaxExtendDays; limit > 0 && newDueAt.After(loan.BorrowedAt.Add(time.Duration(limit)*day)) {
				return false, domain.ErrIllegalExtendDate.Withf("loan %d cannot be extended past %d days", loan.ID, limit)
			}
			return true, ledger.ExtendCopy(loan.CopyID, newDueAt, now)
		})
}

// SuspendLoan ends a loan early and puts the copy back without return proof.
func (s *lendingService) SuspendLoan(ctx context.Context, actor domain.Actor, traceID string, loanID int64) (*domain.LoanOutcome, error) {
	return s.transition(ctx, actor, traceID, domain.OpSuspendLoan, loanID, "loan.suspended", nil,
		domain.AuthorizeBorrowerOrOwner,
		func(loan *domain.Loan, ledger *domain.Ledger, now time.Time) (bool, error) {
			if err := loan.Suspend(now); err != nil {
				return false, err
			}
			return true, ledger.ReleaseOneCopy(loan.CopyID, now)
		})
}

// CancelLoan withdraws a request that was never confirmed. The deposit is
// not refunded.
func (s *lendingService) CancelLoan(ctx context.Context, actor domain.Actor, traceID string, loanID int64) (*domain.LoanOutcome, error) {
	return s.transition(ctx, actor, traceID, domain.OpCancelLoan, loanID, "loan.cancelled", nil,
		domain.AuthorizeBorrowerOrOwner,
		func(loan *domain.Loan, ledger *domain.Ledger, now time.Time) (bool, error) {
			if err := loan.Cancel(now); err != nil {
				return false, err
			}
			return true, ledger.ReleaseOneCopy(loan.CopyID, now)
		})
}

func (s *lendingService) ConfirmReturn(ctx context.Context, actor domain.Actor, traceID string, loanID int64, proofRef string) (*domain.LoanOutcome, error) {
	return s.transition(ctx, actor, traceID, domain.OpConfirmReturn, loanID, "loan.returned",
		map[string]any{"proof_ref": proofRef},
		func(actor domain.Actor, _ *domain.Loan, ledger *domain.Ledger) error {
			return domain.AuthorizeOwner(actor, ledger)
		},
		func(loan *domain.Loan, ledger *domain.Ledger, now time.Time) (bool, error) {
			if err := loan.ConfirmReturn(proofRef, now); err != nil {
				return false, err
			}
			return true, ledger.ReleaseOneCopy(loan.CopyID, now)
		})
}

func (s *lendingService) MarkOverdue(ctx context.Context, actor domain.Actor, traceID string, loanID int64) (*domain.LoanOutcome, error) {
	return s.transition(ctx, actor, traceID, domain.OpMarkOverdue, loanID, "loan.overdue", nil,
		func(actor domain.Actor, _ *domain.Loan, ledger *domain.Ledger) error {
			return domain.AuthorizeOwnerOrSystem(actor, ledger)
		},
		func(loan *domain.Loan, ledger *domain.Ledger, now time.Time) (bool, error) {
			if err := loan.MarkOverdue(now); err != nil {
				return false, err
			}
			return true, ledger.MarkCopyOverdue(loan.CopyID, now)
		})
}

func (s *lendingService) GetLoan(ctx context.Context, actor domain.Actor, loanID int64) (*domain.Loan, error) {
	loan, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if actor.System || actor.UserID == loan.BorrowerID {
		return loan, nil
	}
	ledger, err := s.ledgers.GetByID(ctx, loan.LedgerID)
	if err != nil {
		return nil, err
	}
	if err := domain.AuthorizeBorrowerOrOwner(actor, loan, ledger); err != nil {
		return nil, err
	}
	return loan, nil
}

// ListLoans lists a ledger's loans for its owner, otherwise the caller's own
// loans.
func (s *lendingService) ListLoans(ctx context.Context, actor domain.Actor, filter repository.LoanFilter) ([]domain.Loan, int32, error) {
	if filter.LedgerID != 0 {
		ledger, err := s.ledgers.GetByID(ctx, filter.LedgerID)
		if err != nil {
			return nil, 0, err
		}
		if !actor.System {
			if err := domain.AuthorizeOwner(actor, ledger); err != nil {
				return nil, 0, err
			}
		}
	} else if !actor.System {
		filter.BorrowerID = actor.UserID
	}
	return s.loans.List(ctx, filter)
}

type authorizeFunc func(actor domain.Actor, loan *domain.Loan, ledger *domain.Ledger) error

// applyFunc moves the loan and reports whether the ledger changed too.
type applyFunc func(loan *domain.Loan, ledger *domain.Ledger, now time.Time) (bool, error)

// transition locks the ledger and then the loan, authorizes the actor and
// applies one lifecycle step in a single unit of work.
func (s *lendingService) transition(
	ctx context.Context,
	actor domain.Actor,
	traceID string,
	op domain.Operation,
	loanID int64,
	eventType string,
	payload map[string]any,
	authorize authorizeFunc,
	apply applyFunc,
) (*domain.LoanOutcome, error) {
	if err := s.guard.Guard(ctx, op, traceID, accepted(op, traceID, actor, "loan", loanID, payload)); err != nil {
		return nil, err
	}

	var outcome *domain.LoanOutcome
	err := s.retry.inTx(ctx, s.tx, func(ctx context.Context) error {
		ref, err := s.loans.GetByID(ctx, loanID)
		if err != nil {
			return err
		}
		ledger, err := s.ledgers.GetForUpdate(ctx, ref.LedgerID)
		if err != nil {
			return err
		}
		loan, err := s.loans.GetForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		if err := authorize(actor, loan, ledger); err != nil {
			return err
		}

		now := s.now()
		ledgerChanged, err := apply(loan, ledger, now)
		if err != nil {
			return err
		}
		if ledgerChanged {
			if err := ledger.CheckInvariants(); err != nil {
				return err
			}
			if err := s.ledgers.Save(ctx, ledger); err != nil {
				return err
			}
		}
		if err := s.loans.Update(ctx, loan); err != nil {
			return err
		}
		outcome = &domain.LoanOutcome{Loan: loan, Counters: ledger.Counters()}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, op, loanID, err)
		return nil, err
	}

	logger.FromContext(ctx).Info("Loan updated", "operation", op, "loan_id", loanID, "status", outcome.Loan.Status,
		"available", outcome.Counters.AvailableCopies, "borrowed", outcome.Counters.BorrowedCopies)
	s.publish(ctx, eventType, traceID, outcome)
	return outcome, nil
}

func (s *lendingService) logFailure(ctx context.Context, op domain.Operation, loanID int64, err error) {
	log := logger.FromContext(ctx)
	if errors.Is(err, domain.ErrInventoryInvariantViolation) {
		log.Error("Inventory invariant violated", "operation", op, "loan_id", loanID, "error", err)
		return
	}
	log.Info("Loan operation rejected", "operation", op, "loan_id", loanID, "code", domain.CodeOf(err), "error", err)
}

func (s *lendingService) publish(ctx context.Context, eventType, traceID string, outcome *domain.LoanOutcome) {
	msg := events.Message{Type: eventType, TraceID: traceID, OccurredAt: s.now(), Data: outcome}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		logger.FromContext(ctx).Warn("Failed to publish event", "type", eventType, "loan_id", outcome.Loan.ID, "error", err)
	}
}
