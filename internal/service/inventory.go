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

type inventoryService struct {
	tx        repository.Transactor
	ledgers   repository.LedgerRepository
	guard     IdempotencyGuard
	publisher events.Publisher
	now       func() time.Time
	retry     retryPolicy
}

func NewInventoryService(
	tx repository.Transactor,
	ledgers repository.LedgerRepository,
	guard IdempotencyGuard,
	publisher events.Publisher,
	opts ...Option,
) InventoryService {
	o := buildOptions(opts)
	return &inventoryService{
		tx:        tx,
		ledgers:   ledgers,
		guard:     guard,
		publisher: publisher,
		now:       o.now,
		retry:     o.retry,
	}
}

func (s *inventoryService) CreateLedger(ctx context.Context, actor domain.Actor, traceID string, in CreateLedgerInput) (*domain.Ledger, error) {
	switch {
	case actor.UserID == 0:
		return nil, domain.ErrForbidden.Withf("ledgers are owned by a user")
	case in.TitleID <= 0 || in.LocationID <= 0:
		return nil, domain.ErrInvalidArgument.Withf("title and location are required")
	case in.Copies < 0 || in.Copies > MaxCopiesPerChange:
		return nil, domain.ErrInvalidArgument.Withf("copies must be between 0 and %d, got %d", MaxCopiesPerChange, in.Copies)
	case in.DepositAmount < 0:
		return nil, domain.ErrInvalidArgument.Withf("deposit must not be negative, got %d", in.DepositAmount)
	}

	payload := map[string]any{"title_id": in.TitleID, "location_id": in.LocationID, "copies": in.Copies}
	if err := s.guard.Guard(ctx, domain.OpCreateLedger, traceID, accepted(domain.OpCreateLedger, traceID, actor, "ledger", 0, payload)); err != nil {
		return nil, err
	}

	var created *domain.Ledger
	err := s.retry.inTx(ctx, s.tx, func(ctx context.Context) error {
		l := domain.NewLedger(in.TitleID, in.LocationID, actor.UserID, in.Copies, in.DepositAmount, s.now())
		if err := l.CheckInvariants(); err != nil {
			return err
		}
		if err := s.ledgers.Create(ctx, l); err != nil {
			return err
		}
		created = l
		return nil
	})
	if err != nil {
		s.logFailure(ctx, domain.OpCreateLedger, 0, err)
		return nil, err
	}

	logger.FromContext(ctx).Info("Ledger created", "ledger_id", created.ID, "title_id", created.TitleID,
		"location_id", created.LocationID, "copies", created.TotalCopies)
	s.publish(ctx, "ledger.created", traceID, created)
	return created, nil
}

// MaxCopiesPerChange bounds how many copies one request may create.
const MaxCopiesPerChange = 10000

func (s *inventoryService) ResizeLedger(ctx context.Context, actor domain.Actor, traceID string, ledgerID int64, target int) (*domain.Ledger, error) {
	if target < 0 {
		return nil, domain.ErrInvalidArgument.Withf("target copies must not be negative, got %d", target)
	}
	return s.mutate(ctx, actor, traceID, domain.OpResizeLedger, ledgerID, "ledger.resized",
		map[string]any{"target": target},
		func(l *domain.Ledger, now time.Time) error {
			if grow := target - l.TotalCopies; grow > MaxCopiesPerChange {
				return domain.ErrInvalidArgument.Withf("cannot add %d copies at once, limit is %d", grow, MaxCopiesPerChange)
			}
			return l.Resize(target, now)
		})
}

func (s *inventoryService) AddCopies(ctx context.Context, actor domain.Actor, traceID string, ledgerID int64, n int) (*domain.Ledger, error) {
	if n <= 0 || n > MaxCopiesPerChange {
		return nil, domain.ErrInvalidArgument.Withf("copies to add must be between 1 and %d, got %d", MaxCopiesPerChange, n)
	}
	return s.mutate(ctx, actor, traceID, domain.OpAddCopies, ledgerID, "ledger.copies_added",
		map[string]any{"count": n},
		func(l *domain.Ledger, now time.Time) error {
			l.Grow(n, now)
			return nil
		})
}

func (s *inventoryService) RemoveCopies(ctx context.Context, actor domain.Actor, traceID string, ledgerID int64, n int) (*domain.Ledger, error) {
	if n <= 0 {
		return nil, domain.ErrInvalidArgument.Withf("copies to remove must be positive, got %d", n)
	}
	return s.mutate(ctx, actor, traceID, domain.OpRemoveCopies, ledgerID, "ledger.copies_removed",
		map[string]any{"count": n},
		func(l *domain.Ledger, now time.Time) error {
			_, err := l.Shrink(n, now)
			return err
		})
}

func (s *inventoryService) SetDeposit(ctx context.Context, actor domain.Actor, traceID string, ledgerID, amount int64) (*domain.Ledger, error) {
	if amount < 0 {
		return nil, domain.ErrInvalidArgument.Withf("deposit must not be negative, got %d", amount)
	}
	return s.mutate(ctx, actor, traceID, domain.OpSetDeposit, ledgerID, "ledger.deposit_set",
		map[string]any{"amount": amount},
		func(l *domain.Ledger, now time.Time) error {
			if err := l.SetDeposit(amount); err != nil {
				return err
			}
			l.UpdatedOn = now
			return nil
		})
}

func (s *inventoryService) RemoveDeposit(ctx context.Context, actor domain.Actor, traceID string, ledgerID int64) (*domain.Ledger, error) {
	return s.mutate(ctx, actor, traceID, domain.OpRemoveDeposit, ledgerID, "ledger.deposit_removed", nil,
		func(l *domain.Ledger, now time.Time) error {
			l.RemoveDeposit()
			l.UpdatedOn = now
			return nil
		})
}

// DeleteLedger soft deletes a ledger whose copies are all on the shelf.
func (s *inventoryService) DeleteLedger(ctx context.Context, actor domain.Actor, traceID string, ledgerID int64) error {
	if err := s.guard.Guard(ctx, domain.OpDeleteLedger, traceID, accepted(domain.OpDeleteLedger, traceID, actor, "ledger", ledgerID, nil)); err != nil {
		return err
	}

	var deleted *domain.Ledger
	err := s.retry.inTx(ctx, s.tx, func(ctx context.Context) error {
		l, err := s.ledgers.GetForUpdate(ctx, ledgerID)
		if err != nil {
			return err
		}
		if err := domain.AuthorizeOwner(actor, l); err != nil {
			return err
		}
		if err := l.CanDelete(); err != nil {
			return err
		}
		if err := s.ledgers.SoftDelete(ctx, l, s.now()); err != nil {
			return err
		}
		deleted = l
		return nil
	})
	if err != nil {
		s.logFailure(ctx, domain.OpDeleteLedger, ledgerID, err)
		return err
	}

	logger.FromContext(ctx).Info("Ledger deleted", "ledger_id", ledgerID)
	s.publish(ctx, "ledger.deleted", traceID, deleted)
	return nil
}

func (s *inventoryService) GetLedger(ctx context.Context, ledgerID int64) (*domain.Ledger, error) {
	return s.ledgers.GetByID(ctx, ledgerID)
}

func (s *inventoryService) ListLedgers(ctx context.Context, filter repository.LedgerFilter) ([]domain.Ledger, int32, error) {
	return s.ledgers.List(ctx, filter)
}

// mutate runs change against the locked ledger inside one unit of work and
// persists the result when the counters still hold.
func (s *inventoryService) mutate(
	ctx context.Context,
	actor domain.Actor,
	traceID string,
	op domain.Operation,
	ledgerID int64,
	eventType string,
	payload map[string]any,
	change func(l *domain.Ledger, now time.Time) error,
) (*domain.Ledger, error) {
	if err := s.guard.Guard(ctx, op, traceID, accepted(op, traceID, actor, "ledger", ledgerID, payload)); err != nil {
		return nil, err
	}

	var out *domain.Ledger
	err := s.retry.inTx(ctx, s.tx, func(ctx context.Context) error {
		l, err := s.ledgers.GetForUpdate(ctx, ledgerID)
		if err != nil {
			return err
		}
		if err := domain.AuthorizeOwner(actor, l); err != nil {
			return err
		}
		if err := change(l, s.now()); err != nil {
			return err
		}
		if err := l.CheckInvariants(); err != nil {
			return err
		}
		if err := s.ledgers.Save(ctx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		s.logFailure(ctx, op, ledgerID, err)
		return nil, err
	}

	logger.FromContext(ctx).Info("Ledger updated", "operation", op, "ledger_id", out.ID,
		"total", out.TotalCopies, "available", out.AvailableCopies, "borrowed", out.BorrowedCopies)
	s.publish(ctx, eventType, traceID, out)
	return out, nil
}

func (s *inventoryService) logFailure(ctx context.Context, op domain.Operation, ledgerID int64, err error) {
	log := logger.FromContext(ctx)
	if errors.Is(err, domain.ErrInventoryInvariantViolation) {
		log.Error("Inventory invariant violated", "operation", op, "ledger_id", ledgerID, "error", err)
		return
	}
	log.Info("Ledger operation rejected", "operation", op, "ledger_id", ledgerID, "code", domain.CodeOf(err), "error", err)
}

func (s *inventoryService) publish(ctx context.Context, eventType, traceID string, l *domain.Ledger) {
	msg := events.Message{Type: eventType, TraceID: traceID, OccurredAt: s.now(), Data: l}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		logger.FromContext(ctx).Warn("Failed to publish event", "type", eventType, "ledger_id", l.ID, "error", err)
	}
}
