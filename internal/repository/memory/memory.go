// Package memory is a transactional in-memory store used by tests and by the
// server when store.type is "memory". Units of work are serialized by one
// mutex; each works on a private copy of the committed state that replaces
// it on success.
package memory

import (
	"context"
	"sort"
	"sync"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/repository"
)

type state struct {
	ledgers      map[int64]*domain.Ledger
	loans        map[int64]*domain.Loan
	balances     map[int64]int64
	transactions []domain.BalanceTransaction
	audit        []domain.AuditEvent

	nextLedgerID int64
	nextCopyID   int64
	nextLoanID   int64
	nextTxID     int64
	nextAuditID  int64
}

func newState() *state {
	return &state{
		ledgers:  map[int64]*domain.Ledger{},
		loans:    map[int64]*domain.Loan{},
		balances: map[int64]int64{},
	}
}

func (s *state) clone() *state {
	cp := &state{
		ledgers:      make(map[int64]*domain.Ledger, len(s.ledgers)),
		loans:        make(map[int64]*domain.Loan, len(s.loans)),
		balances:     make(map[int64]int64, len(s.balances)),
		transactions: append([]domain.BalanceTransaction(nil), s.transactions...),
		audit:        append([]domain.AuditEvent(nil), s.audit...),
		nextLedgerID: s.nextLedgerID,
		nextCopyID:   s.nextCopyID,
		nextLoanID:   s.nextLoanID,
		nextTxID:     s.nextTxID,
		nextAuditID:  s.nextAuditID,
	}
	for id, l := range s.ledgers {
		cp.ledgers[id] = l.Clone()
	}
	for id, l := range s.loans {
		cp.loans[id] = cloneLoan(l)
	}
	for id, b := range s.balances {
		cp.balances[id] = b
	}
	return cp
}

type Store struct {
	mu        sync.Mutex
	committed *state

	idempotency *idempotencyRepository

	repository.LedgerRepository
	repository.LoanRepository
	repository.AccountRepository
	repository.IdempotencyRepository
	repository.AuditRepository
}

func NewStore() *Store {
	s := &Store{
		committed:   newState(),
		idempotency: &idempotencyRepository{keys: map[string]domain.IdempotencyRecord{}},
	}
	s.LedgerRepository = &ledgerRepository{store: s}
	s.LoanRepository = &loanRepository{store: s}
	s.AccountRepository = &accountRepository{store: s}
	s.IdempotencyRepository = s.idempotency
	s.AuditRepository = &auditRepository{store: s}
	return s
}

// Ping always succeeds; it lets the memory store stand in for a database
// in health checks.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

type txKey struct{}

// WithinTx runs fn against a private copy of the store. The copy becomes the
// committed state only when fn returns nil. Nested calls join the outer unit
// of work.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*state); ok {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.committed.clone()
	if err := fn(context.WithValue(ctx, txKey{}, work)); err != nil {
		return err
	}
	s.committed = work
	return nil
}

// run executes op on the working state of the current unit of work, or in an
// implicit one when called outside WithinTx.
func (s *Store) run(ctx context.Context, op func(st *state) error) error {
	if st, ok := ctx.Value(txKey{}).(*state); ok {
		return op(st)
	}
	return s.WithinTx(ctx, func(ctx context.Context) error {
		return op(ctx.Value(txKey{}).(*state))
	})
}

// AuditEvents returns the recorded audit trail in insertion order.
func (s *Store) AuditEvents() []domain.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditEvent(nil), s.committed.audit...)
}

func cloneLoan(l *domain.Loan) *domain.Loan {
	cp := *l
	if l.ReturnedAt != nil {
		t := *l.ReturnedAt
		cp.ReturnedAt = &t
	}
	if l.ReturnImageRef != nil {
		ref := *l.ReturnImageRef
		cp.ReturnImageRef = &ref
	}
	return &cp
}

// page returns one 1-based page of items.
func page[T any](items []T, pageNum, pageSize int32) []T {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	if pageNum <= 0 {
		pageNum = 1
	}
	start := int((pageNum - 1) * pageSize)
	if start >= len(items) {
		return nil
	}
	end := start + int(pageSize)
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func sortedIDs[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
