package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/events"
	"bookshare-backend/internal/repository/memory"
	"bookshare-backend/internal/service"
)

const (
	ownerID    int64 = 10
	borrowerID int64 = 20
	strangerID int64 = 30
)

var (
	owner    = domain.UserActor(ownerID)
	borrower = domain.UserActor(borrowerID)
	stranger = domain.UserActor(strangerID)
	system   = domain.SystemActor()
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, msg events.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *mockPublisher) Close() error {
	return m.Called().Error(0)
}

// published returns the event types seen so far.
func (m *mockPublisher) published() []string {
	var types []string
	for _, call := range m.Calls {
		if call.Method == "Publish" {
			types = append(types, call.Arguments.Get(1).(events.Message).Type)
		}
	}
	return types
}

type fixture struct {
	ctx       context.Context
	store     *memory.Store
	clock     *fakeClock
	publisher *mockPublisher
	guard     service.IdempotencyGuard
	inventory service.InventoryService
	lending   service.LendingService
	balances  service.BalanceService
	titles    int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:       context.Background(),
		store:     memory.NewStore(),
		clock:     newFakeClock(),
		publisher: new(mockPublisher),
	}
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	opts := []service.Option{service.WithClock(f.clock.Now), service.WithRetry(3, 0)}
	f.guard = service.NewIdempotencyGuard(f.store.IdempotencyRepository, f.store.AuditRepository, 5*time.Minute,
		map[string]time.Duration{string(domain.OpRequestBorrow): time.Minute}, 100, opts...)
	f.balances = service.NewBalanceService(f.store, f.store.AccountRepository, f.guard, opts...)
	f.inventory = service.NewInventoryService(f.store, f.store.LedgerRepository, f.guard, f.publisher, opts...)
	f.lending = service.NewLendingService(f.store, f.store.LedgerRepository, f.store.LoanRepository, service.NewDepositLedger(f.balances),
		f.guard, f.publisher, service.LendingPolicy{DefaultLoanDays: 14, MaxLoanDays: 60}, opts...)
	return f
}

func trace() string {
	return uuid.NewString()
}

func (f *fixture) createLedger(t *testing.T, copies int, deposit int64) *domain.Ledger {
	t.Helper()
	f.titles++
	l, err := f.inventory.CreateLedger(f.ctx, owner, trace(), service.CreateLedgerInput{
		TitleID:       f.titles,
		LocationID:    1,
		Copies:        copies,
		DepositAmount: deposit,
	})
	require.NoError(t, err)
	return l
}

func (f *fixture) borrow(t *testing.T, ledgerID int64, actor domain.Actor) *domain.LoanOutcome {
	t.Helper()
	out, err := f.lending.RequestBorrow(f.ctx, actor, trace(), ledgerID, 0)
	require.NoError(t, err)
	return out
}

func (f *fixture) borrowConfirmed(t *testing.T, ledgerID int64, actor domain.Actor) *domain.LoanOutcome {
	t.Helper()
	out := f.borrow(t, ledgerID, actor)
	out, err := f.lending.ConfirmLoan(f.ctx, actor, trace(), out.Loan.ID)
	require.NoError(t, err)
	return out
}

func (f *fixture) ledger(t *testing.T, id int64) *domain.Ledger {
	t.Helper()
	l, err := f.inventory.GetLedger(f.ctx, id)
	require.NoError(t, err)
	return l
}
