package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/repository/memory"
	"bookshare-backend/internal/service"
)

type mockIdempotencyRepo struct {
	mock.Mock
}

func (m *mockIdempotencyRepo) Claim(ctx context.Context, key string, now, expiresAt time.Time) (bool, error) {
	args := m.Called(ctx, key, now, expiresAt)
	return args.Bool(0), args.Error(1)
}

func (m *mockIdempotencyRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type mockAuditRepo struct {
	mock.Mock
}

func (m *mockAuditRepo) Append(ctx context.Context, e *domain.AuditEvent) error {
	return m.Called(ctx, e).Error(0)
}

func TestKey(t *testing.T) {
	a, err := service.Key(domain.OpRequestBorrow, "trace-1")
	require.NoError(t, err)
	b, err := service.Key(domain.OpRequestBorrow, "trace-1")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())

	other, _ := service.Key(domain.OpConfirmLoan, "trace-1")
	assert.NotEqual(t, a, other)
	other, _ = service.Key(domain.OpRequestBorrow, "trace-2")
	assert.NotEqual(t, a, other)

	_, err = service.Key("", "trace-1")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = service.Key(domain.OpRequestBorrow, "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCheckIdempotency_FirstUseThenDuplicate(t *testing.T) {
	f := newFixture(t)
	calls := 0
	onFirstUse := func() *domain.AuditEvent {
		calls++
		return &domain.AuditEvent{Type: "request.accepted", Operation: domain.OpAddCopies, TraceID: "t-1"}
	}

	require.NoError(t, f.guard.CheckIdempotency(f.ctx, "key-1", time.Minute, onFirstUse))
	err := f.guard.CheckIdempotency(f.ctx, "key-1", time.Minute, onFirstUse)
	assert.ErrorIs(t, err, domain.ErrDuplicateRequest)
	assert.Equal(t, domain.KindDuplicate, domain.KindOf(err))
	assert.Equal(t, 1, calls)

	audit := f.store.AuditEvents()
	require.Len(t, audit, 1)
	assert.Equal(t, f.clock.Now(), audit[0].OccurredAt)
}

func TestCheckIdempotency_ExpiredKeyCanBeReused(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.guard.CheckIdempotency(f.ctx, "key-1", time.Minute, nil))
	f.clock.Advance(59 * time.Second)
	assert.ErrorIs(t, f.guard.CheckIdempotency(f.ctx, "key-1", time.Minute, nil), domain.ErrDuplicateRequest)

	f.clock.Advance(time.Second)
	assert.NoError(t, f.guard.CheckIdempotency(f.ctx, "key-1", time.Minute, nil))
}

func TestCheckIdempotency_SharedStoreAcrossGuards(t *testing.T) {
	store := memory.NewStore()
	clock := newFakeClock()
	first := service.NewIdempotencyGuard(store.IdempotencyRepository, store.AuditRepository, time.Minute, nil, 10, service.WithClock(clock.Now))
	second := service.NewIdempotencyGuard(store.IdempotencyRepository, store.AuditRepository, time.Minute, nil, 10, service.WithClock(clock.Now))

	require.NoError(t, first.Guard(context.Background(), domain.OpConfirmLoan, "trace-1", nil))
	assert.ErrorIs(t, second.Guard(context.Background(), domain.OpConfirmLoan, "trace-1", nil), domain.ErrDuplicateRequest)
}

func TestCheckIdempotency_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.guard.CheckIdempotency(f.ctx, "", time.Minute, nil), domain.ErrInvalidArgument)
	assert.ErrorIs(t, f.guard.CheckIdempotency(f.ctx, "key", 0, nil), domain.ErrInvalidArgument)
}

func TestCheckIdempotency_AuditFailureDoesNotBlock(t *testing.T) {
	keys := new(mockIdempotencyRepo)
	audit := new(mockAuditRepo)
	keys.On("Claim", mock.Anything, "key-1", mock.Anything, mock.Anything).Return(true, nil)
	audit.On("Append", mock.Anything, mock.AnythingOfType("*domain.AuditEvent")).Return(errors.New("disk full"))

	guard := service.NewIdempotencyGuard(keys, audit, time.Minute, nil, 10)
	err := guard.CheckIdempotency(context.Background(), "key-1", time.Minute, func() *domain.AuditEvent {
		return &domain.AuditEvent{Type: "request.accepted"}
	})
	assert.NoError(t, err)
	keys.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestCheckIdempotency_StoreErrorIsWrapped(t *testing.T) {
	keys := new(mockIdempotencyRepo)
	keys.On("Claim", mock.Anything, "key-1", mock.Anything, mock.Anything).Return(false, errors.New("connection reset"))

	guard := service.NewIdempotencyGuard(keys, new(mockAuditRepo), time.Minute, nil, 10)
	err := guard.CheckIdempotency(context.Background(), "key-1", time.Minute, nil)
	assert.ErrorContains(t, err, "connection reset")
	assert.NotErrorIs(t, err, domain.ErrDuplicateRequest)
}

func TestCheckIdempotency_CachedKeySkipsStore(t *testing.T) {
	keys := new(mockIdempotencyRepo)
	keys.On("Claim", mock.Anything, "key-1", mock.Anything, mock.Anything).Return(true, nil).Once()

	guard := service.NewIdempotencyGuard(keys, new(mockAuditRepo), time.Minute, nil, 10)
	require.NoError(t, guard.CheckIdempotency(context.Background(), "key-1", time.Minute, nil))
	assert.ErrorIs(t, guard.CheckIdempotency(context.Background(), "key-1", time.Minute, nil), domain.ErrDuplicateRequest)
	keys.AssertNumberOfCalls(t, "Claim", 1)
}

func TestGuard_UsesPerOperationTTL(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.guard.Guard(f.ctx, domain.OpRequestBorrow, "trace-1", nil))
	require.NoError(t, f.guard.Guard(f.ctx, domain.OpAddCopies, "trace-1", nil))

	f.clock.Advance(2 * time.Minute)
	assert.NoError(t, f.guard.Guard(f.ctx, domain.OpRequestBorrow, "trace-1", nil))
	assert.ErrorIs(t, f.guard.Guard(f.ctx, domain.OpAddCopies, "trace-1", nil), domain.ErrDuplicateRequest)
}
