package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshare-backend/internal/domain"
)

func TestBalanceService_TopUp(t *testing.T) {
	f := newFixture(t)
	traceID := trace()

	balance, err := f.balances.TopUp(f.ctx, system, traceID, borrowerID, 1500)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), balance)

	t.Run("Replay is rejected", func(t *testing.T) {
		_, err := f.balances.TopUp(f.ctx, system, traceID, borrowerID, 1500)
		assert.ErrorIs(t, err, domain.ErrDuplicateRequest)
		balance, err := f.balances.GetBalance(f.ctx, borrowerID)
		require.NoError(t, err)
		assert.Equal(t, int64(1500), balance)
	})

	t.Run("Users cannot top up", func(t *testing.T) {
		_, err := f.balances.TopUp(f.ctx, borrower, trace(), borrowerID, 100)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("Validation", func(t *testing.T) {
		_, err := f.balances.TopUp(f.ctx, system, trace(), borrowerID, 0)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		_, err = f.balances.TopUp(f.ctx, system, trace(), 0, 10)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestBalanceService_Debit(t *testing.T) {
	f := newFixture(t)
	_, err := f.balances.Credit(f.ctx, borrowerID, 500, "seed")
	require.NoError(t, err)

	balance, err := f.balances.Debit(f.ctx, borrowerID, 200, nil, "deposit")
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance)

	_, err = f.balances.Debit(f.ctx, borrowerID, 301, nil, "deposit")
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = f.balances.Debit(f.ctx, borrowerID, 0, nil, "deposit")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	txs, total, err := f.balances.ListTransactions(f.ctx, borrowerID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(2), total)
	assert.Equal(t, int64(-200), txs[0].Amount)
	assert.Equal(t, int64(500), txs[1].Amount)
}

func TestBalanceService_UnknownUserHasZeroBalance(t *testing.T) {
	f := newFixture(t)
	balance, err := f.balances.GetBalance(f.ctx, 12345)
	require.NoError(t, err)
	assert.Zero(t, balance)
}
