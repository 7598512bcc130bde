package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loanIn(status LoanStatus) *Loan {
	return &Loan{ID: 1, LedgerID: 7, CopyID: 100, BorrowerID: 20, Status: status, DueAt: now.Add(24 * time.Hour)}
}

func TestNewLoan(t *testing.T) {
	l := persisted(1)
	c, err := l.ReserveOneCopy(now, now.Add(24*time.Hour))
	require.NoError(t, err)

	loan := NewLoan(l.ID, c, 20, 500, now)

	assert.Equal(t, LoanStatusRequested, loan.Status)
	assert.Equal(t, c.ID, loan.CopyID)
	assert.Equal(t, now.Add(24*time.Hour), loan.DueAt)
	assert.Equal(t, int64(500), loan.DepositAmount)
}

func TestLoan_Transitions(t *testing.T) {
	later := now.Add(time.Hour)
	tests := []struct {
		name    string
		from    LoanStatus
		apply   func(l *Loan) error
		want    LoanStatus
		wantErr error
	}{
		{"confirm requested", LoanStatusRequested, func(l *Loan) error { return l.Confirm(later) }, LoanStatusBorrowed, nil},
		{"confirm borrowed", LoanStatusBorrowed, func(l *Loan) error { return l.Confirm(later) }, LoanStatusBorrowed, ErrIllegalCopyState},
		{"extend borrowed", LoanStatusBorrowed, func(l *Loan) error { return l.Extend(now.Add(48*time.Hour), later) }, LoanStatusExtended, nil},
		{"extend to an earlier date", LoanStatusBorrowed, func(l *Loan) error { return l.Extend(now, later) }, LoanStatusBorrowed, ErrIllegalExtendDate},
		{"extend twice", LoanStatusExtended, func(l *Loan) error { return l.Extend(now.Add(48*time.Hour), later) }, LoanStatusExtended, ErrIllegalCopyState},
		{"extend requested", LoanStatusRequested, func(l *Loan) error { return l.Extend(now.Add(48*time.Hour), later) }, LoanStatusRequested, ErrIllegalCopyState},
		{"suspend borrowed", LoanStatusBorrowed, func(l *Loan) error { return l.Suspend(later) }, LoanStatusSuspended, nil},
		{"suspend overdue", LoanStatusOverdue, func(l *Loan) error { return l.Suspend(later) }, LoanStatusSuspended, nil},
		{"suspend requested", LoanStatusRequested, func(l *Loan) error { return l.Suspend(later) }, LoanStatusRequested, ErrIllegalCopyState},
		{"cancel requested", LoanStatusRequested, func(l *Loan) error { return l.Cancel(later) }, LoanStatusSuspended, nil},
		{"cancel borrowed", LoanStatusBorrowed, func(l *Loan) error { return l.Cancel(later) }, LoanStatusBorrowed, ErrIllegalCopyState},
		{"return extended", LoanStatusExtended, func(l *Loan) error { return l.ConfirmReturn("img", later) }, LoanStatusReturned, nil},
		{"return returned", LoanStatusReturned, func(l *Loan) error { return l.ConfirmReturn("img", later) }, LoanStatusReturned, ErrIllegalCopyState},
		{"overdue borrowed", LoanStatusBorrowed, func(l *Loan) error { return l.MarkOverdue(later) }, LoanStatusOverdue, nil},
		{"overdue extended", LoanStatusExtended, func(l *Loan) error { return l.MarkOverdue(later) }, LoanStatusOverdue, nil},
		{"overdue twice", LoanStatusOverdue, func(l *Loan) error { return l.MarkOverdue(later) }, LoanStatusOverdue, ErrIllegalCopyState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := loanIn(tt.from)

			err := tt.apply(l)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, later, l.UpdatedOn)
			}
			assert.Equal(t, tt.want, l.Status)
		})
	}
}

func TestLoan_ConfirmReturnRecordsProof(t *testing.T) {
	l := loanIn(LoanStatusBorrowed)
	require.NoError(t, l.ConfirmReturn("img/1.jpg", now))
	require.NotNil(t, l.ReturnImageRef)
	assert.Equal(t, "img/1.jpg", *l.ReturnImageRef)
	assert.Equal(t, now, *l.ReturnedAt)
	assert.True(t, l.IsTerminal())

	l = loanIn(LoanStatusBorrowed)
	require.NoError(t, l.ConfirmReturn("", now))
	assert.Nil(t, l.ReturnImageRef)
}
