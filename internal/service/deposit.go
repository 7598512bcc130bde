package service

import (
	"context"
	"fmt"
)

type depositLedger struct {
	balances BalanceService
}

// NewDepositLedger adapts the balance service to the borrow flow.
func NewDepositLedger(balances BalanceService) DepositLedger {
	return &depositLedger{balances: balances}
}

// Hold debits the deposit for loanID. Deposits are never credited back.
func (d *depositLedger) Hold(ctx context.Context, borrowerID, amount, loanID int64) error {
	if amount <= 0 {
		return nil
	}
	_, err := d.balances.Debit(ctx, borrowerID, amount, &loanID, fmt.Sprintf("deposit for loan %d", loanID))
	return err
}
