package domain

import "time"

type LoanStatus string

const (
	LoanStatusRequested LoanStatus = "REQUESTED"
	LoanStatusBorrowed  LoanStatus = "BORROWED"
	LoanStatusExtended  LoanStatus = "EXTENDED"
	LoanStatusOverdue   LoanStatus = "OVERDUE"
	LoanStatusSuspended LoanStatus = "SUSPENDED"
	LoanStatusReturned  LoanStatus = "RETURNED"
)

// Loan is a borrower's claim on one copy. It references its copy and ledger
// by id only.
type Loan struct {
	ID             int64      `json:"id"`
	LedgerID       int64      `json:"ledger_id"`
	CopyID         int64      `json:"copy_id"`
	BorrowerID     int64      `json:"borrower_id"`
	Status         LoanStatus `json:"status"`
	DepositAmount  int64      `json:"deposit_amount"`
	BorrowedAt     time.Time  `json:"borrowed_at"`
	DueAt          time.Time  `json:"due_at"`
	ReturnedAt     *time.Time `json:"returned_at,omitempty"`
	ReturnImageRef *string    `json:"return_image_ref,omitempty"`
	CreatedOn      time.Time  `json:"created_on"`
	UpdatedOn      time.Time  `json:"updated_on"`
}

// LoanOutcome is what every lifecycle operation hands back: the loan as
// committed and the ledger counters after the change.
type LoanOutcome struct {
	Loan     *Loan          `json:"loan"`
	Counters LedgerCounters `json:"counters"`
}

// NewLoan starts a loan in REQUESTED for a copy that has just been reserved.
func NewLoan(ledgerID int64, c *Copy, borrowerID, deposit int64, now time.Time) *Loan {
	l := &Loan{
		LedgerID:      ledgerID,
		CopyID:        c.ID,
		BorrowerID:    borrowerID,
		Status:        LoanStatusRequested,
		DepositAmount: deposit,
		BorrowedAt:    now,
		CreatedOn:     now,
		UpdatedOn:     now,
	}
	if c.DueAt != nil {
		l.DueAt = *c.DueAt
	}
	return l
}

// IsTerminal reports whether the loan accepts no further transitions.
func (l *Loan) IsTerminal() bool {
	return l.Status == LoanStatusReturned || l.Status == LoanStatusSuspended
}

// IsOut reports whether the borrower currently holds the copy.
func (l *Loan) IsOut() bool {
	switch l.Status {
	case LoanStatusBorrowed, LoanStatusExtended, LoanStatusOverdue:
		return true
	}
	return false
}

func (l *Loan) Confirm(now time.Time) error {
	if l.Status != LoanStatusRequested {
		return l.illegal("confirm")
	}
	l.Status = LoanStatusBorrowed
	l.UpdatedOn = now
	return nil
}

func (l *Loan) Extend(newDueAt, now time.Time) error {
	if l.Status != LoanStatusBorrowed {
		return l.illegal("extend")
	}
	if !newDueAt.After(l.DueAt) {
		return ErrIllegalExtendDate.Withf("loan %d is due %s, requested %s",
			l.ID, l.DueAt.Format(time.RFC3339), newDueAt.Format(time.RFC3339))
	}
	l.Status = LoanStatusExtended
	l.DueAt = newDueAt
	l.UpdatedOn = now
	return nil
}

// Suspend ends a loan early. No return proof is needed.
func (l *Loan) Suspend(now time.Time) error {
	if !l.IsOut() {
		return l.illegal("suspend")
	}
	l.Status = LoanStatusSuspended
	l.UpdatedOn = now
	return nil
}

// Cancel withdraws a request that was never handed over.
func (l *Loan) Cancel(now time.Time) error {
	if l.Status != LoanStatusRequested {
		return l.illegal("cancel")
	}
	l.Status = LoanStatusSuspended
	l.UpdatedOn = now
	return nil
}

func (l *Loan) ConfirmReturn(proofRef string, now time.Time) error {
	if !l.IsOut() {
		return l.illegal("return")
	}
	l.Status = LoanStatusReturned
	l.ReturnedAt = &now
	if proofRef != "" {
		l.ReturnImageRef = &proofRef
	}
	l.UpdatedOn = now
	return nil
}

func (l *Loan) MarkOverdue(now time.Time) error {
	if l.Status != LoanStatusBorrowed && l.Status != LoanStatusExtended {
		return l.illegal("mark overdue")
	}
	l.Status = LoanStatusOverdue
	l.UpdatedOn = now
	return nil
}

func (l *Loan) illegal(action string) error {
	return ErrIllegalCopyState.Withf("cannot %s loan %d in state %s", action, l.ID, l.Status)
}
