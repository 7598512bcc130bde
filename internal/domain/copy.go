package domain

import "time"

type CopyStatus string

const (
	CopyStatusAvailable CopyStatus = "AVAILABLE"
	CopyStatusBorrowed  CopyStatus = "BORROWED"
	CopyStatusExtended  CopyStatus = "EXTENDED"
	CopyStatusOverdue   CopyStatus = "OVERDUE"
)

// Copy is one physical unit of a title. Its transitions only touch the copy;
// the owning Ledger keeps the aggregate counters in step.
type Copy struct {
	ID         int64      `json:"id"`
	LedgerID   int64      `json:"ledger_id"`
	Status     CopyStatus `json:"status"`
	BorrowedAt *time.Time `json:"borrowed_at,omitempty"`
	DueAt      *time.Time `json:"due_at,omitempty"`
	CreatedOn  time.Time  `json:"created_on"`
}

func (c *Copy) IsAvailable() bool {
	return c.Status == CopyStatusAvailable
}

// IsOut reports whether the copy is held by a borrower.
func (c *Copy) IsOut() bool {
	switch c.Status {
	case CopyStatusBorrowed, CopyStatusExtended, CopyStatusOverdue:
		return true
	}
	return false
}

// Borrow moves an AVAILABLE copy to BORROWED.
func (c *Copy) Borrow(borrowedAt, dueAt time.Time) error {
	if !c.IsAvailable() {
		return ErrNotAvailableCopy.Withf("copy %d is %s", c.ID, c.Status)
	}
	c.Status = CopyStatusBorrowed
	c.BorrowedAt = &borrowedAt
	c.DueAt = &dueAt
	return nil
}

// Extend pushes the due date out. newDueAt must be strictly after the
// current due date.
func (c *Copy) Extend(newDueAt time.Time) error {
	if c.Status != CopyStatusBorrowed && c.Status != CopyStatusExtended {
		return ErrIllegalCopyState.Withf("cannot extend copy %d in state %s", c.ID, c.Status)
	}
	if c.DueAt == nil || !newDueAt.After(*c.DueAt) {
		return ErrIllegalExtendDate
	}
	c.Status = CopyStatusExtended
	c.DueAt = &newDueAt
	return nil
}

// Return puts a copy that is out back on the shelf.
func (c *Copy) Return() error {
	if !c.IsOut() {
		return ErrIllegalCopyState.Withf("cannot return copy %d in state %s", c.ID, c.Status)
	}
	c.Status = CopyStatusAvailable
	c.BorrowedAt = nil
	c.DueAt = nil
	return nil
}

func (c *Copy) MarkOverdue() error {
	if c.Status != CopyStatusBorrowed && c.Status != CopyStatusExtended {
		return ErrIllegalCopyState.Withf("cannot mark copy %d overdue in state %s", c.ID, c.Status)
	}
	c.Status = CopyStatusOverdue
	return nil
}

// Clone returns a deep copy.
func (c *Copy) Clone() *Copy {
	cp := *c
	if c.BorrowedAt != nil {
		t := *c.BorrowedAt
		cp.BorrowedAt = &t
	}
	if c.DueAt != nil {
		t := *c.DueAt
		cp.DueAt = &t
	}
	return &cp
}
