package domain

import (
	"fmt"
	"time"
)

// Ledger is the inventory aggregate for one title at one location. It owns
// its copies by value and keeps the counters below consistent with them:
//
//	TotalCopies == AvailableCopies + BorrowedCopies == len(Copies)
//
// Counters must only change through the methods on Ledger. Repositories read
// the pending copy changes to persist a delta.
type Ledger struct {
	ID               int64      `json:"id"`
	TitleID          int64      `json:"title_id"`
	LocationID       int64      `json:"location_id"`
	OwnerID          int64      `json:"owner_id"`
	TotalCopies      int        `json:"total_copies"`
	AvailableCopies  int        `json:"available_copies"`
	BorrowedCopies   int        `json:"borrowed_copies"`
	DepositAmount    int64      `json:"deposit_amount"`
	TotalBorrowCount int        `json:"total_borrow_count"`
	Version          int64      `json:"version"`
	Copies           []*Copy    `json:"copies,omitempty"`
	CreatedOn        time.Time  `json:"created_on"`
	UpdatedOn        time.Time  `json:"updated_on"`
	DeletedOn        *time.Time `json:"deleted_on,omitempty"`

	added   []*Copy
	updated []*Copy
	removed []int64
}

// LedgerCounters is a snapshot of the aggregate counts.
type LedgerCounters struct {
	TotalCopies      int `json:"total_copies"`
	AvailableCopies  int `json:"available_copies"`
	BorrowedCopies   int `json:"borrowed_copies"`
	TotalBorrowCount int `json:"total_borrow_count"`
}

// CopyChanges lists the copy rows a repository has to write for a ledger.
type CopyChanges struct {
	Added   []*Copy
	Updated []*Copy
	Removed []int64
}

// NewLedger builds a ledger with n available copies.
func NewLedger(titleID, locationID, ownerID int64, copies int, deposit int64, now time.Time) *Ledger {
	l := &Ledger{
		TitleID:       titleID,
		LocationID:    locationID,
		OwnerID:       ownerID,
		DepositAmount: deposit,
		CreatedOn:     now,
		UpdatedOn:     now,
	}
	l.Grow(copies, now)
	return l
}

func (l *Ledger) Counters() LedgerCounters {
	return LedgerCounters{
		TotalCopies:      l.TotalCopies,
		AvailableCopies:  l.AvailableCopies,
		BorrowedCopies:   l.BorrowedCopies,
		TotalBorrowCount: l.TotalBorrowCount,
	}
}

// Grow appends n available copies.
func (l *Ledger) Grow(n int, now time.Time) []*Copy {
	if n <= 0 {
		return nil
	}
	created := make([]*Copy, 0, n)
	for i := 0; i < n; i++ {
		c := &Copy{LedgerID: l.ID, Status: CopyStatusAvailable, CreatedOn: now}
		l.Copies = append(l.Copies, c)
		l.added = append(l.added, c)
		created = append(created, c)
	}
	l.TotalCopies += n
	l.AvailableCopies += n
	l.UpdatedOn = now
	return created
}

// Shrink removes n available copies in insertion order. It is all or
// nothing: when fewer than n copies are available nothing is removed.
func (l *Ledger) Shrink(n int, now time.Time) ([]*Copy, error) {
	if n <= 0 {
		return nil, nil
	}
	selected := make(map[*Copy]struct{}, n)
	for _, c := range l.Copies {
		if len(selected) == n {
			break
		}
		if c.IsAvailable() {
			selected[c] = struct{}{}
		}
	}
	if len(selected) < n {
		return nil, ErrInsufficientAvailableCopies.Withf("requested %d, available %d", n, len(selected))
	}

	kept := l.Copies[:0:0]
	removed := make([]*Copy, 0, n)
	for _, c := range l.Copies {
		if _, ok := selected[c]; !ok {
			kept = append(kept, c)
			continue
		}
		removed = append(removed, c)
		l.forget(c)
	}
	l.Copies = kept
	l.TotalCopies -= len(removed)
	l.AvailableCopies -= len(removed)
	l.UpdatedOn = now
	return removed, nil
}

// Resize grows or shrinks the ledger to target copies and re-validates the
// counters afterwards.
func (l *Ledger) Resize(target int, now time.Time) error {
	if target < 0 {
		return ErrInvalidArgument.Withf("target copies must not be negative, got %d", target)
	}
	switch {
	case target > l.TotalCopies:
		l.Grow(target-l.TotalCopies, now)
	case target < l.TotalCopies:
		if _, err := l.Shrink(l.TotalCopies-target, now); err != nil {
			return err
		}
	}
	return l.CheckInvariants()
}

// ReserveOneCopy lends the first available copy.
func (l *Ledger) ReserveOneCopy(now, dueAt time.Time) (*Copy, error) {
	for _, c := range l.Copies {
		if !c.IsAvailable() {
			continue
		}
		if err := c.Borrow(now, dueAt); err != nil {
			return nil, err
		}
		l.AvailableCopies--
		l.BorrowedCopies++
		l.TotalBorrowCount++
		l.UpdatedOn = now
		l.touch(c)
		return c, nil
	}
	return nil, ErrNoAvailableCopy.Withf("ledger %d has no available copy", l.ID)
}

// ReleaseOneCopy puts a lent copy back on the shelf.
func (l *Ledger) ReleaseOneCopy(copyID int64, now time.Time) error {
	c, err := l.Copy(copyID)
	if err != nil {
		return err
	}
	if err := c.Return(); err != nil {
		return err
	}
	l.AvailableCopies++
	l.BorrowedCopies--
	l.UpdatedOn = now
	l.touch(c)
	return nil
}

func (l *Ledger) ExtendCopy(copyID int64, newDueAt, now time.Time) error {
	c, err := l.Copy(copyID)
	if err != nil {
		return err
	}
	if err := c.Extend(newDueAt); err != nil {
		return err
	}
	l.UpdatedOn = now
	l.touch(c)
	return nil
}

func (l *Ledger) MarkCopyOverdue(copyID int64, now time.Time) error {
	c, err := l.Copy(copyID)
	if err != nil {
		return err
	}
	if err := c.MarkOverdue(); err != nil {
		return err
	}
	l.UpdatedOn = now
	l.touch(c)
	return nil
}

func (l *Ledger) SetDeposit(amount int64) error {
	if amount < 0 {
		return ErrInvalidArgument.Withf("deposit must not be negative, got %d", amount)
	}
	l.DepositAmount = amount
	return nil
}

func (l *Ledger) RemoveDeposit() {
	l.DepositAmount = 0
}

// Copy returns the copy with the given id.
func (l *Ledger) Copy(copyID int64) (*Copy, error) {
	for _, c := range l.Copies {
		if c.ID == copyID {
			return c, nil
		}
	}
	return nil, ErrCopyNotFound.Withf("copy %d does not belong to ledger %d", copyID, l.ID)
}

// CheckInvariants verifies the counters against each other and against the
// copies actually held.
func (l *Ledger) CheckInvariants() error {
	if l.TotalCopies != l.AvailableCopies+l.BorrowedCopies {
		return ErrInventoryInvariantViolation.Withf("ledger %d: total %d != available %d + borrowed %d",
			l.ID, l.TotalCopies, l.AvailableCopies, l.BorrowedCopies)
	}
	if l.TotalCopies != len(l.Copies) {
		return ErrInventoryInvariantViolation.Withf("ledger %d: total %d != %d copies", l.ID, l.TotalCopies, len(l.Copies))
	}
	available := 0
	for _, c := range l.Copies {
		if c.IsAvailable() {
			available++
		}
	}
	if available != l.AvailableCopies {
		return ErrInventoryInvariantViolation.Withf("ledger %d: %d copies available, counter says %d", l.ID, available, l.AvailableCopies)
	}
	return nil
}

// CanDelete reports whether every copy is back on the shelf.
func (l *Ledger) CanDelete() error {
	for _, c := range l.Copies {
		if !c.IsAvailable() {
			return ErrLedgerInUse.Withf("copy %d is %s", c.ID, c.Status)
		}
	}
	return nil
}

func (l *Ledger) IsDeleted() bool {
	return l.DeletedOn != nil
}

// PendingChanges returns the copies created, modified or removed since the
// ledger was loaded or last marked persisted.
func (l *Ledger) PendingChanges() CopyChanges {
	return CopyChanges{
		Added:   append([]*Copy(nil), l.added...),
		Updated: append([]*Copy(nil), l.updated...),
		Removed: append([]int64(nil), l.removed...),
	}
}

func (l *Ledger) MarkPersisted() {
	l.added = nil
	l.updated = nil
	l.removed = nil
}

// Clone returns a deep copy without pending changes.
func (l *Ledger) Clone() *Ledger {
	cp := *l
	cp.Copies = make([]*Copy, len(l.Copies))
	for i, c := range l.Copies {
		cp.Copies[i] = c.Clone()
	}
	if l.DeletedOn != nil {
		t := *l.DeletedOn
		cp.DeletedOn = &t
	}
	cp.added, cp.updated, cp.removed = nil, nil, nil
	return &cp
}

func (l *Ledger) String() string {
	return fmt.Sprintf("ledger(%d title=%d location=%d total=%d available=%d borrowed=%d)",
		l.ID, l.TitleID, l.LocationID, l.TotalCopies, l.AvailableCopies, l.BorrowedCopies)
}

func (l *Ledger) touch(c *Copy) {
	for _, a := range l.added {
		if a == c {
			return
		}
	}
	for _, u := range l.updated {
		if u == c {
			return
		}
	}
	l.updated = append(l.updated, c)
}

func (l *Ledger) forget(c *Copy) {
	for i, a := range l.added {
		if a == c {
			l.added = append(l.added[:i], l.added[i+1:]...)
			return
		}
	}
	for i, u := range l.updated {
		if u == c {
			l.updated = append(l.updated[:i], l.updated[i+1:]...)
			break
		}
	}
	l.removed = append(l.removed, c.ID)
}
