package domain

import (
	"errors"
	"fmt"
)

// ErrorKind groups domain errors by how a caller should react to them.
type ErrorKind string

const (
	KindDuplicate          ErrorKind = "DUPLICATE"
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindInvariantViolation ErrorKind = "INVARIANT_VIOLATION"
	KindStateConflict      ErrorKind = "STATE_CONFLICT"
	KindAuthorization      ErrorKind = "AUTHORIZATION"
	KindExternal           ErrorKind = "EXTERNAL"
	KindValidation         ErrorKind = "VALIDATION"
	KindConflict           ErrorKind = "CONFLICT"
	KindInternal           ErrorKind = "INTERNAL"
)

// Error is a typed domain error. Two errors match under errors.Is when their
// codes are equal, so a copy carrying a more specific message still matches
// the sentinel it was derived from.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Withf returns a copy of e with a formatted message.
func (e *Error) Withf(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrDuplicateRequest = newError(KindDuplicate, "DUPLICATE_REQUEST", "request was already received")

	ErrLedgerNotFound = newError(KindNotFound, "LEDGER_NOT_FOUND", "ledger not found")
	ErrCopyNotFound   = newError(KindNotFound, "COPY_NOT_FOUND", "copy not found")
	ErrLoanNotFound   = newError(KindNotFound, "LOAN_NOT_FOUND", "loan not found")

	ErrInventoryInvariantViolation = newError(KindInvariantViolation, "INVENTORY_INVARIANT_VIOLATION", "inventory counters are inconsistent")
	ErrInsufficientAvailableCopies = newError(KindInvariantViolation, "INSUFFICIENT_AVAILABLE_COPIES", "not enough available copies to remove")

	ErrNoAvailableCopy   = newError(KindStateConflict, "NO_AVAILABLE_COPY", "no copy is available")
	ErrNotAvailableCopy  = newError(KindStateConflict, "NOT_AVAILABLE_COPY", "copy is not available")
	ErrIllegalCopyState  = newError(KindStateConflict, "ILLEGAL_COPY_STATE", "transition not allowed from current state")
	ErrIllegalExtendDate = newError(KindStateConflict, "ILLEGAL_EXTEND_DATE", "new due date must be after the current due date")
	ErrLedgerInUse       = newError(KindStateConflict, "LEDGER_IN_USE", "ledger has copies out on loan")
	ErrLedgerExists      = newError(KindStateConflict, "LEDGER_EXISTS", "a ledger already exists for this title at this location")

	ErrForbidden = newError(KindAuthorization, "FORBIDDEN", "actor is not allowed to perform this operation")

	ErrInsufficientBalance = newError(KindExternal, "INSUFFICIENT_BALANCE", "balance is too low")

	ErrInvalidArgument = newError(KindValidation, "INVALID_ARGUMENT", "invalid argument")

	ErrConcurrencyConflict = newError(KindConflict, "CONCURRENCY_CONFLICT", "entity was modified concurrently")
)

// KindOf returns the kind of the first domain error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first domain error in err's chain.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
