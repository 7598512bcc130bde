package domain

import "time"

// Operation names the mutating calls that pass through the idempotency guard.
type Operation string

const (
	OpCreateLedger  Operation = "create-ledger"
	OpResizeLedger  Operation = "resize-ledger"
	OpAddCopies     Operation = "add-copies"
	OpRemoveCopies  Operation = "remove-copies"
	OpSetDeposit    Operation = "set-deposit"
	OpRemoveDeposit Operation = "remove-deposit"
	OpDeleteLedger  Operation = "delete-ledger"
	OpRequestBorrow Operation = "request-borrow"
	OpConfirmLoan   Operation = "confirm-loan"
	OpExtendLoan    Operation = "extend-loan"
	OpSuspendLoan   Operation = "suspend-loan"
	OpCancelLoan    Operation = "cancel-loan"
	OpConfirmReturn Operation = "confirm-return"
	OpMarkOverdue   Operation = "mark-overdue"
	OpTopUpBalance  Operation = "top-up-balance"
)

// IdempotencyRecord marks a key as used until ExpiresAt.
type IdempotencyRecord struct {
	Key       string    `json:"key"`
	CreatedOn time.Time `json:"created_on"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (r IdempotencyRecord) Live(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

// AuditEvent is recorded the first time a key is used.
type AuditEvent struct {
	ID            int64          `json:"id"`
	Type          string         `json:"type"`
	Operation     Operation      `json:"operation"`
	TraceID       string         `json:"trace_id"`
	ActorID       int64          `json:"actor_id"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   int64          `json:"aggregate_id"`
	Payload       map[string]any `json:"payload,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}
