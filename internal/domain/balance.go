package domain

import "time"

type TransactionType string

const (
	TransactionTypeDepositDebit TransactionType = "DEPOSIT_DEBIT"
	TransactionTypeTopUpCredit  TransactionType = "TOP_UP_CREDIT"
)

type BalanceTransaction struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Amount        int64           `json:"amount"` // positive for credit, negative for debit
	Type          TransactionType `json:"type"`
	RelatedLoanID *int64          `json:"related_loan_id,omitempty"`
	Description   string          `json:"description"`
	CreatedOn     time.Time       `json:"created_on"`
}
