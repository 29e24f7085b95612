package model

import "time"

type TransactionType string

const (
	TxDeduct TransactionType = "deduct"
	TxAdd    TransactionType = "add"
	TxRefund TransactionType = "refund"
)

// CreditTransaction is one immutable entry of the credit ledger.  Amount is
// stored as written: deductions hold a positive magnitude, admin additions
// hold the signed adjustment.
type CreditTransaction struct {
	ID         string          `db:"id" json:"id"`
	UserID     string          `db:"user_id" json:"user_id"`
	PropertyID *string         `db:"property_id" json:"property_id,omitempty"`
	Type       TransactionType `db:"transaction_type" json:"transaction_type"`
	Amount     int             `db:"amount" json:"amount"`
	Reason     *string         `db:"reason" json:"reason,omitempty"`
	CreatedBy  *string         `db:"created_by" json:"created_by,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// Signed returns the effect of the entry on the balance.
func (t CreditTransaction) Signed() int {
	if t.Type == TxDeduct {
		return -t.Amount
	}
	return t.Amount
}
