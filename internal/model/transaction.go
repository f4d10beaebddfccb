package model

import "time"

// TransactionType carries the direction of a transaction. Amounts are always
// positive; sign never encodes direction.
type TransactionType string

const (
	TxTypeDebt    TransactionType = "DEBT"
	TxTypePayment TransactionType = "PAYMENT"
)

// Transaction is one immutable entry in the per-organization ledger. Rows are
// append-only and survive customer pruning; only the organization-wide
// cascading delete removes them.
type Transaction struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	OrgID      string          `json:"org_id" gorm:"type:varchar(64);index;not null"`
	CustomerID uint            `json:"customer_id" gorm:"index;not null"`
	UserID     uint            `json:"user_id" gorm:"not null"`
	UserName   string          `json:"user_name" gorm:"type:varchar(100)"`
	TxType     TransactionType `json:"tx_type" gorm:"type:varchar(10);not null"`
	Amount     float64         `json:"amount" gorm:"not null"`
	CreatedAt  time.Time       `json:"created_at"`
}
