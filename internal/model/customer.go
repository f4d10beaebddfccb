package model

import "time"

// Customer is an org-scoped directory entry. Balance is a denormalized cache
// overwritten on every recomputation pass; the transaction log is the
// authority. A settled customer's row is pruned, its transactions are not.
type Customer struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	OrgID     string    `json:"org_id" gorm:"type:varchar(64);uniqueIndex:idx_customers_org_phone;not null"`
	FullName  string    `json:"full_name" gorm:"type:varchar(100);not null"`
	Phone     string    `json:"phone" gorm:"type:varchar(30);uniqueIndex:idx_customers_org_phone;not null"`
	Address   string    `json:"address" gorm:"type:varchar(255)"`
	Balance   float64   `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
