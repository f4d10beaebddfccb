package model

import "time"

// Organization represents a tenant. The slug is chosen at sign-up and is the
// stable identifier every other row is scoped by.
type Organization struct {
	OrgID     string    `json:"org_id" gorm:"primaryKey;type:varchar(64)"`
	Name      string    `json:"name" gorm:"type:varchar(100);not null"`
	CreatedBy uint      `json:"created_by" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
