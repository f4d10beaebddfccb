package model

import "time"

// Role is a user's role within an organization.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleStaff Role = "STAFF"
)

// UserProfile is active membership: the row exists iff the user may act inside
// the organization, and it is the only source of "who can act as admin".
// For a joining user it is materialized exclusively by join-request approval.
type UserProfile struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"uniqueIndex;not null"`
	OrgID     string    `json:"org_id" gorm:"type:varchar(64);index;not null"`
	OrgName   string    `json:"org_name" gorm:"type:varchar(100)"`
	Role      Role      `json:"role" gorm:"type:varchar(20);not null"`
	Username  string    `json:"username" gorm:"type:varchar(100)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
