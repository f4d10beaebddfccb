package model

import "time"

// JoinRequestStatus is the lifecycle state of a join request. APPROVED and
// REJECTED are terminal.
type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "PENDING"
	JoinRequestApproved JoinRequestStatus = "APPROVED"
	JoinRequestRejected JoinRequestStatus = "REJECTED"
)

// JoinRequest is a pending application to join an existing organization,
// unique per (user_id, org_id). Resubmission while pending refreshes the row.
type JoinRequest struct {
	ID        uint              `json:"id" gorm:"primaryKey"`
	UserID    uint              `json:"user_id" gorm:"uniqueIndex:idx_join_requests_user_org;not null"`
	OrgID     string            `json:"org_id" gorm:"type:varchar(64);uniqueIndex:idx_join_requests_user_org;not null"`
	Email     string            `json:"email" gorm:"type:varchar(100)"`
	Username  string            `json:"username" gorm:"type:varchar(100)"`
	Role      Role              `json:"role" gorm:"type:varchar(20);not null"`
	Status    JoinRequestStatus `json:"status" gorm:"type:varchar(20);not null;default:'PENDING'"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
