package model

import "time"

// SignupKind is the sign-up intent, decided once at registration and carried
// as typed state. Membership resolution never re-derives it from anything else.
type SignupKind string

const (
	SignupCreatingOrg SignupKind = "creating_org"
	SignupJoiningOrg  SignupKind = "joining_org"
)

// User is the identity record. Holding a User row says nothing about
// membership; that is what UserProfile is for.
type User struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	Email    string `json:"email" gorm:"type:varchar(100);uniqueIndex;not null"`
	Password string `json:"-" gorm:"type:varchar(255)"`
	Username string `json:"username" gorm:"type:varchar(100)"`

	// Sign-up intent, fixed at registration.
	SignupKind    SignupKind `json:"signup_kind" gorm:"type:varchar(20);not null"`
	SignupOrgID   string     `json:"signup_org_id" gorm:"type:varchar(64);index"`
	SignupOrgName string     `json:"signup_org_name" gorm:"type:varchar(100)"`
	SignupRole    Role       `json:"signup_role" gorm:"type:varchar(20)"`

	// Email confirmation state for the deferred sign-up path.
	Confirmed        bool      `json:"confirmed" gorm:"default:false"`
	ConfirmCode      string    `json:"-" gorm:"type:varchar(64)"`
	ConfirmExpiresAt time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
