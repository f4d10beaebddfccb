package service

import (
	"errors"

	"gorm.io/gorm"

	"github.com/Mohamed-Elfar/LEDGERLY/internal/apperr"
	"github.com/Mohamed-Elfar/LEDGERLY/internal/model"
)

// requireAdmin loads the caller's profile for orgID and verifies the ADMIN
// role. It must be called on the same transaction handle as the mutation it
// guards so the check and the write commit or fail together.
//
// The same message is returned whether the caller has no profile in the org or
// a non-admin one, so the response does not leak membership existence.
func requireAdmin(tx *gorm.DB, userID uint, orgID string) (*model.UserProfile, error) {
	var profile model.UserProfile
	err := tx.Where("user_id = ? AND org_id = ?", userID, orgID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Authorization("admin privileges required")
		}
		return nil, apperr.Transient("failed to load caller profile", err)
	}
	if profile.Role != model.RoleAdmin {
		return nil, apperr.Authorization("admin privileges required")
	}
	return &profile, nil
}
