package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Mohamed-Elfar/LEDGERLY/internal/apperr"
	"github.com/Mohamed-Elfar/LEDGERLY/internal/model"
	"github.com/Mohamed-Elfar/LEDGERLY/prometheus"
)

// OrganizationService owns the admin-only cascading teardown.
type OrganizationService struct {
	db       *gorm.DB
	log      *zap.Logger
	identity *IdentityService
}

func NewOrganizationService(db *gorm.DB, log *zap.Logger, identity *IdentityService) *OrganizationService {
	return &OrganizationService{db: db, log: log, identity: identity}
}

// Delete removes the organization and everything under it, children before
// parents: transactions, customers, profiles, then the organization row. The
// caller must be an ADMIN of the org and must re-verify their password
// immediately before the destructive sequence.
func (s *OrganizationService) Delete(ctx context.Context, callerUserID uint, orgID, password string) error {
	if err := s.identity.VerifyPassword(ctx, callerUserID, password); err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireAdmin(tx, callerUserID, orgID); err != nil {
			return err
		}

		var org model.Organization
		if err := tx.Where("org_id = ?", orgID).First(&org).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("organization not found")
			}
			return apperr.Transient("failed to load organization", err)
		}

		if err := tx.Where("org_id = ?", orgID).Delete(&model.Transaction{}).Error; err != nil {
			return apperr.Transient("failed to delete transactions", err)
		}
		if err := tx.Where("org_id = ?", orgID).Delete(&model.Customer{}).Error; err != nil {
			return apperr.Transient("failed to delete customers", err)
		}
		if err := tx.Where("org_id = ?", orgID).Delete(&model.JoinRequest{}).Error; err != nil {
			return apperr.Transient("failed to delete join requests", err)
		}
		if err := tx.Where("org_id = ?", orgID).Delete(&model.UserProfile{}).Error; err != nil {
			return apperr.Transient("failed to delete profiles", err)
		}
		if err := tx.Delete(&org).Error; err != nil {
			return apperr.Transient("failed to delete organization", err)
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}

	prometheus.OrgDeletionCounter.Inc()
	s.log.Warn("organization deleted",
		zap.String("org_id", orgID),
		zap.Uint("deleted_by", callerUserID))
	return nil
}
