package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Mohamed-Elfar/LEDGERLY/internal/apperr"
	"github.com/Mohamed-Elfar/LEDGERLY/internal/model"
	"github.com/Mohamed-Elfar/LEDGERLY/pkg/mailer"
	"github.com/Mohamed-Elfar/LEDGERLY/prometheus"
)

// MembershipState classifies where an authenticated identity stands with its
// organization.
type MembershipState string

const (
	MembershipActive        MembershipState = "ACTIVE"
	MembershipPending       MembershipState = "PENDING"
	MembershipRejected      MembershipState = "REJECTED"
	MembershipNoRequest     MembershipState = "NO_REQUEST"
	MembershipNeedsCreation MembershipState = "NEEDS_CREATION"
)

// Resolution is the outcome of profile resolution on login. Profile is set
// only when State is MembershipActive.
type Resolution struct {
	State   MembershipState    `json:"state"`
	Profile *model.UserProfile `json:"profile,omitempty"`
}

// MembershipService runs the sign-up, join-request and approval workflow.
// Approval is the only path that materializes a profile for a joining user,
// and the admin check always executes on the same transaction as the
// mutation it guards.
type MembershipService struct {
	db     *gorm.DB
	log    *zap.Logger
	mailer *mailer.Mailer
}

func NewMembershipService(db *gorm.DB, log *zap.Logger, m *mailer.Mailer) *MembershipService {
	return &MembershipService{db: db, log: log, mailer: m}
}

// CreateOrganization creates the organization and the founding ADMIN profile
// atomically. The caller is active immediately; no join request is involved on
// this path. A slug that already belongs to another founder is rejected so a
// creating_org sign-up can never seize an existing organization; joining one
// goes through the request flow. Only the founder's own re-run may update the
// name.
func (s *MembershipService) CreateOrganization(ctx context.Context, userID uint, username, orgID, orgName string) (*model.UserProfile, error) {
	orgID = strings.TrimSpace(strings.ToLower(orgID))
	orgName = strings.TrimSpace(orgName)
	if orgID == "" {
		return nil, apperr.Validation("org_id", "organization id is required")
	}
	if orgName == "" {
		return nil, apperr.Validation("org_name", "organization name is required")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	var profile model.UserProfile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.UserProfile
		err := tx.Where("user_id = ?", userID).First(&existing).Error
		if err == nil {
			return apperr.Conflict("user_id", "user already belongs to an organization")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Transient("failed to probe for existing profile", err)
		}

		var org model.Organization
		err = tx.Where("org_id = ?", orgID).First(&org).Error
		switch {
		case err == nil:
			if org.CreatedBy != userID {
				return apperr.Conflict("org_id", "organization id is already taken")
			}
			if org.Name != orgName {
				if err := tx.Model(&org).Update("name", orgName).Error; err != nil {
					return apperr.Transient("failed to update organization", err)
				}
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			org = model.Organization{OrgID: orgID, Name: orgName, CreatedBy: userID}
			if err := tx.Create(&org).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return apperr.Conflict("org_id", "organization id is already taken")
				}
				return apperr.Transient("failed to create organization", err)
			}
		default:
			return apperr.Transient("failed to load organization", err)
		}

		profile = model.UserProfile{
			UserID:   userID,
			OrgID:    orgID,
			OrgName:  orgName,
			Role:     model.RoleAdmin,
			Username: username,
		}
		if err := tx.Create(&profile).Error; err != nil {
			return apperr.Transient("failed to create profile", err)
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}

	s.log.Info("organization created",
		zap.String("org_id", orgID),
		zap.Uint("admin_user_id", userID))
	return &profile, nil
}

// SubmitJoinRequest upserts a PENDING join request keyed by (user_id, org_id).
// Resubmission while pending refreshes the row; a terminal request is not
// reopened.
func (s *MembershipService) SubmitJoinRequest(ctx context.Context, userID uint, orgID, email, username string, role model.Role) (*model.JoinRequest, error) {
	orgID = strings.TrimSpace(strings.ToLower(orgID))
	if orgID == "" {
		return nil, apperr.Validation("org_id", "organization id is required")
	}
	if role != model.RoleAdmin && role != model.RoleStaff {
		role = model.RoleStaff
	}

	defer prometheus.TrackDBOperation("upsert")(time.Now())

	var request model.JoinRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var org model.Organization
		if err := tx.Where("org_id = ?", orgID).First(&org).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("organization not found")
			}
			return apperr.Transient("failed to load organization", err)
		}

		err := tx.Where("user_id = ? AND org_id = ?", userID, orgID).First(&request).Error
		switch {
		case err == nil:
			if request.Status != model.JoinRequestPending {
				return apperr.Conflict("status", fmt.Sprintf("join request already %s", strings.ToLower(string(request.Status))))
			}
			request.Email = email
			request.Username = username
			request.Role = role
			if err := tx.Save(&request).Error; err != nil {
				return apperr.Transient("failed to refresh join request", err)
			}
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			request = model.JoinRequest{
				UserID:   userID,
				OrgID:    orgID,
				Email:    email,
				Username: username,
				Role:     role,
				Status:   model.JoinRequestPending,
			}
			if err := tx.Create(&request).Error; err != nil {
				return apperr.Transient("failed to create join request", err)
			}
			return nil
		default:
			return apperr.Transient("failed to load join request", err)
		}
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}

	prometheus.JoinRequestCounter.WithLabelValues("submit").Inc()
	s.log.Info("join request submitted",
		zap.Uint("user_id", userID),
		zap.String("org_id", orgID))
	return &request, nil
}

// ListPending returns the organization's pending join requests. Admin only.
func (s *MembershipService) ListPending(ctx context.Context, callerUserID uint, orgID string) ([]model.JoinRequest, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	if _, err := requireAdmin(s.db.WithContext(ctx), callerUserID, orgID); err != nil {
		return nil, err
	}
	var requests []model.JoinRequest
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND status = ?", orgID, model.JoinRequestPending).
		Order("created_at asc").
		Find(&requests).Error
	if err != nil {
		return nil, apperr.Transient("failed to list join requests", err)
	}
	return requests, nil
}

// Approve transitions the request to APPROVED and materializes the user's
// profile with the role and username carried on the request, all inside one
// transaction together with the admin check. A repeated approve is a no-op
// that never creates a second profile; approving a rejected request fails.
func (s *MembershipService) Approve(ctx context.Context, callerUserID uint, requestID uint) (*model.JoinRequest, error) {
	request, err := s.decide(ctx, callerUserID, requestID, model.JoinRequestApproved)
	if err != nil {
		return nil, err
	}
	prometheus.JoinRequestCounter.WithLabelValues("approve").Inc()
	s.mailer.Send(request.Email, "Your join request was approved",
		fmt.Sprintf("Your request to join %q has been approved. You can sign in now.", request.OrgID))
	return request, nil
}

// Reject transitions the request to REJECTED, a terminal state. No profile is
// ever created on this path.
func (s *MembershipService) Reject(ctx context.Context, callerUserID uint, requestID uint) (*model.JoinRequest, error) {
	request, err := s.decide(ctx, callerUserID, requestID, model.JoinRequestRejected)
	if err != nil {
		return nil, err
	}
	prometheus.JoinRequestCounter.WithLabelValues("reject").Inc()
	s.mailer.Send(request.Email, "Your join request was rejected",
		fmt.Sprintf("Your request to join %q has been rejected.", request.OrgID))
	return request, nil
}

func (s *MembershipService) decide(ctx context.Context, callerUserID, requestID uint, decision model.JoinRequestStatus) (*model.JoinRequest, error) {
	defer prometheus.TrackDBOperation("update")(time.Now())

	var request model.JoinRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", requestID).First(&request).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("join request not found")
			}
			return apperr.Transient("failed to load join request", err)
		}

		if _, err := requireAdmin(tx, callerUserID, request.OrgID); err != nil {
			return err
		}

		if request.Status == decision {
			// Idempotent retry. For approve, make sure the profile exists
			// before reporting success.
			if decision == model.JoinRequestApproved {
				return upsertApprovedProfile(tx, &request)
			}
			return nil
		}
		if request.Status != model.JoinRequestPending {
			return apperr.Conflict("status", fmt.Sprintf("join request already %s", strings.ToLower(string(request.Status))))
		}

		// Guarded transition: only a still-pending row moves. RowsAffected 0
		// means a concurrent decision won; exactly one terminal state survives.
		res := tx.Model(&model.JoinRequest{}).
			Where("id = ? AND status = ?", request.ID, model.JoinRequestPending).
			Update("status", decision)
		if res.Error != nil {
			return apperr.Transient("failed to update join request", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("status", "join request was decided concurrently")
		}
		request.Status = decision

		if decision == model.JoinRequestApproved {
			return upsertApprovedProfile(tx, &request)
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}

	s.log.Info("join request decided",
		zap.Uint("request_id", request.ID),
		zap.String("org_id", request.OrgID),
		zap.String("status", string(request.Status)),
		zap.Uint("decided_by", callerUserID))
	return &request, nil
}

func upsertApprovedProfile(tx *gorm.DB, request *model.JoinRequest) error {
	var org model.Organization
	if err := tx.Where("org_id = ?", request.OrgID).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("organization not found")
		}
		return apperr.Transient("failed to load organization", err)
	}
	profile := model.UserProfile{
		UserID:   request.UserID,
		OrgID:    request.OrgID,
		OrgName:  org.Name,
		Role:     request.Role,
		Username: request.Username,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"org_id", "org_name", "role", "username", "updated_at"}),
	}).Create(&profile).Error
	if err != nil {
		return apperr.Transient("failed to materialize profile", err)
	}
	return nil
}

// Resolve classifies an authenticated identity with or without a profile. It
// never fabricates an active membership for a join-path identity whose request
// is not approved; an approved request whose profile is not yet readable is
// reported as transient so the caller retries.
func (s *MembershipService) Resolve(ctx context.Context, user *model.User) (*Resolution, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var profile model.UserProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", user.ID).First(&profile).Error
	if err == nil {
		return &Resolution{State: MembershipActive, Profile: &profile}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Transient("failed to load profile", err)
	}

	if user.SignupKind == model.SignupCreatingOrg {
		return &Resolution{State: MembershipNeedsCreation}, nil
	}

	var request model.JoinRequest
	err = s.db.WithContext(ctx).Where("user_id = ? AND org_id = ?", user.ID, user.SignupOrgID).First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Resolution{State: MembershipNoRequest}, nil
		}
		return nil, apperr.Transient("failed to load join request", err)
	}

	switch request.Status {
	case model.JoinRequestPending:
		return &Resolution{State: MembershipPending}, nil
	case model.JoinRequestRejected:
		return &Resolution{State: MembershipRejected}, nil
	case model.JoinRequestApproved:
		// Approval writes the profile in the same transaction, so this gap is
		// a replication artifact at worst.
		return nil, apperr.Transient("membership is materializing, retry shortly", nil)
	default:
		return nil, fmt.Errorf("membership: join request %d has unknown status %q", request.ID, request.Status)
	}
}
