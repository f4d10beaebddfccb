package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Mohamed-Elfar/LEDGERLY/internal/apperr"
	"github.com/Mohamed-Elfar/LEDGERLY/internal/model"
	"github.com/Mohamed-Elfar/LEDGERLY/pkg/mailer"
	"github.com/Mohamed-Elfar/LEDGERLY/prometheus"
)

const confirmCodeTTL = 24 * time.Hour

// IdentityService is the identity collaborator: registration with a typed
// sign-up intent, credential checks and the email-confirm path. Confirmation
// mail is fire-and-forget; its failure never rolls back a registration.
type IdentityService struct {
	db             *gorm.DB
	log            *zap.Logger
	mailer         *mailer.Mailer
	requireConfirm bool
}

func NewIdentityService(db *gorm.DB, log *zap.Logger, m *mailer.Mailer, requireConfirm bool) *IdentityService {
	return &IdentityService{db: db, log: log, mailer: m, requireConfirm: requireConfirm}
}

// SignupIntent is the tagged sign-up choice carried on the new user row.
type SignupIntent struct {
	Kind    model.SignupKind
	OrgID   string
	OrgName string
	Role    model.Role
}

// Register creates the identity row. With confirmation enabled the user stays
// unconfirmed until the OTP mailed here is presented to Confirm. A joining
// sign-up requires the named organization to exist, checked in the same
// transaction as the insert, so no identity is ever created for an
// organization that cannot accept its join request.
func (s *IdentityService) Register(ctx context.Context, email, password, username string, intent SignupIntent) (*model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, apperr.Validation("email", "email is required")
	}
	if password == "" {
		return nil, apperr.Validation("password", "password is required")
	}
	switch intent.Kind {
	case model.SignupCreatingOrg, model.SignupJoiningOrg:
	default:
		return nil, apperr.Validation("signup_kind", "signup kind must be creating_org or joining_org")
	}
	if intent.OrgID == "" {
		return nil, apperr.Validation("org_id", "organization id is required")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	var existing model.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, apperr.Conflict("email", "email already registered")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Transient("failed to probe for existing user", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}

	user := model.User{
		Email:         email,
		Password:      string(hash),
		Username:      username,
		SignupKind:    intent.Kind,
		SignupOrgID:   strings.TrimSpace(strings.ToLower(intent.OrgID)),
		SignupOrgName: strings.TrimSpace(intent.OrgName),
		SignupRole:    intent.Role,
		Confirmed:     !s.requireConfirm,
	}
	if s.requireConfirm {
		user.ConfirmCode = uuid.New().String()
		user.ConfirmExpiresAt = time.Now().Add(confirmCodeTTL)
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if user.SignupKind == model.SignupJoiningOrg {
			var org model.Organization
			if err := tx.Where("org_id = ?", user.SignupOrgID).First(&org).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("organization not found")
				}
				return apperr.Transient("failed to load organization", err)
			}
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("email", "email already registered")
			}
			return apperr.Transient("failed to create user", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.requireConfirm {
		s.mailer.Send(user.Email, "Confirm your account",
			fmt.Sprintf("Your confirmation code is %s. It expires in 24 hours.", user.ConfirmCode))
	}

	prometheus.RegisterCounter.Inc()
	s.log.Info("user registered",
		zap.String("email", user.Email),
		zap.String("signup_kind", string(user.SignupKind)),
		zap.String("org_id", user.SignupOrgID))
	return &user, nil
}

// Confirm marks the user confirmed when the presented code matches and has not
// expired.
func (s *IdentityService) Confirm(ctx context.Context, email, code string) (*model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	defer prometheus.TrackDBOperation("update")(time.Now())

	var user model.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Transient("failed to load user", err)
	}
	if user.Confirmed {
		return &user, nil
	}
	if code == "" || user.ConfirmCode != code {
		return nil, apperr.Validation("code", "invalid confirmation code")
	}
	if time.Now().After(user.ConfirmExpiresAt) {
		return nil, apperr.Validation("code", "confirmation code expired")
	}

	updates := map[string]interface{}{"confirmed": true, "confirm_code": ""}
	if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return nil, apperr.Transient("failed to confirm user", err)
	}
	user.Confirmed = true
	user.ConfirmCode = ""

	s.log.Info("user confirmed", zap.String("email", user.Email))
	return &user, nil
}

// Authenticate verifies credentials and returns the user. The message does not
// distinguish a missing user from a wrong password.
func (s *IdentityService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Authorization("invalid credentials")
		}
		return nil, apperr.Transient("failed to load user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, apperr.Authorization("invalid credentials")
	}
	if !user.Confirmed {
		return nil, apperr.Authorization("email not confirmed")
	}
	return &user, nil
}

// VerifyPassword re-checks the password of an already authenticated user.
// Step-up authentication for irreversible actions; session validity alone is
// not proof of intent.
func (s *IdentityService) VerifyPassword(ctx context.Context, userID uint, password string) error {
	var user model.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Authorization("invalid credentials")
		}
		return apperr.Transient("failed to load user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return apperr.Authorization("invalid credentials")
	}
	return nil
}

// ChangePassword rotates the password after verifying the current one.
func (s *IdentityService) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	if next == "" {
		return apperr.Validation("new_password", "new password is required")
	}
	if err := s.VerifyPassword(ctx, userID, current); err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("identity: hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Update("password", string(hash)).Error; err != nil {
		return apperr.Transient("failed to update password", err)
	}
	s.log.Info("password changed", zap.Uint("user_id", userID))
	return nil
}

// GetByID loads an identity row.
func (s *IdentityService) GetByID(ctx context.Context, userID uint) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Transient("failed to load user", err)
	}
	return &user, nil
}
