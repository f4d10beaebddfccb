package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Mohamed-Elfar/LEDGERLY/internal/apperr"
	"github.com/Mohamed-Elfar/LEDGERLY/internal/model"
)

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	identity := NewIdentityService(db, zap.NewNop(), newTestMailer(), false)

	intent := SignupIntent{Kind: model.SignupCreatingOrg, OrgID: "acme", OrgName: "Acme"}
	_, err := identity.Register(context.Background(), "user@acme.test", "hunter2", "user", intent)
	require.NoError(t, err)

	_, err = identity.Register(context.Background(), "USER@acme.test", "hunter2", "user", intent)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "email", apperr.FieldOf(err))
}

func TestRegisterFixesSignupIntent(t *testing.T) {
	db := newTestDB(t)
	identity := NewIdentityService(db, zap.NewNop(), newTestMailer(), false)
	seedOrg(t, db, "acme", "Acme", 1)

	user, err := identity.Register(context.Background(), "joiner@acme.test", "hunter2", "joiner", SignupIntent{
		Kind:  model.SignupJoiningOrg,
		OrgID: "ACME",
		Role:  model.RoleStaff,
	})
	require.NoError(t, err)
	assert.Equal(t, model.SignupJoiningOrg, user.SignupKind)
	assert.Equal(t, "acme", user.SignupOrgID, "org slug is normalized at sign-up")
	assert.True(t, user.Confirmed, "confirmation disabled means immediately confirmed")

	_, err = identity.Register(context.Background(), "bad@acme.test", "hunter2", "bad", SignupIntent{Kind: "spectating", OrgID: "acme"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestRegisterJoiningRequiresExistingOrganization(t *testing.T) {
	db := newTestDB(t)
	identity := NewIdentityService(db, zap.NewNop(), newTestMailer(), false)

	_, err := identity.Register(context.Background(), "joiner@ghost.test", "hunter2", "joiner", SignupIntent{
		Kind:  model.SignupJoiningOrg,
		OrgID: "ghost",
		Role:  model.RoleStaff,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	var count int64
	db.Model(&model.User{}).Where("email = ?", "joiner@ghost.test").Count(&count)
	assert.Zero(t, count, "a failed join sign-up must not leave an identity behind")
}

func TestConfirmFlow(t *testing.T) {
	db := newTestDB(t)
	identity := NewIdentityService(db, zap.NewNop(), newTestMailer(), true)

	user, err := identity.Register(context.Background(), "user@acme.test", "hunter2", "user", SignupIntent{
		Kind: model.SignupCreatingOrg, OrgID: "acme", OrgName: "Acme",
	})
	require.NoError(t, err)
	assert.False(t, user.Confirmed)

	// Unconfirmed users cannot sign in.
	_, err = identity.Authenticate(context.Background(), "user@acme.test", "hunter2")
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	_, err = identity.Confirm(context.Background(), "user@acme.test", "not-the-code")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	var stored model.User
	require.NoError(t, db.Where("email = ?", "user@acme.test").First(&stored).Error)
	confirmed, err := identity.Confirm(context.Background(), "user@acme.test", stored.ConfirmCode)
	require.NoError(t, err)
	assert.True(t, confirmed.Confirmed)

	// Confirm is idempotent once done.
	again, err := identity.Confirm(context.Background(), "user@acme.test", "")
	require.NoError(t, err)
	assert.True(t, again.Confirmed)

	_, err = identity.Authenticate(context.Background(), "user@acme.test", "hunter2")
	require.NoError(t, err)
}

func TestAuthenticateDoesNotLeakExistence(t *testing.T) {
	db := newTestDB(t)
	identity := NewIdentityService(db, zap.NewNop(), newTestMailer(), false)

	_, err := identity.Register(context.Background(), "user@acme.test", "hunter2", "user", SignupIntent{
		Kind: model.SignupCreatingOrg, OrgID: "acme", OrgName: "Acme",
	})
	require.NoError(t, err)

	_, errWrong := identity.Authenticate(context.Background(), "user@acme.test", "nope")
	_, errMissing := identity.Authenticate(context.Background(), "ghost@acme.test", "nope")
	require.Error(t, errWrong)
	require.Error(t, errMissing)
	assert.Equal(t, errWrong.Error(), errMissing.Error(), "wrong password and unknown user must be indistinguishable")
}

func TestChangePasswordRequiresCurrent(t *testing.T) {
	db := newTestDB(t)
	identity := NewIdentityService(db, zap.NewNop(), newTestMailer(), false)

	user, err := identity.Register(context.Background(), "user@acme.test", "hunter2", "user", SignupIntent{
		Kind: model.SignupCreatingOrg, OrgID: "acme", OrgName: "Acme",
	})
	require.NoError(t, err)

	err = identity.ChangePassword(context.Background(), user.ID, "wrong", "next3")
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	require.NoError(t, identity.ChangePassword(context.Background(), user.ID, "hunter2", "next3"))

	_, err = identity.Authenticate(context.Background(), "user@acme.test", "next3")
	require.NoError(t, err)
	_, err = identity.Authenticate(context.Background(), "user@acme.test", "hunter2")
	require.Error(t, err)
}
