package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Mohamed-Elfar/LEDGERLY/internal/apperr"
	"github.com/Mohamed-Elfar/LEDGERLY/internal/model"
)

func newOrganizationFixture(t *testing.T) (*OrganizationService, *IdentityService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	log := zap.NewNop()
	identity := NewIdentityService(db, log, newTestMailer(), false)
	return NewOrganizationService(db, log, identity), identity, db
}

func registerAdmin(t *testing.T, identity *IdentityService, db *gorm.DB, orgID string) *model.User {
	t.Helper()
	admin, err := identity.Register(context.Background(), "admin@"+orgID+".test", "hunter2", "admin", SignupIntent{
		Kind:    model.SignupCreatingOrg,
		OrgID:   orgID,
		OrgName: orgID,
	})
	require.NoError(t, err)
	seedOrg(t, db, orgID, orgID, admin.ID)
	return admin
}

func TestDeleteCascadesChildrenFirst(t *testing.T) {
	orgs, identity, db := newOrganizationFixture(t)
	admin := registerAdmin(t, identity, db, "acme")

	customer := seedCustomer(t, db, "acme", "Jane Doe", "+201001234567")
	require.NoError(t, db.Create(&model.Transaction{
		OrgID: "acme", CustomerID: customer.ID, UserID: admin.ID, TxType: model.TxTypeDebt, Amount: 100,
	}).Error)
	require.NoError(t, db.Create(&model.JoinRequest{
		UserID: 99, OrgID: "acme", Email: "j@acme.test", Role: model.RoleStaff, Status: model.JoinRequestPending,
	}).Error)

	// A second org that must survive untouched.
	registerAdmin(t, identity, db, "globex")
	otherCustomer := seedCustomer(t, db, "globex", "Bob Roe", "+201007654321")

	require.NoError(t, orgs.Delete(context.Background(), admin.ID, "acme", "hunter2"))

	for _, probe := range []struct {
		name  string
		model interface{}
	}{
		{"transactions", &model.Transaction{}},
		{"customers", &model.Customer{}},
		{"join requests", &model.JoinRequest{}},
		{"profiles", &model.UserProfile{}},
		{"organization", &model.Organization{}},
	} {
		var count int64
		db.Model(probe.model).Where("org_id = ?", "acme").Count(&count)
		assert.Zero(t, count, "expected no %s left for deleted org", probe.name)
	}

	var survivors int64
	db.Model(&model.Customer{}).Where("id = ?", otherCustomer.ID).Count(&survivors)
	assert.EqualValues(t, 1, survivors, "other orgs must be untouched")
}

func TestDeleteRequiresFreshPassword(t *testing.T) {
	orgs, identity, db := newOrganizationFixture(t)
	admin := registerAdmin(t, identity, db, "acme")

	err := orgs.Delete(context.Background(), admin.ID, "acme", "wrong-password")
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	var count int64
	db.Model(&model.Organization{}).Where("org_id = ?", "acme").Count(&count)
	assert.EqualValues(t, 1, count, "failed step-up must not delete anything")
}

func TestDeleteDeniedForStaff(t *testing.T) {
	orgs, identity, db := newOrganizationFixture(t)
	registerAdmin(t, identity, db, "acme")

	staff, err := identity.Register(context.Background(), "staff@acme.test", "hunter2", "staff", SignupIntent{
		Kind:  model.SignupJoiningOrg,
		OrgID: "acme",
		Role:  model.RoleStaff,
	})
	require.NoError(t, err)
	require.NoError(t, db.Create(&model.UserProfile{
		UserID: staff.ID, OrgID: "acme", OrgName: "acme", Role: model.RoleStaff, Username: "staff",
	}).Error)

	err = orgs.Delete(context.Background(), staff.ID, "acme", "hunter2")
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	var count int64
	db.Model(&model.Organization{}).Where("org_id = ?", "acme").Count(&count)
	assert.EqualValues(t, 1, count)
}
