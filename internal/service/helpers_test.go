package service

import (
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/Mohamed-Elfar/LEDGERLY/internal/model"
	"github.com/Mohamed-Elfar/LEDGERLY/pkg/config"
	"github.com/Mohamed-Elfar/LEDGERLY/pkg/mailer"
)

// newTestDB opens a per-test in-memory database. The named shared-cache DSN
// keeps every pooled connection on the same database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         glogger.Default.LogMode(glogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&model.Organization{},
		&model.User{},
		&model.UserProfile{},
		&model.JoinRequest{},
		&model.Customer{},
		&model.Transaction{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func newTestMailer() *mailer.Mailer {
	return mailer.New(config.SMTPConfig{}, zap.NewNop())
}

// seedOrg inserts an organization and an ADMIN profile for userID.
func seedOrg(t *testing.T, db *gorm.DB, orgID, orgName string, adminUserID uint) {
	t.Helper()

	org := model.Organization{OrgID: orgID, Name: orgName, CreatedBy: adminUserID}
	if err := db.Create(&org).Error; err != nil {
		t.Fatalf("failed to seed organization: %v", err)
	}
	profile := model.UserProfile{
		UserID:   adminUserID,
		OrgID:    orgID,
		OrgName:  orgName,
		Role:     model.RoleAdmin,
		Username: fmt.Sprintf("admin-%d", adminUserID),
	}
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("failed to seed admin profile: %v", err)
	}
}

// seedCustomer inserts a customer row and returns it.
func seedCustomer(t *testing.T, db *gorm.DB, orgID, fullName, phone string) *model.Customer {
	t.Helper()

	customer := model.Customer{OrgID: orgID, FullName: fullName, Phone: phone}
	if err := db.Create(&customer).Error; err != nil {
		t.Fatalf("failed to seed customer: %v", err)
	}
	return &customer
}
