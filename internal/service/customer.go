package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Mohamed-Elfar/LEDGERLY/internal/apperr"
	"github.com/Mohamed-Elfar/LEDGERLY/internal/model"
	"github.com/Mohamed-Elfar/LEDGERLY/prometheus"
)

// CustomerService is the org-scoped customer directory. (org_id, phone) is the
// identity of a customer; listings always go through the ledger's
// recomputation pass so balances come from the log, not the cached column.
type CustomerService struct {
	db     *gorm.DB
	log    *zap.Logger
	ledger *LedgerService
}

func NewCustomerService(db *gorm.DB, log *zap.Logger, ledger *LedgerService) *CustomerService {
	return &CustomerService{db: db, log: log, ledger: ledger}
}

// Create adds a genuinely new customer. It probes for an existing match on
// phone OR full name within the org first; the two collisions are reported
// distinctly because they usually mean different things.
func (s *CustomerService) Create(ctx context.Context, orgID, fullName, phone, address string) (*model.Customer, error) {
	fullName = strings.TrimSpace(fullName)
	phone = strings.TrimSpace(phone)
	if fullName == "" {
		return nil, apperr.Validation("full_name", "full name is required")
	}
	if phone == "" {
		return nil, apperr.Validation("phone", "phone is required")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	var existing model.Customer
	err := s.db.WithContext(ctx).Where("org_id = ? AND phone = ?", orgID, phone).First(&existing).Error
	if err == nil {
		return nil, apperr.Conflict("phone", "a customer with this phone already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Transient("failed to probe for existing customer", err)
	}

	err = s.db.WithContext(ctx).Where("org_id = ? AND LOWER(full_name) = LOWER(?)", orgID, fullName).First(&existing).Error
	if err == nil {
		return nil, apperr.Conflict("full_name", "a customer with this name already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Transient("failed to probe for existing customer", err)
	}

	customer := model.Customer{
		OrgID:    orgID,
		FullName: fullName,
		Phone:    phone,
		Address:  address,
	}
	if err := s.db.WithContext(ctx).Create(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a race with a concurrent create on the same phone.
			return nil, apperr.Conflict("phone", "a customer with this phone already exists")
		}
		return nil, apperr.Transient("failed to create customer", err)
	}

	s.log.Info("customer created",
		zap.String("org_id", orgID),
		zap.Uint("customer_id", customer.ID),
		zap.String("full_name", customer.FullName))
	return &customer, nil
}

// Upsert creates or updates the customer identified by (org_id, phone). An
// existing row is updated in place, never duplicated.
func (s *CustomerService) Upsert(ctx context.Context, orgID, fullName, phone, address string) (*model.Customer, error) {
	fullName = strings.TrimSpace(fullName)
	phone = strings.TrimSpace(phone)
	if fullName == "" {
		return nil, apperr.Validation("full_name", "full name is required")
	}
	if phone == "" {
		return nil, apperr.Validation("phone", "phone is required")
	}

	defer prometheus.TrackDBOperation("upsert")(time.Now())

	customer := model.Customer{
		OrgID:    orgID,
		FullName: fullName,
		Phone:    phone,
		Address:  address,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "org_id"}, {Name: "phone"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_name", "address", "updated_at"}),
	}).Create(&customer).Error
	if err != nil {
		return nil, apperr.Transient("failed to upsert customer", err)
	}

	// Reload so the caller sees the canonical row (id and cached balance of a
	// pre-existing customer).
	var saved model.Customer
	if err := s.db.WithContext(ctx).Where("org_id = ? AND phone = ?", orgID, phone).First(&saved).Error; err != nil {
		return nil, apperr.Transient("failed to reload customer", err)
	}
	return &saved, nil
}

// List returns the organization's active customers with balances recomputed
// from the log, settled rows pruned, filtered case-insensitively on name or
// phone substring.
func (s *CustomerService) List(ctx context.Context, orgID, search string) ([]model.Customer, error) {
	customers, err := s.ledger.RefreshBalances(ctx, orgID)
	if err != nil {
		return nil, err
	}

	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return customers, nil
	}
	filtered := make([]model.Customer, 0, len(customers))
	for _, c := range customers {
		if strings.Contains(strings.ToLower(c.FullName), search) || strings.Contains(strings.ToLower(c.Phone), search) {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}
