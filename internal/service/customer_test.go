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

func newCustomerService(t *testing.T) (*CustomerService, *LedgerService) {
	t.Helper()
	db := newTestDB(t)
	log := zap.NewNop()
	ledger := NewLedgerService(db, log)
	seedOrg(t, db, "acme", "Acme", 1)
	return NewCustomerService(db, log, ledger), ledger
}

func TestCreateRejectsPhoneCollision(t *testing.T) {
	customers, _ := newCustomerService(t)

	_, err := customers.Create(context.Background(), "acme", "Jane Doe", "+201001234567", "")
	require.NoError(t, err)

	_, err = customers.Create(context.Background(), "acme", "Someone Else", "+201001234567", "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "phone", apperr.FieldOf(err))
}

func TestCreateRejectsNameCollisionDistinctly(t *testing.T) {
	customers, _ := newCustomerService(t)

	_, err := customers.Create(context.Background(), "acme", "Jane Doe", "+201001234567", "")
	require.NoError(t, err)

	// Different phone, same name: rejected, not merged, and attributed to the
	// name field rather than the phone field.
	_, err = customers.Create(context.Background(), "acme", "jane doe", "+201009999999", "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "full_name", apperr.FieldOf(err))
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	customers, _ := newCustomerService(t)

	_, err := customers.Create(context.Background(), "acme", "", "+201001234567", "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "full_name", apperr.FieldOf(err))

	_, err = customers.Create(context.Background(), "acme", "Jane Doe", "  ", "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "phone", apperr.FieldOf(err))
}

func TestUpsertUpdatesExistingRow(t *testing.T) {
	customers, _ := newCustomerService(t)

	created, err := customers.Upsert(context.Background(), "acme", "Jane Doe", "+201001234567", "Old Street")
	require.NoError(t, err)

	updated, err := customers.Upsert(context.Background(), "acme", "Jane D. Doe", "+201001234567", "New Street")
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID, "matching phone must update, not duplicate")
	assert.Equal(t, "Jane D. Doe", updated.FullName)
	assert.Equal(t, "New Street", updated.Address)

	var count int64
	customers.db.Model(&model.Customer{}).Where("org_id = ?", "acme").Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestSamePhoneDifferentOrgIsIndependent(t *testing.T) {
	customers, _ := newCustomerService(t)
	seedOrg(t, customers.db, "globex", "Globex", 2)

	_, err := customers.Create(context.Background(), "acme", "Jane Doe", "+201001234567", "")
	require.NoError(t, err)
	_, err = customers.Create(context.Background(), "globex", "Jane Doe", "+201001234567", "")
	require.NoError(t, err)
}

func TestListFiltersCaseInsensitively(t *testing.T) {
	customers, ledger := newCustomerService(t)

	jane, err := customers.Create(context.Background(), "acme", "Jane Doe", "+201001234567", "")
	require.NoError(t, err)
	bob, err := customers.Create(context.Background(), "acme", "Bob Roe", "+201007654321", "")
	require.NoError(t, err)

	// Keep both unsettled so listing does not prune them.
	_, err = ledger.ApplyDebt(context.Background(), "acme", jane.ID, 10, 1, "admin")
	require.NoError(t, err)
	_, err = ledger.ApplyDebt(context.Background(), "acme", bob.ID, 20, 1, "admin")
	require.NoError(t, err)

	byName, err := customers.List(context.Background(), "acme", "JANE")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "Jane Doe", byName[0].FullName)

	byPhone, err := customers.List(context.Background(), "acme", "765")
	require.NoError(t, err)
	require.Len(t, byPhone, 1)
	assert.Equal(t, "Bob Roe", byPhone[0].FullName)

	all, err := customers.List(context.Background(), "acme", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
