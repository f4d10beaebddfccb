package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Mohamed-Elfar/LEDGERLY/internal/apperr"
	"github.com/Mohamed-Elfar/LEDGERLY/internal/model"
	"github.com/Mohamed-Elfar/LEDGERLY/prometheus"
)

// SettleEpsilon is the threshold below which an absolute balance counts as
// settled and the customer row is pruned from the active projection.
const SettleEpsilon = 1e-6

// LedgerService derives authoritative balances from the transaction log and
// appends new transactions. The cached Customer.Balance column is a
// best-effort denormalization it overwrites but never trusts.
type LedgerService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewLedgerService(db *gorm.DB, log *zap.Logger) *LedgerService {
	return &LedgerService{db: db, log: log}
}

// ComputeBalance folds a customer's transactions: DEBT adds, PAYMENT subtracts
// the absolute amount. Order does not matter. An unknown transaction type is a
// data-integrity failure, never silently skipped.
func ComputeBalance(transactions []model.Transaction) (float64, error) {
	var balance float64
	for _, t := range transactions {
		switch t.TxType {
		case model.TxTypeDebt:
			balance += t.Amount
		case model.TxTypePayment:
			balance -= math.Abs(t.Amount)
		default:
			return 0, fmt.Errorf("ledger: transaction %d has unknown type %q", t.ID, t.TxType)
		}
	}
	return balance, nil
}

// ApplyDebt appends one DEBT transaction for the customer.
func (s *LedgerService) ApplyDebt(ctx context.Context, orgID string, customerID uint, amount float64, userID uint, userName string) (*model.Transaction, error) {
	return s.apply(ctx, model.TxTypeDebt, orgID, customerID, amount, userID, userName)
}

// ApplyPayment appends one PAYMENT transaction for the customer. The
// "payment must not exceed the current balance" check runs against a balance
// recomputed from the log inside the same transaction as the insert, so two
// concurrent payments cannot both pass on a stale read.
func (s *LedgerService) ApplyPayment(ctx context.Context, orgID string, customerID uint, amount float64, userID uint, userName string) (*model.Transaction, error) {
	return s.apply(ctx, model.TxTypePayment, orgID, customerID, amount, userID, userName)
}

func (s *LedgerService) apply(ctx context.Context, kind model.TransactionType, orgID string, customerID uint, amount float64, userID uint, userName string) (*model.Transaction, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, apperr.Validation("amount", "amount must be a finite number")
	}
	if amount <= 0 {
		return nil, apperr.Validation("amount", "amount must be positive")
	}

	defer prometheus.TrackDBOperation("apply_transaction")(time.Now())

	var created model.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customer model.Customer
		if err := tx.Where("org_id = ? AND id = ?", orgID, customerID).First(&customer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("customer not found")
			}
			return apperr.Transient("failed to load customer", err)
		}

		var entries []model.Transaction
		if err := tx.Where("org_id = ? AND customer_id = ?", orgID, customerID).Find(&entries).Error; err != nil {
			return apperr.Transient("failed to load transaction log", err)
		}
		balance, err := ComputeBalance(entries)
		if err != nil {
			return err
		}

		if kind == model.TxTypePayment && amount > balance+SettleEpsilon {
			return apperr.Validation("amount", "payment exceeds current balance")
		}

		created = model.Transaction{
			OrgID:      orgID,
			CustomerID: customerID,
			UserID:     userID,
			UserName:   userName,
			TxType:     kind,
			Amount:     amount,
		}
		if err := tx.Create(&created).Error; err != nil {
			return apperr.Transient("failed to record transaction", err)
		}

		// Refresh the cache in the same unit. Readers still recompute.
		if kind == model.TxTypeDebt {
			balance += amount
		} else {
			balance -= amount
		}
		if err := tx.Model(&model.Customer{}).Where("id = ?", customer.ID).Update("balance", balance).Error; err != nil {
			return apperr.Transient("failed to refresh balance cache", err)
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}

	prometheus.TransactionCounter.WithLabelValues(string(kind)).Inc()
	s.log.Info("transaction applied",
		zap.String("org_id", orgID),
		zap.Uint("customer_id", customerID),
		zap.String("tx_type", string(kind)),
		zap.Float64("amount", amount),
		zap.Uint("user_id", userID))
	return &created, nil
}

// History returns the customer's transactions oldest first. Transactions of a
// pruned customer remain readable here.
func (s *LedgerService) History(ctx context.Context, orgID string, customerID uint) ([]model.Transaction, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var transactions []model.Transaction
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND customer_id = ?", orgID, customerID).
		Order("created_at asc, id asc").
		Find(&transactions).Error
	if err != nil {
		return nil, apperr.Transient("failed to load transaction history", err)
	}
	return transactions, nil
}

// RefreshBalances recomputes every customer balance in the organization from
// the full transaction set, overwrites the cached column, prunes settled
// customers and returns the surviving rows. The whole pass runs in one
// serializable transaction, and a settlement candidate is re-checked against
// the log immediately before deletion, so a debt appended while the pass runs
// keeps the customer instead of being discarded with the row. A customer with
// no transactions yet is never pruned. Any fetch or compute failure rolls the
// pass back; pruning never runs on partial data.
func (s *LedgerService) RefreshBalances(ctx context.Context, orgID string) ([]model.Customer, error) {
	defer prometheus.TrackDBOperation("refresh_balances")(time.Now())

	var active []model.Customer
	var pruned int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customers []model.Customer
		if err := tx.Where("org_id = ?", orgID).Order("full_name asc").Find(&customers).Error; err != nil {
			return apperr.Transient("failed to load customers", err)
		}
		var transactions []model.Transaction
		if err := tx.Where("org_id = ?", orgID).Find(&transactions).Error; err != nil {
			return apperr.Transient("failed to load transaction log", err)
		}

		byCustomer := make(map[uint][]model.Transaction, len(customers))
		for _, t := range transactions {
			byCustomer[t.CustomerID] = append(byCustomer[t.CustomerID], t)
		}

		// Compute everything before writing anything; one corrupt row fails
		// the whole pass.
		balances := make(map[uint]float64, len(customers))
		for _, c := range customers {
			balance, err := ComputeBalance(byCustomer[c.ID])
			if err != nil {
				return err
			}
			balances[c.ID] = balance
		}

		active = make([]model.Customer, 0, len(customers))
		var settled []uint
		for i := range customers {
			c := customers[i]
			balance := balances[c.ID]
			if len(byCustomer[c.ID]) > 0 && math.Abs(balance) < SettleEpsilon {
				// Settlement candidate: re-read its log right before the
				// delete so a transaction appended since the bulk read is
				// honored.
				var recheck []model.Transaction
				if err := tx.Where("org_id = ? AND customer_id = ?", orgID, c.ID).Find(&recheck).Error; err != nil {
					return apperr.Transient("failed to re-check settlement", err)
				}
				fresh, err := ComputeBalance(recheck)
				if err != nil {
					return err
				}
				if math.Abs(fresh) < SettleEpsilon {
					settled = append(settled, c.ID)
					continue
				}
				balance = fresh
			}
			c.Balance = balance
			if err := tx.Model(&model.Customer{}).Where("id = ?", c.ID).Update("balance", balance).Error; err != nil {
				return apperr.Transient("failed to refresh balance cache", err)
			}
			active = append(active, c)
		}

		if len(settled) > 0 {
			if err := tx.Where("id IN ?", settled).Delete(&model.Customer{}).Error; err != nil {
				return apperr.Transient("failed to prune settled customers", err)
			}
		}
		pruned = len(settled)
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}

	if pruned > 0 {
		prometheus.CustomersPrunedCounter.Add(float64(pruned))
		s.log.Info("settled customers pruned",
			zap.String("org_id", orgID),
			zap.Int("count", pruned))
	}
	return active, nil
}
