package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Mohamed-Elfar/LEDGERLY/internal/apperr"
	"github.com/Mohamed-Elfar/LEDGERLY/internal/service"
	"github.com/Mohamed-Elfar/LEDGERLY/pkg/logger"
)

// TransactionHandler exposes the transaction application service.
type TransactionHandler struct {
	ledger *service.LedgerService
}

func NewTransactionHandler(ledger *service.LedgerService) *TransactionHandler {
	return &TransactionHandler{ledger: ledger}
}

type applyRequest struct {
	CustomerID uint    `json:"customer_id"`
	Amount     float64 `json:"amount"`
}

// ApplyDebt appends a DEBT transaction for the customer.
func (h *TransactionHandler) ApplyDebt(c echo.Context) error {
	return h.apply(c, true)
}

// ApplyPayment appends a PAYMENT transaction for the customer.
func (h *TransactionHandler) ApplyPayment(c echo.Context) error {
	return h.apply(c, false)
}

func (h *TransactionHandler) apply(c echo.Context, debt bool) error {
	log := logger.FromContext(c)

	orgID, ok := callerOrg(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "active organization membership required"})
	}
	userID, ok := callerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	userName, _ := c.Get("email").(string)

	var req applyRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse transaction request", zap.Error(err))
		return respondError(c, apperr.Validation("", "invalid request"))
	}
	if req.CustomerID == 0 {
		return respondError(c, apperr.Validation("customer_id", "customer id is required"))
	}

	var err error
	var created interface{}
	if debt {
		created, err = h.ledger.ApplyDebt(c.Request().Context(), orgID, req.CustomerID, req.Amount, userID, userName)
	} else {
		created, err = h.ledger.ApplyPayment(c.Request().Context(), orgID, req.CustomerID, req.Amount, userID, userName)
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}
