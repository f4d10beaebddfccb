package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Mohamed-Elfar/LEDGERLY/internal/apperr"
	"github.com/Mohamed-Elfar/LEDGERLY/internal/service"
	"github.com/Mohamed-Elfar/LEDGERLY/pkg/logger"
)

// CustomerHandler exposes the org-scoped customer directory.
type CustomerHandler struct {
	customers *service.CustomerService
	ledger    *service.LedgerService
}

func NewCustomerHandler(customers *service.CustomerService, ledger *service.LedgerService) *CustomerHandler {
	return &CustomerHandler{customers: customers, ledger: ledger}
}

type customerRequest struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Address  string `json:"address,omitempty"`
}

// Create adds a new customer, rejecting phone and name collisions distinctly.
func (h *CustomerHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)

	orgID, ok := callerOrg(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "active organization membership required"})
	}

	var req customerRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse customer request", zap.Error(err))
		return respondError(c, apperr.Validation("", "invalid request"))
	}

	customer, err := h.customers.Create(c.Request().Context(), orgID, req.FullName, req.Phone, req.Address)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, customer)
}

// Upsert creates or updates the customer keyed by (org, phone).
func (h *CustomerHandler) Upsert(c echo.Context) error {
	log := logger.FromContext(c)

	orgID, ok := callerOrg(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "active organization membership required"})
	}

	var req customerRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse customer request", zap.Error(err))
		return respondError(c, apperr.Validation("", "invalid request"))
	}

	customer, err := h.customers.Upsert(c.Request().Context(), orgID, req.FullName, req.Phone, req.Address)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, customer)
}

// List returns active customers with recomputed balances, optionally filtered
// by the search query parameter.
func (h *CustomerHandler) List(c echo.Context) error {
	orgID, ok := callerOrg(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "active organization membership required"})
	}

	customers, err := h.customers.List(c.Request().Context(), orgID, c.QueryParam("search"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"customers": customers})
}

// History returns the customer's full transaction log, including transactions
// of a customer already pruned from the active projection.
func (h *CustomerHandler) History(c echo.Context) error {
	orgID, ok := callerOrg(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "active organization membership required"})
	}

	customerID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return respondError(c, apperr.Validation("id", "invalid customer id"))
	}

	transactions, err := h.ledger.History(c.Request().Context(), orgID, uint(customerID))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": transactions})
}
