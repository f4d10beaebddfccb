package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Mohamed-Elfar/LEDGERLY/internal/apperr"
	"github.com/Mohamed-Elfar/LEDGERLY/internal/service"
	"github.com/Mohamed-Elfar/LEDGERLY/pkg/logger"
	"github.com/Mohamed-Elfar/LEDGERLY/prometheus"
)

// OrganizationHandler exposes the cascading teardown.
type OrganizationHandler struct {
	orgs *service.OrganizationService
}

func NewOrganizationHandler(orgs *service.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{orgs: orgs}
}

// Delete removes the caller's organization. The body must carry the caller's
// password; a valid session alone does not authorize this.
func (h *OrganizationHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)

	userID, ok := callerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	orgID, ok := callerOrg(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "active organization membership required"})
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse organization deletion request", zap.Error(err))
		return respondError(c, apperr.Validation("", "invalid request"))
	}
	if req.Password == "" {
		return respondError(c, apperr.Validation("password", "password confirmation is required"))
	}

	if err := h.orgs.Delete(c.Request().Context(), userID, orgID, req.Password); err != nil {
		return respondError(c, err)
	}

	// The caller's token references a deleted org; treat it as signed out.
	prometheus.DecreaseActiveTokens()

	return c.JSON(http.StatusOK, echo.Map{
		"message": "organization deleted, you have been signed out",
	})
}
