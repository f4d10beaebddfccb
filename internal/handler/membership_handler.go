package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Mohamed-Elfar/LEDGERLY/internal/apperr"
	"github.com/Mohamed-Elfar/LEDGERLY/internal/service"
)

// MembershipHandler exposes the admin side of the join workflow. The admin
// check itself lives in the service, inside the deciding transaction.
type MembershipHandler struct {
	membership *service.MembershipService
}

func NewMembershipHandler(membership *service.MembershipService) *MembershipHandler {
	return &MembershipHandler{membership: membership}
}

// ListPending returns the organization's pending join requests.
func (h *MembershipHandler) ListPending(c echo.Context) error {
	userID, ok := callerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	orgID, ok := callerOrg(c)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "active organization membership required"})
	}

	requests, err := h.membership.ListPending(c.Request().Context(), userID, orgID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"join_requests": requests})
}

// Approve transitions the request to APPROVED and materializes the profile.
func (h *MembershipHandler) Approve(c echo.Context) error {
	return h.decide(c, true)
}

// Reject transitions the request to its terminal REJECTED state.
func (h *MembershipHandler) Reject(c echo.Context) error {
	return h.decide(c, false)
}

func (h *MembershipHandler) decide(c echo.Context, approve bool) error {
	userID, ok := callerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	requestID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return respondError(c, apperr.Validation("id", "invalid join request id"))
	}

	var request interface{}
	if approve {
		request, err = h.membership.Approve(c.Request().Context(), userID, uint(requestID))
	} else {
		request, err = h.membership.Reject(c.Request().Context(), userID, uint(requestID))
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"join_request": request})
}
