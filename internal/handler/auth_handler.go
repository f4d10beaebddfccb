package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Mohamed-Elfar/LEDGERLY/internal/apperr"
	"github.com/Mohamed-Elfar/LEDGERLY/internal/model"
	"github.com/Mohamed-Elfar/LEDGERLY/internal/service"
	"github.com/Mohamed-Elfar/LEDGERLY/pkg/jwtutil"
	"github.com/Mohamed-Elfar/LEDGERLY/pkg/logger"
	"github.com/Mohamed-Elfar/LEDGERLY/prometheus"
)

// AuthHandler exposes registration, confirmation and login. Sign-up intent is
// fixed here; everything downstream reads it as typed state.
type AuthHandler struct {
	identity   *service.IdentityService
	membership *service.MembershipService
}

func NewAuthHandler(identity *service.IdentityService, membership *service.MembershipService) *AuthHandler {
	return &AuthHandler{identity: identity, membership: membership}
}

type registerRequest struct {
	Email      string           `json:"email"`
	Password   string           `json:"password"`
	Username   string           `json:"username"`
	SignupKind model.SignupKind `json:"signup_kind"`
	OrgID      string           `json:"org_id"`
	OrgName    string           `json:"org_name"`
	Role       model.Role       `json:"role"`
}

// Register creates the identity and, depending on the intent, either founds
// the organization (live-session path) or files the join request.
func (h *AuthHandler) Register(c echo.Context) error {
	log := logger.FromContext(c)

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		return respondError(c, apperr.Validation("", "invalid request"))
	}

	user, err := h.identity.Register(c.Request().Context(), req.Email, req.Password, req.Username, service.SignupIntent{
		Kind:    req.SignupKind,
		OrgID:   req.OrgID,
		OrgName: req.OrgName,
		Role:    req.Role,
	})
	if err != nil {
		return respondError(c, err)
	}

	switch user.SignupKind {
	case model.SignupJoiningOrg:
		request, err := h.membership.SubmitJoinRequest(c.Request().Context(), user.ID, user.SignupOrgID, user.Email, user.Username, user.SignupRole)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusCreated, echo.Map{
			"message":      "registration submitted, awaiting admin approval",
			"state":        service.MembershipPending,
			"user":         user,
			"join_request": request,
		})

	default: // creating_org
		if !user.Confirmed {
			return c.JSON(http.StatusCreated, echo.Map{
				"message": "registration submitted, confirm your email to continue",
				"state":   service.MembershipNeedsCreation,
				"user":    user,
			})
		}
		profile, err := h.membership.CreateOrganization(c.Request().Context(), user.ID, user.Username, user.SignupOrgID, user.SignupOrgName)
		if err != nil {
			return respondError(c, err)
		}
		token, err := jwtutil.GenerateTokenWithOrg(user.Email, user.ID, profile.OrgID, profile.OrgName, string(profile.Role))
		if err != nil {
			log.Error("Failed to generate token", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
		}
		prometheus.IncreaseActiveTokens()
		return c.JSON(http.StatusCreated, echo.Map{
			"message": "organization created",
			"state":   service.MembershipActive,
			"token":   token,
			"user":    user,
			"profile": profile,
		})
	}
}

// Confirm finishes the email-confirm sign-up path. For an organization
// creator this is the moment the deferred profile is materialized.
func (h *AuthHandler) Confirm(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse confirmation request", zap.Error(err))
		return respondError(c, apperr.Validation("", "invalid request"))
	}

	user, err := h.identity.Confirm(c.Request().Context(), req.Email, req.Code)
	if err != nil {
		return respondError(c, err)
	}

	if user.SignupKind == model.SignupCreatingOrg {
		_, err := h.membership.CreateOrganization(c.Request().Context(), user.ID, user.Username, user.SignupOrgID, user.SignupOrgName)
		if err != nil && apperr.KindOf(err) != apperr.KindConflict {
			return respondError(c, err)
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "email confirmed, you can sign in now",
		"user":    user,
	})
}

// Login authenticates and classifies membership. A confirmed creator with no
// profile yet gets it materialized here; a join-path identity is never
// promoted past what its request allows.
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		return respondError(c, apperr.Validation("", "invalid request"))
	}

	user, err := h.identity.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindAuthorization {
			prometheus.RecordError("authorization")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
		}
		return respondError(c, err)
	}

	resolution, err := h.membership.Resolve(c.Request().Context(), user)
	if err != nil {
		return respondError(c, err)
	}

	if resolution.State == service.MembershipNoRequest {
		// Identity outlived its join request (the organization was deleted
		// and recreated, or the request never landed). File it now instead
		// of stranding the account.
		if _, err := h.membership.SubmitJoinRequest(c.Request().Context(), user.ID, user.SignupOrgID, user.Email, user.Username, user.SignupRole); err != nil {
			return respondError(c, err)
		}
		resolution.State = service.MembershipPending
	}

	profile := resolution.Profile
	if resolution.State == service.MembershipNeedsCreation {
		profile, err = h.membership.CreateOrganization(c.Request().Context(), user.ID, user.Username, user.SignupOrgID, user.SignupOrgName)
		if err != nil {
			return respondError(c, err)
		}
	}

	if profile == nil {
		// Join-path identity whose request is not approved.
		return c.JSON(http.StatusForbidden, echo.Map{
			"error": "membership is not active",
			"state": resolution.State,
		})
	}

	token, err := jwtutil.GenerateTokenWithOrg(user.Email, user.ID, profile.OrgID, profile.OrgName, string(profile.Role))
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}
	prometheus.IncreaseActiveTokens()

	log.Info("User logged in",
		zap.String("email", user.Email),
		zap.String("org_id", profile.OrgID),
		zap.String("role", string(profile.Role)))

	return c.JSON(http.StatusOK, echo.Map{
		"token":   token,
		"state":   service.MembershipActive,
		"user":    user,
		"profile": profile,
	})
}

// GetProfile returns the caller's identity and membership classification.
func (h *AuthHandler) GetProfile(c echo.Context) error {
	userID, ok := callerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	user, err := h.identity.GetByID(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	resolution, err := h.membership.Resolve(c.Request().Context(), user)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user":    user,
		"state":   resolution.State,
		"profile": resolution.Profile,
	})
}

// ChangePassword rotates the caller's password.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	log := logger.FromContext(c)

	userID, ok := callerIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse password change request", zap.Error(err))
		return respondError(c, apperr.Validation("", "invalid request"))
	}

	if err := h.identity.ChangePassword(c.Request().Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}
