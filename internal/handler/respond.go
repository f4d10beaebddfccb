package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Mohamed-Elfar/LEDGERLY/internal/apperr"
	"github.com/Mohamed-Elfar/LEDGERLY/pkg/logger"
	"github.com/Mohamed-Elfar/LEDGERLY/prometheus"
)

// respondError maps the error taxonomy to HTTP statuses and records it.
func respondError(c echo.Context, err error) error {
	log := logger.FromContext(c)

	kind := apperr.KindOf(err)
	body := echo.Map{"error": err.Error()}
	if field := apperr.FieldOf(err); field != "" {
		body["field"] = field
	}

	switch kind {
	case apperr.KindValidation:
		prometheus.RecordError("validation")
		return c.JSON(http.StatusBadRequest, body)
	case apperr.KindAuthorization:
		prometheus.RecordError("authorization")
		return c.JSON(http.StatusForbidden, body)
	case apperr.KindConflict:
		prometheus.RecordError("conflict")
		return c.JSON(http.StatusConflict, body)
	case apperr.KindNotFound:
		prometheus.RecordError("not_found")
		return c.JSON(http.StatusNotFound, body)
	case apperr.KindTransient:
		prometheus.RecordError("transient")
		log.Error("transient failure", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service temporarily unavailable"})
	default:
		prometheus.RecordError("internal")
		log.Error("unclassified failure", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// callerIdentity pulls the authenticated identity placed by AuthMiddleware.
func callerIdentity(c echo.Context) (uint, bool) {
	userID, ok := c.Get("user_id").(uint)
	return userID, ok
}

// callerOrg pulls the organization context placed by AuthMiddleware.
func callerOrg(c echo.Context) (string, bool) {
	orgID, ok := c.Get("org_id").(string)
	return orgID, ok
}
