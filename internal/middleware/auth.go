package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Mohamed-Elfar/LEDGERLY/pkg/jwtutil"
	"github.com/Mohamed-Elfar/LEDGERLY/pkg/logger"
	"github.com/Mohamed-Elfar/LEDGERLY/prometheus"
)

// AuthMiddleware validates the JWT token from the Authorization header and
// stores the caller's identity and organization context for handlers.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Error("Missing Authorization header")
			prometheus.RecordError("authorization")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Error("Invalid Authorization header format")
			prometheus.RecordError("authorization")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
		}

		claims, err := jwtutil.ValidateToken(parts[1])
		if err != nil {
			log.Error("Invalid JWT token", zap.Error(err))
			prometheus.RecordError("authorization")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		if claims.OrgID != "" {
			c.Set("org_id", claims.OrgID)
			c.Set("org_name", claims.OrgName)
			c.Set("user_role", claims.Role)
		}

		return next(c)
	}
}

// RequireOrgContext rejects requests whose token carries no organization.
// Handlers behind it can assume org_id is present.
func RequireOrgContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := c.Get("org_id").(string); !ok {
			prometheus.RecordError("authorization")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "active organization membership required"})
		}
		return next(c)
	}
}
