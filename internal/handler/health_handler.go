package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Mohamed-Elfar/LEDGERLY/prometheus"
)

// HealthCheck handles the health check endpoint
func HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "healthy",
		"service": "ledgerly",
	})
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler(c echo.Context) error {
	handler := prometheus.GetPrometheusHandler()
	handler.ServeHTTP(c.Response(), c.Request())
	return nil
}
