package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/workbench/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /health.
// Returns a minimal, safe response suitable for unauthenticated access.
// Only the store and the WebSocket layer are checked; no client data is
// exposed.
func (s *Server) healthHandler(c *echo.Context) error {
	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy
	sessions := 0

	if s.store != nil {
		ids, err := s.store.ListSessions()
		if err != nil {
			status = healthStatusUnhealthy
			checks["store"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
		} else {
			sessions = len(ids)
			checks["store"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	connections := 0
	if s.connManager != nil {
		connections = s.connManager.ActiveConnections()
		checks["websocket"] = HealthCheck{Status: healthStatusHealthy}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, &HealthResponse{
		Status:      status,
		Version:     version.GitCommit,
		Checks:      checks,
		Sessions:    sessions,
		Connections: connections,
	})
}
