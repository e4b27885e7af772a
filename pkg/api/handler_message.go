package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/workbench/pkg/models"
)

// maxMessageContentLength bounds user-submitted message bodies.
const maxMessageContentLength = 100_000

// postMessageHandler handles POST /api/v1/sessions/:id/messages.
// Records a user-submitted message on the session timeline and fans it
// out to connected clients.
func (s *Server) postMessageHandler(c *echo.Context) error {
	// 1. Validate session ID
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}
	if s.timelineService == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "timeline endpoint not configured")
	}
	// Same 404 rule as the read path: the session must be known to the
	// runtime or have persisted history.
	if s.runtime.GetSession(sessionID) == nil && !s.store.HasSession(sessionID) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}

	// 2. Bind and validate request body
	var req PostMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}
	if len(req.Content) > maxMessageContentLength {
		return echo.NewHTTPError(http.StatusBadRequest, "content exceeds maximum length of 100,000 characters")
	}

	role := models.MessageRole(req.Role)
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleUser && role != models.RoleAssistant {
		return echo.NewHTTPError(http.StatusBadRequest, "role must be user or assistant")
	}

	// 3. Record on the timeline (id, timestamp, and sequence are assigned there)
	msg := &models.StoredMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   models.TextContent(req.Content),
	}
	item, err := s.timelineService.AddMessageToTimeline(c.Request().Context(), sessionID, msg)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusCreated, item)
}
