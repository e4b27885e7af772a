package api

import (
	"net/http"
	"sort"

	echo "github.com/labstack/echo/v5"
)

// createSessionHandler handles POST /api/v1/sessions.
func (s *Server) createSessionHandler(c *echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Title) > 512 {
		return echo.NewHTTPError(http.StatusBadRequest, "title exceeds maximum length of 512 characters")
	}

	session := s.runtime.Sessions().Create(req.Title)
	return c.JSON(http.StatusCreated, session.Clone())
}

// listSessionsHandler handles GET /api/v1/sessions.
// Sessions are returned newest first.
func (s *Server) listSessionsHandler(c *echo.Context) error {
	sessions := s.runtime.Sessions().List()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return c.JSON(http.StatusOK, sessions)
}

// getSessionHandler handles GET /api/v1/sessions/:id.
func (s *Server) getSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	session := s.runtime.GetSession(sessionID)
	if session == nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, session)
}
