package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/workbench/pkg/models"
)

// getTimelineHandler handles GET /api/v1/sessions/:id/timeline.
func (s *Server) getTimelineHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}
	if s.timelineService == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "timeline endpoint not configured")
	}

	opts := models.TimelineQuery{
		Limit:          models.DefaultTimelineLimit,
		IncludeRelated: true,
	}

	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit: must be a non-negative integer")
		}
		if n > models.MaxTimelineLimit {
			return echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("invalid limit: must be at most %d", models.MaxTimelineLimit))
		}
		opts.Limit = n
	}

	opts.PageToken = c.QueryParam("pageToken")

	if v := c.QueryParam("types"); v != "" {
		for _, raw := range strings.Split(v, ",") {
			t := models.TimelineItemType(strings.TrimSpace(raw))
			if !models.ValidItemType(t) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid types: unknown item type "+string(t))
			}
			opts.Types = append(opts.Types, t)
		}
	}

	if v := c.QueryParam("includeRelated"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid includeRelated: must be a boolean")
		}
		opts.IncludeRelated = b
	}

	page, err := s.timelineService.GetTimelineItems(c.Request().Context(), sessionID, opts)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, page)
}
