package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/workbench/pkg/agent"
	"github.com/codeready-toolchain/workbench/pkg/config"
	"github.com/codeready-toolchain/workbench/pkg/events"
	"github.com/codeready-toolchain/workbench/pkg/services"
	"github.com/codeready-toolchain/workbench/pkg/timeline"
)

// Server is the HTTP surface of the workstation: timeline reads,
// message submission, session management, the WebSocket endpoint, and
// health.
type Server struct {
	echo *echo.Echo
	cfg  *config.Config

	timelineService *services.TimelineService
	runtime         *agent.Runtime
	store           *timeline.Store
	connManager     *events.ConnectionManager

	srv *http.Server
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(cfg *config.Config, timelineService *services.TimelineService, runtime *agent.Runtime, store *timeline.Store, connManager *events.ConnectionManager) *Server {
	e := echo.New()

	s := &Server{
		echo:            e,
		cfg:             cfg,
		timelineService: timelineService,
		runtime:         runtime,
		store:           store,
		connManager:     connManager,
	}

	e.Use(requestLogger())
	e.Use(securityHeaders())

	e.GET("/health", s.healthHandler)
	e.GET("/ws", s.wsHandler)

	e.GET("/api/v1/sessions", s.listSessionsHandler)
	e.POST("/api/v1/sessions", s.createSessionHandler)
	e.GET("/api/v1/sessions/:id", s.getSessionHandler)
	e.POST("/api/v1/sessions/:id/messages", s.postMessageHandler)
	e.GET("/api/v1/sessions/:id/timeline", s.getTimelineHandler)

	return s
}

// Start begins serving on addr and blocks until the listener closes.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
