// Workbench server — serves the HTTP API, maintains session timelines,
// and fans out live events to connected clients.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/workbench/pkg/agent"
	"github.com/codeready-toolchain/workbench/pkg/api"
	"github.com/codeready-toolchain/workbench/pkg/cleanup"
	"github.com/codeready-toolchain/workbench/pkg/config"
	"github.com/codeready-toolchain/workbench/pkg/events"
	"github.com/codeready-toolchain/workbench/pkg/masking"
	"github.com/codeready-toolchain/workbench/pkg/services"
	"github.com/codeready-toolchain/workbench/pkg/timeline"
	"github.com/codeready-toolchain/workbench/pkg/toolexec"
	"github.com/codeready-toolchain/workbench/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Parse command-line flags
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	slog.Info("Starting workbench",
		"version", version.Full(),
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Open the timeline store
	store, err := timeline.NewStore(cfg.System.DataDir)
	if err != nil {
		slog.Error("Failed to open timeline store", "error", err)
		os.Exit(1)
	}
	slog.Info("Timeline store ready", "data_dir", cfg.System.DataDir)

	// 3. Masking service and the tool execution manager
	maskingService := masking.NewService(masking.Config{
		Enabled:        cfg.Masking.Enabled,
		CustomPatterns: maskingPatterns(cfg.Masking.CustomPatterns),
	})
	previews := toolexec.NewPreviewRegistry()
	tem := toolexec.NewManager(previews, maskingService)

	// 4. Agent runtime (session manager + event bus)
	bus := agent.NewBus()
	runtime := agent.NewRuntime(agent.NewManager(), tem, bus)
	runtime.Start(ctx)
	defer runtime.Stop()

	// 5. Streaming infrastructure
	connManager := events.NewConnectionManager(cfg.Server.WSWriteTimeout)
	broadcaster := events.NewBroadcaster(connManager)
	broadcaster.Start(ctx)
	defer broadcaster.Stop()

	// 6. Timeline service, wired to every producer
	timelineService := services.NewTimelineService(store, tem, runtime, bus, broadcaster)
	timelineService.Start(ctx)
	defer timelineService.Stop()

	// Replay requests over the WebSocket use the same read path as HTTP.
	connManager.SetReplayQuerier(timelineService)
	slog.Info("Timeline service started")

	// 7. Timeline log compaction
	compactor := cleanup.NewService(cfg.Compaction, store)
	if cfg.Compaction.Enabled {
		compactor.Start(ctx)
		defer compactor.Stop()
	}

	// 8. Start HTTP server (non-blocking)
	httpServer := api.NewServer(cfg, timelineService, runtime, store, connManager)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%s",
			cfg.Server.Host, getEnv("HTTP_PORT", strconv.Itoa(cfg.Server.Port)))
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Workbench started successfully")

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: stop the listener first, then the event
	// pipeline through the deferred Stops in reverse wiring order.
	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}

// maskingPatterns converts config file patterns to the masking service type.
func maskingPatterns(in []config.MaskingPattern) []masking.CustomPattern {
	out := make([]masking.CustomPattern, 0, len(in))
	for _, p := range in {
		out = append(out, masking.CustomPattern{
			Name:        p.Name,
			Pattern:     p.Pattern,
			Replacement: p.Replacement,
			Description: p.Description,
		})
	}
	return out
}
