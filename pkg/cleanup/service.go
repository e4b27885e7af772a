// Package cleanup provides background maintenance of persisted timelines.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/workbench/pkg/config"
	"github.com/codeready-toolchain/workbench/pkg/timeline"
)

// Service periodically compacts session timeline logs. Every upsert
// appends a line, so long sessions accumulate superseded records until
// the log is rewritten with one line per live item.
//
// Compaction is idempotent and safe to run while sessions are active;
// the store serializes it against writers per session.
type Service struct {
	config *config.CompactionConfig
	store  *timeline.Store

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new compaction service.
func NewService(cfg *config.CompactionConfig, store *timeline.Store) *Service {
	return &Service{
		config: cfg,
		store:  store,
	}
}

// Start launches the background compaction loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Compaction service started",
		"min_records", s.config.MinRecords,
		"interval", s.config.Interval)
}

// Stop signals the compaction loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Compaction service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.compactAll(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.compactAll(ctx)
		}
	}
}

func (s *Service) compactAll(ctx context.Context) {
	sessions, err := s.store.ListSessions()
	if err != nil {
		slog.Error("Compaction: listing sessions failed", "error", err)
		return
	}

	compacted := 0
	for _, sessionID := range sessions {
		if ctx.Err() != nil {
			return
		}
		done, err := s.store.CompactSession(sessionID, s.config.MinRecords)
		if err != nil {
			slog.Error("Compaction: session compaction failed",
				"session_id", sessionID, "error", err)
			continue
		}
		if done {
			compacted++
		}
	}
	if compacted > 0 {
		slog.Info("Compaction: rewrote session logs", "count", compacted)
	}
}
