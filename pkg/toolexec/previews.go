package toolexec

import (
	"fmt"
	"sync"

	"github.com/codeready-toolchain/workbench/pkg/models"
)

// PreviewRegistry stores preview records addressable by preview id and
// by execution id. Registration races with execution completion; either
// order is valid — the timeline service patches already-persisted items
// when a preview arrives after the Completed event.
type PreviewRegistry struct {
	mu          sync.RWMutex
	previews    map[string]*models.Preview
	byExecution map[string]string // execution id -> preview id
}

// NewPreviewRegistry creates an empty preview registry.
func NewPreviewRegistry() *PreviewRegistry {
	return &PreviewRegistry{
		previews:    make(map[string]*models.Preview),
		byExecution: make(map[string]string),
	}
}

// Register stores a preview record. A second preview for the same
// execution replaces the first as the execution's preview.
func (r *PreviewRegistry) Register(preview *models.Preview) error {
	if preview == nil || preview.ID == "" {
		return fmt.Errorf("%w: preview id is required", ErrInvalidInput)
	}
	if preview.ExecutionID == "" {
		return fmt.Errorf("%w: preview executionId is required", ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.previews[preview.ID] = preview.Clone()
	r.byExecution[preview.ExecutionID] = preview.ID
	return nil
}

// Get returns a copy of the preview with the given id.
func (r *PreviewRegistry) Get(id string) (*models.Preview, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.previews[id]
	if !ok {
		return nil, fmt.Errorf("preview %s: %w", id, ErrNotFound)
	}
	return p.Clone(), nil
}

// GetByExecution returns a copy of the preview attached to the given
// execution, or nil when none has been registered.
func (r *PreviewRegistry) GetByExecution(executionID string) *models.Preview {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byExecution[executionID]
	if !ok {
		return nil
	}
	return r.previews[id].Clone()
}
