package toolexec

import (
	"errors"
	"fmt"

	"github.com/codeready-toolchain/workbench/pkg/models"
)

var (
	// ErrNotFound is returned when a referenced execution, permission,
	// or preview id is unknown.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput is returned when an operation is called with
	// missing required fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyResolved is returned when resolving a permission
	// request that has already been granted or denied.
	ErrAlreadyResolved = errors.New("permission request already resolved")

	// ErrPreviewGenerationFailed is the sentinel preview generators
	// report through FailPreview.
	ErrPreviewGenerationFailed = errors.New("preview generation failed")
)

// IllegalTransitionError is returned when an execution's current status
// forbids the requested state-machine move.
type IllegalTransitionError struct {
	ExecutionID string
	From        models.ExecutionStatus
	To          models.ExecutionStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition for execution %s: %s -> %s", e.ExecutionID, e.From, e.To)
}

// IsIllegalTransition checks if an error is an illegal transition error.
func IsIllegalTransition(err error) bool {
	var ite *IllegalTransitionError
	return errors.As(err, &ite)
}
