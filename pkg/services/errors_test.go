package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("sessionId", "cannot be empty")

	assert.Equal(t, "validation error on field 'sessionId': cannot be empty", err.Error())
	assert.True(t, IsValidationError(err))
	assert.True(t, IsValidationError(fmt.Errorf("ingest failed: %w", err)))
}

func TestIsValidationError_OtherErrors(t *testing.T) {
	assert.False(t, IsValidationError(ErrNotFound))
	assert.False(t, IsValidationError(errors.New("boom")))
	assert.False(t, IsValidationError(nil))
}
