package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	withField := NewValidationError("server", "port", "value", ErrInvalidValue)
	assert.Equal(t, "server 'port': field 'value': invalid field value", withField.Error())
	assert.ErrorIs(t, withField, ErrInvalidValue)

	withoutField := NewValidationError("system", "data_dir", "", ErrMissingRequiredField)
	assert.Equal(t, "system 'data_dir': missing required field", withoutField.Error())
	assert.ErrorIs(t, withoutField, ErrMissingRequiredField)
}

func TestLoadError(t *testing.T) {
	cause := errors.New("permission denied")
	err := NewLoadError("workbench.yaml", cause)

	assert.Equal(t, "failed to load workbench.yaml: permission denied", err.Error())
	assert.ErrorIs(t, err, cause)
}
