package entity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Field: "phone", Message: "required"}
	assert.Equal(t, "validation error on field 'phone': required", err.Error())
}

func TestIsValidationError(t *testing.T) {
	base := &ValidationError{Field: "endpoint", Message: "invalid"}

	assert.True(t, IsValidationError(base))
	assert.True(t, IsValidationError(fmt.Errorf("register: %w", base)))
	assert.False(t, IsValidationError(errors.New("plain")))
	assert.False(t, IsValidationError(nil))
}
