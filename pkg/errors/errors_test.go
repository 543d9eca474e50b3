package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Wrap(cause, ErrModelInvalid.Code, "while adding constraints")

	assert.Equal(t, "MODEL_INVALID", err.Code)
	assert.Contains(t, err.Error(), "boom")
	assert.True(t, stderrors.Is(err, cause))
}

func TestFromErrorPassesThroughTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", ErrTimeout)
	got := FromError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, ErrTimeout.Code, got.Code)

	plain := FromError(fmt.Errorf("plain"))
	assert.Equal(t, ErrConfig.Code, plain.Code)

	assert.Nil(t, FromError(nil))
}

func TestCloneOverridesMessage(t *testing.T) {
	c := Clone(ErrInfeasible, "no timetable for term 3")
	assert.Equal(t, ErrInfeasible.Code, c.Code)
	assert.Equal(t, "no timetable for term 3", c.Message)
	assert.Equal(t, ErrInfeasible.Message, Clone(ErrInfeasible, "").Message)
}

func TestPreValidationErrorUnwraps(t *testing.T) {
	err := &PreValidationError{Messages: []string{"class A over capacity"}}
	assert.True(t, stderrors.Is(err, ErrPreValidation))
	assert.Contains(t, err.Error(), "class A over capacity")
}
