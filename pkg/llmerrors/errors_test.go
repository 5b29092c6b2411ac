package llmerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryability(t *testing.T) {
	retryable := []ErrorType{ErrorTypeRateLimit, ErrorTypeTransient, ErrorTypeEmptyResponse, ErrorTypeUnknown}
	for _, et := range retryable {
		assert.True(t, NewError(et, "x").IsRetryable(), et.String())
	}

	terminal := []ErrorType{ErrorTypeAuth, ErrorTypeBadPrompt, ErrorTypeExhausted}
	for _, et := range terminal {
		assert.False(t, NewError(et, "x").IsRetryable(), et.String())
		assert.Zero(t, NewError(et, "x").GetRetryConfig().MaxRetries, et.String())
	}
}

func TestErrorMessageFormats(t *testing.T) {
	withMessage := NewError(ErrorTypeRateLimit, "too many requests")
	assert.Equal(t, "LLM error (rate_limit): too many requests", withMessage.Error())

	withCause := &Error{Type: ErrorTypeTransient, Err: errors.New("connection reset")}
	assert.Equal(t, "LLM error (transient): connection reset", withCause.Error())

	withStatus := &Error{Type: ErrorTypeAuth, StatusCode: 401}
	assert.Equal(t, "LLM error (auth): status 401", withStatus.Error())
}

func TestUnwrapAndClassification(t *testing.T) {
	cause := errors.New("root cause")
	err := NewErrorWithCause(ErrorTypeTransient, cause, "wrapped")

	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(err, ErrorTypeTransient))
	assert.False(t, Is(err, ErrorTypeAuth))
	assert.Equal(t, ErrorTypeTransient, TypeOf(err))

	// Classification survives further wrapping.
	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, Is(wrapped, ErrorTypeTransient))
	assert.Equal(t, ErrorTypeTransient, TypeOf(wrapped))

	// Plain errors are unknown.
	assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("plain")))
	assert.False(t, Is(errors.New("plain"), ErrorTypeTransient))
}

func TestNewErrorWithStatus(t *testing.T) {
	err := NewErrorWithStatus(ErrorTypeRateLimit, 429, "quota exceeded")
	assert.Equal(t, 429, err.StatusCode)
	assert.Equal(t, ErrorTypeRateLimit, err.Type)
}

func TestGetRetryConfigFallsBackToUnknown(t *testing.T) {
	err := &Error{Type: ErrorType(99)}
	require.Equal(t, DefaultRetryConfigs[ErrorTypeUnknown], err.GetRetryConfig())
}
