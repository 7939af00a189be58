package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	err := NewDomainError(ErrCodeValidation, "query is required")
	assert.Equal(t, "[VALIDATION_ERROR] query is required", err.Error())

	wrapped := NewDomainErrorWithCause(ErrCodeTransient, "vector store request failed", errors.New("timeout"))
	assert.Equal(t, "[TRANSIENT_PROVIDER_ERROR] vector store request failed: timeout", wrapped.Error())
}

func TestDomainError_IsSentinelWithCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("sync: %w", ErrSourceUnavailable.WithCause(cause))

	assert.True(t, errors.Is(err, ErrSourceUnavailable))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrRetrievalFailed))
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("index: %w", NewPartialBatchError(100, 200, errors.New("503")))

	assert.True(t, IsCode(err, ErrCodePartialBatch))
	assert.False(t, IsCode(err, ErrCodeValidation))
	assert.False(t, IsCode(errors.New("plain"), ErrCodePartialBatch))
	assert.Contains(t, err.Error(), "100-200")
}
