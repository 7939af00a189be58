package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by code and message, so wrapped sentinels
// still compare equal after a cause is attached.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithCause returns a copy of a sentinel carrying err as its cause.
func (e *DomainError) WithCause(err error) *DomainError {
	return NewDomainErrorWithCause(e.Code, e.Message, err)
}

// IsCode reports whether err carries a DomainError with the given code.
func IsCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeUnsupportedInput = "UNSUPPORTED_INPUT"
	ErrCodeConfiguration    = "CONFIGURATION_ERROR"
	ErrCodeTransient        = "TRANSIENT_PROVIDER_ERROR"
	ErrCodePartialBatch     = "PARTIAL_BATCH"
	ErrCodeRetrieval        = "RETRIEVAL_ERROR"
)

// Validation errors
var (
	ErrEmptyQuery           = NewDomainError(ErrCodeValidation, "query is required")
	ErrEmptyText            = NewDomainError(ErrCodeValidation, "text is required")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidURL           = NewDomainError(ErrCodeValidation, "invalid url")
)

// Not found errors
var (
	ErrSessionNotFound = NewDomainError(ErrCodeNotFound, "session not found")
)

// Authorization errors
var (
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// Input errors
var (
	ErrUnsupportedFormat = NewDomainError(ErrCodeUnsupportedInput, "unsupported document format")
	ErrUnparseable       = NewDomainError(ErrCodeUnsupportedInput, "document could not be parsed")
)

// Configuration errors
var (
	ErrVectorStoreNotConfigured = NewDomainError(ErrCodeConfiguration, "vector store not configured")
	ErrEmbeddingNotConfigured   = NewDomainError(ErrCodeConfiguration, "embedding provider not configured")
	ErrGeneratorNotConfigured   = NewDomainError(ErrCodeConfiguration, "generative model not configured")
	ErrSourceNotConfigured      = NewDomainError(ErrCodeConfiguration, "document source not configured")
	ErrMissingCredentials       = NewDomainError(ErrCodeConfiguration, "missing credentials")
)

// Provider errors
var (
	ErrProviderUnavailable = NewDomainError(ErrCodeTransient, "provider unavailable")
	ErrSourceUnavailable   = NewDomainError(ErrCodeTransient, "document source unavailable")
	ErrRetrievalFailed     = NewDomainError(ErrCodeRetrieval, "all retrieval variants failed")
)

// NewPartialBatchError reports a failed upsert batch covering records [start, end).
func NewPartialBatchError(start, end int, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodePartialBatch, fmt.Sprintf("upsert failed for records %d-%d", start, end), err)
}

// NewTransientError wraps a provider failure that may succeed on retry.
func NewTransientError(provider string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeTransient, provider+" request failed", err)
}
