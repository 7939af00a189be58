package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/cloo-solutions/ragsync/internal/domain"
)

// retryAfterSeconds is advertised on upstream provider failures.
const retryAfterSeconds = "5"

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse is the body of every failed request. Code is one of the
// domain error codes, or empty for transport-level rejections.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes an error JSON response without a code.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DecodeJSON reads the request body into dst. On failure it writes a 400,
// or a 413 when the body limit was hit, and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	JSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: domain.ErrCodeValidation})
	return false
}

// DomainErrorToHTTP maps domain errors to HTTP status codes. Wrapped errors
// are unwrapped to the nearest DomainError.
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	code, ok := errorCode(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch code {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrCodeUnsupportedInput:
		return http.StatusUnsupportedMediaType
	case domain.ErrCodeConfiguration:
		return http.StatusServiceUnavailable
	case domain.ErrCodeTransient, domain.ErrCodePartialBatch, domain.ErrCodeRetrieval:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// HandleError writes the response for err. Domain errors keep their message
// and code; anything else is logged and answered with a generic 500.
func HandleError(w http.ResponseWriter, err error) {
	status := DomainErrorToHTTP(err)

	code, ok := errorCode(err)
	if !ok {
		log.Printf("api: internal error: %v", err)
		JSON(w, status, ErrorResponse{Error: "internal server error", Code: domain.ErrCodeInternalError})
		return
	}
	if code == domain.ErrCodeTransient {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	JSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}

func errorCode(err error) (string, bool) {
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return "", false
	}
	return domainErr.Code, true
}
