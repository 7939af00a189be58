package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuthValidator struct {
	mock.Mock
}

func (m *MockAuthValidator) ValidateAPIKey(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func TestAPIKeyAuth_Success(t *testing.T) {
	mockValidator := new(MockAuthValidator)
	mockValidator.On("ValidateAPIKey", mock.Anything, "rs_live_0123456789").Return("key_abc", nil)

	var capturedKeyID string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedKeyID = GetKeyID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	wrappedHandler := APIKeyAuth(mockValidator)(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer rs_live_0123456789")
	w := httptest.NewRecorder()

	wrappedHandler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "key_abc", capturedKeyID)
	assert.Equal(t, "key_abc", req.Header.Get(KeyIDHeader))
	mockValidator.AssertExpectations(t)
}

func TestAPIKeyAuth_XAPIKeyHeader(t *testing.T) {
	mockValidator := new(MockAuthValidator)
	mockValidator.On("ValidateAPIKey", mock.Anything, "rs_live_0123456789").Return("key_abc", nil)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "rs_live_0123456789")
	w := httptest.NewRecorder()

	APIKeyAuth(mockValidator)(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAPIKeyAuth_MissingHeader(t *testing.T) {
	mockValidator := new(MockAuthValidator)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	APIKeyAuth(mockValidator)(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing authorization header")
}

func TestAPIKeyAuth_InvalidFormat(t *testing.T) {
	mockValidator := new(MockAuthValidator)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc123")
	w := httptest.NewRecorder()

	APIKeyAuth(mockValidator)(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid authorization format")
}

func TestAPIKeyAuth_ValidationFails(t *testing.T) {
	mockValidator := new(MockAuthValidator)
	mockValidator.On("ValidateAPIKey", mock.Anything, "bad").Return("", errors.New("invalid key"))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	w := httptest.NewRecorder()

	APIKeyAuth(mockValidator)(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid api key")
	mockValidator.AssertExpectations(t)
}

func TestStaticKeys(t *testing.T) {
	keys := NewStaticKeys([]string{" alpha ", "", "beta"})

	id, err := keys.ValidateAPIKey(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, KeyID("alpha"), id)
	assert.NotContains(t, id, "alpha")

	_, err = keys.ValidateAPIKey(context.Background(), "beta")
	require.NoError(t, err)

	_, err = keys.ValidateAPIKey(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidAPIKey)

	_, err = keys.ValidateAPIKey(context.Background(), "gamma")
	assert.ErrorIs(t, err, domain.ErrInvalidAPIKey)
}

func TestGetKeyID_MissingContext(t *testing.T) {
	assert.Equal(t, "", GetKeyID(context.Background()))
}
