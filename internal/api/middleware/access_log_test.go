package middleware

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})
	return &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) accessLogEntry {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry accessLogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestAccessLog_RecordsCallerAndStatus(t *testing.T) {
	buf := captureLog(t)
	validator := NewStaticKeys([]string{"secret"})

	handler := RequestID(AccessLog(APIKeyAuth(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("ok"))
	}))))

	req := httptest.NewRequest(http.MethodPost, "/chat", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set(KeyIDHeader, "spoofed")
	req.Header.Set(RequestIDHeader, "req-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := lastEntry(t, buf)
	assert.Equal(t, "POST", entry.Method)
	assert.Equal(t, "/chat", entry.Path)
	assert.Equal(t, http.StatusAccepted, entry.Status)
	assert.Equal(t, 2, entry.Bytes)
	assert.Equal(t, "req-1", entry.RequestID)
	assert.Equal(t, KeyID("secret"), entry.KeyID)
	assert.False(t, entry.Stream)
}

func TestAccessLog_RouteUsesPattern(t *testing.T) {
	buf := captureLog(t)

	r := chi.NewRouter()
	r.Use(AccessLog)
	r.Get("/chat/history/{session_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/chat/history/abc-123", nil))

	entry := lastEntry(t, buf)
	assert.Equal(t, "/chat/history/{session_id}", entry.Route)
	assert.Equal(t, "/chat/history/abc-123", entry.Path)
}

func TestAccessLog_MarksStreams(t *testing.T) {
	buf := captureLog(t)

	handler := AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: [DONE]\n\n"))
		w.(http.Flusher).Flush()
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/stream", nil))

	assert.True(t, rec.Flushed)
	entry := lastEntry(t, buf)
	assert.True(t, entry.Stream)
	assert.Equal(t, http.StatusOK, entry.Status)
}

func TestAccessLog_HealthOnlyOnFailure(t *testing.T) {
	buf := captureLog(t)

	AccessLog(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, buf.String())

	failing := AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(KeyIDHeader, "spoofed")
	failing.ServeHTTP(httptest.NewRecorder(), req)

	entry := lastEntry(t, buf)
	assert.Equal(t, http.StatusServiceUnavailable, entry.Status)
	assert.Empty(t, entry.KeyID)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", clientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", clientIP(req))
}
