package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/cloo-solutions/ragsync/internal/pagination"
	"github.com/cloo-solutions/ragsync/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) Ask(ctx context.Context, input service.ChatInput) (*service.ChatResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChatResult), args.Error(1)
}

func (m *MockChatService) Stream(ctx context.Context, input service.ChatInput, emit func(delta string) error) (*service.ChatResult, error) {
	args := m.Called(ctx, input, emit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChatResult), args.Error(1)
}

func (m *MockChatService) History(ctx context.Context, sessionID string) ([]domain.Message, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}

func (m *MockChatService) ClearHistory(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockChatService) ListSessions(ctx context.Context, cursor string, limit int) (*pagination.PageResult[domain.SessionInfo], error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.PageResult[domain.SessionInfo]), args.Error(1)
}

type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Retrieve(ctx context.Context, input service.RetrieveInput) ([]service.RetrievedChunk, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.RetrievedChunk), args.Error(1)
}

type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) Sync(ctx context.Context, src service.DocumentSource, input service.SyncInput) (*domain.SyncSummary, error) {
	args := m.Called(ctx, src, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SyncSummary), args.Error(1)
}

type MockWebIngester struct {
	mock.Mock
}

func (m *MockWebIngester) Ingest(ctx context.Context, input service.WebIngestInput) (*service.WebIngestResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.WebIngestResult), args.Error(1)
}

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, data []byte, format domain.Format, mimeType string) (string, error) {
	args := m.Called(ctx, data, format, mimeType)
	return args.String(0), args.Error(1)
}

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) EmbedWithStatus(ctx context.Context, text string) ([]float32, bool, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).([]float32), args.Bool(1), args.Error(2)
}

type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) Upsert(ctx context.Context, namespace string, records []domain.VectorRecord) error {
	return m.Called(ctx, namespace, records).Error(0)
}

func (m *MockVectorStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.Match, error) {
	args := m.Called(ctx, namespace, vector, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Match), args.Error(1)
}

func (m *MockVectorStore) Fetch(ctx context.Context, namespace string, ids []string) (map[string]domain.VectorRecord, error) {
	args := m.Called(ctx, namespace, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.VectorRecord), args.Error(1)
}

func (m *MockVectorStore) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	return m.Called(ctx, namespace, ids).Error(0)
}

func (m *MockVectorStore) DeleteByFilter(ctx context.Context, namespace string, filter map[string]any) error {
	return m.Called(ctx, namespace, filter).Error(0)
}

func (m *MockVectorStore) Stats(ctx context.Context) (domain.IndexStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.IndexStats), args.Error(1)
}

type stubSource struct{ name string }

func (stubSource) ListChildren(ctx context.Context, folderID string) ([]domain.Document, error) {
	return nil, nil
}

func (stubSource) Download(ctx context.Context, doc domain.Document) ([]byte, string, error) {
	return nil, "", nil
}

func jsonRequest(method, url, body string) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// decodeData unwraps the {"data": ...} envelope into out.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}
