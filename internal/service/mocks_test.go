package service

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/cloo-solutions/ragsync/internal/pagination"
	"github.com/stretchr/testify/mock"
)

// MockVectorStore mocks the vector index
type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) Upsert(ctx context.Context, namespace string, records []domain.VectorRecord) error {
	args := m.Called(ctx, namespace, records)
	return args.Error(0)
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
	args := m.Called(ctx, namespace, ids)
	return args.Error(0)
}

func (m *MockVectorStore) DeleteByFilter(ctx context.Context, namespace string, filter map[string]any) error {
	args := m.Called(ctx, namespace, filter)
	return args.Error(0)
}

func (m *MockVectorStore) Stats(ctx context.Context) (domain.IndexStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.IndexStats), args.Error(1)
}

// MockGenerator mocks the chat model
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, messages []domain.Message) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

func (m *MockGenerator) GenerateStream(ctx context.Context, messages []domain.Message, onDelta func(string) error) (string, error) {
	args := m.Called(ctx, messages, onDelta)
	return args.String(0), args.Error(1)
}

// MockReranker mocks a relevance scorer
type MockReranker struct {
	mock.Mock
}

func (m *MockReranker) Rerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	args := m.Called(ctx, query, documents)
	if fn, ok := args.Get(0).(func(context.Context, string, []string) []float64); ok {
		return fn(ctx, query, documents), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

// MockDocumentSource mocks a folder tree provider
type MockDocumentSource struct {
	mock.Mock
}

func (m *MockDocumentSource) ListChildren(ctx context.Context, folderID string) ([]domain.Document, error) {
	args := m.Called(ctx, folderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Document), args.Error(1)
}

func (m *MockDocumentSource) Download(ctx context.Context, doc domain.Document) ([]byte, string, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

// MockExtractor mocks the parse pool
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, data []byte, format domain.Format, mimeType string) (string, error) {
	args := m.Called(ctx, data, format, mimeType)
	return args.String(0), args.Error(1)
}

// MockSessionStore mocks conversation memory
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Append(ctx context.Context, sessionID string, msgs ...domain.Message) error {
	args := m.Called(ctx, sessionID, msgs)
	return args.Error(0)
}

func (m *MockSessionStore) History(ctx context.Context, sessionID string) ([]domain.Message, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}

func (m *MockSessionStore) Clear(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionStore) List(ctx context.Context, cursor string, limit int) (*pagination.PageResult[domain.SessionInfo], error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.PageResult[domain.SessionInfo]), args.Error(1)
}

// wordEmbedder hashes words into a small bag-of-words vector, so texts that
// share words land close together.
type wordEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  map[string]error
}

const wordDims = 512

func (e *wordEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	for needle, err := range e.fail {
		if strings.Contains(text, needle) {
			return nil, err
		}
	}
	vec := make([]float32, wordDims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(w, ".,:;[]")))
		vec[h.Sum32()%wordDims]++
	}
	return vec, nil
}

func (e *wordEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
