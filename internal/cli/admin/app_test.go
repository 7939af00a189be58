package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloo-solutions/ragsync/internal/config"
	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Port:                 "8080",
		MaxBodyBytes:         1 << 20,
		VectorStore:          config.VectorStoreMemory,
		SessionStore:         config.SessionStoreMemory,
		SessionWindow:        20,
		SessionTTL:           time.Hour,
		SessionSweepInterval: time.Minute,
		EmbeddingDimensions:  1536,
		Reranker:             config.RerankerLLM,
		ChunkSize:            1000,
		ChunkOverlap:         200,
	}
}

func TestBuild_MemoryBackends(t *testing.T) {
	app, err := Build(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer app.Close()

	c := app.Components()
	assert.Equal(t, config.VectorStoreMemory, c.VectorStore)
	assert.Equal(t, config.SessionStoreMemory, c.Sessions)
	assert.Equal(t, "none", c.Reranker, "llm reranker needs a chat model")
	assert.False(t, c.Embeddings)
	assert.False(t, c.Generator)
	assert.True(t, c.Drive)
	assert.False(t, c.S3)
}

func TestBuild_PineconeWithoutCredentials(t *testing.T) {
	cfg := memoryConfig()
	cfg.VectorStore = config.VectorStorePinecone

	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, "none", app.Components().VectorStore)

	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vectors/stats", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBuild_HTTPReranker(t *testing.T) {
	cfg := memoryConfig()
	cfg.Reranker = config.RerankerHTTP
	cfg.RerankURL = "http://rerank.internal/v1/rerank"

	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, config.RerankerHTTP, app.Components().Reranker)
}

func TestApp_Router(t *testing.T) {
	cfg := memoryConfig()
	cfg.APIKeys = []string{"secret"}

	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()
	router := app.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health struct {
		Data struct {
			Status     string `json:"status"`
			Components struct {
				VectorStore string `json:"vector_store"`
			} `json:"components"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Data.Status)
	assert.Equal(t, "memory", health.Data.Components.VectorStore)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vectors/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/vectors/stats", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApp_DriveFactoryNeedsCredentials(t *testing.T) {
	app, err := Build(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer app.Close()

	_, err = app.newDrive(context.Background(), "")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeConfiguration))
}

func TestApp_Workers(t *testing.T) {
	cfg := memoryConfig()
	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	workers, err := app.Workers()
	require.NoError(t, err)
	assert.Len(t, workers, 1)

	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
targets:
  - name: board
    source: drive
    folder_id: f1
    target_id: m1
`), 0600))
	cfg.SyncTargetsFile = path
	cfg.SessionTTL = 0

	workers, err = app.Workers()
	require.NoError(t, err)
	assert.Len(t, workers, 1)

	cfg.SyncTargetsFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = app.Workers()
	assert.Error(t, err)
}

func TestFilterTargets(t *testing.T) {
	targets := []config.SyncTarget{{Name: "a"}, {Name: "b"}, {Name: "c"}}

	all, err := filterTargets(targets, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	some, err := filterTargets(targets, []string{"c", "a"})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "c", some[0].Name)
	assert.Equal(t, "a", some[1].Name)

	_, err = filterTargets(targets, []string{"z"})
	assert.Error(t, err)
}
