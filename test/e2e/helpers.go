//go:build e2e

package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/ragsync/internal/cli/admin"
	"github.com/cloo-solutions/ragsync/internal/config"
	"github.com/cloo-solutions/ragsync/internal/database"
	s3source "github.com/cloo-solutions/ragsync/internal/source/s3"
	"github.com/cloo-solutions/ragsync/internal/testutil"
)

const (
	e2eAPIKey     = "rgs_e2e_key"
	e2eBucket     = "ragsync-e2e"
	e2eDimensions = 1536
	fakeAnswer    = "Revenue grew twelve percent in the third quarter."
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	RustFSC    *testutil.RustFSContainer
	OpenAI     *httptest.Server
	Server     *httptest.Server
	App        *admin.App
	Bucket     *s3source.Client
	BinaryDir  string
	HTTPClient *http.Client
}

// SetupE2EEnv starts Postgres and RustFS, migrates the schema and serves the
// fully wired API with pgvector records and Postgres sessions.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	if err := database.Migrate(pgC.ConnectionString(), "file://../../migrations"); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	bucket, err := s3source.NewClient(ctx, s3source.ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSAccessKey,
		SecretAccessKey: testutil.RustFSSecretKey,
		Bucket:          e2eBucket,
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := bucket.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	fake := httptest.NewServer(fakeOpenAI())

	cfg := &config.Config{
		APIKeys:              []string{e2eAPIKey},
		MaxBodyBytes:         10 << 20,
		RateLimitRPS:         1000,
		RateLimitBurst:       1000,
		Environment:          "test",
		OpenAIAPIKey:         "sk-fake",
		OpenAIBaseURL:        fake.URL + "/v1",
		EmbeddingModel:       "text-embedding-3-small",
		EmbeddingDimensions:  e2eDimensions,
		ChatModel:            "gpt-4o-mini",
		VectorStore:          config.VectorStorePgvector,
		DatabaseURL:          pgC.ConnectionString(),
		SessionStore:         config.SessionStorePostgres,
		SessionWindow:        20,
		SessionTTL:           time.Hour,
		SessionSweepInterval: time.Minute,
		EmbedCacheSize:       100,
		EmbedMaxInputChars:   8000,
		ChunkSize:            1000,
		ChunkOverlap:         200,
		RetrievalVariants:    0,
		RetrievalKInitial:    10,
		RetrievalKFinal:      5,
		Reranker:             config.RerankerNone,
		ParseWorkers:         2,
		S3Endpoint:           s3C.Endpoint(),
		S3AccessKey:          testutil.RustFSAccessKey,
		S3SecretKey:          testutil.RustFSSecretKey,
		S3Bucket:             e2eBucket,
		S3Region:             "us-east-1",
	}

	app, err := admin.Build(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		OpenAI:     fake,
		Server:     httptest.NewServer(app.Router()),
		App:        app,
		Bucket:     bucket,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
	if e.App != nil {
		e.App.Close()
	}
	if e.OpenAI != nil {
		e.OpenAI.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// PutDocument uploads a document into the test bucket.
func (e *E2ETestEnv) PutDocument(key, content, contentType string) {
	if err := e.Bucket.PutObject(e.Ctx, key, strings.NewReader(content), contentType); err != nil {
		e.T.Fatalf("failed to upload %s: %v", key, err)
	}
}

// BuildBinaries builds the ragsync and ragsyncd binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "ragsync-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"ragsync", "ragsyncd"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunRagsync runs the ragsync CLI against the test server.
func (e *E2ETestEnv) RunRagsync(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "ragsync"), args...)
	cmd.Dir = e.T.TempDir()
	cmd.Env = append(os.Environ(),
		"HOME="+cmd.Dir,
		"XDG_CONFIG_HOME="+cmd.Dir,
		fmt.Sprintf("RAGSYNC_API_KEY=%s", e2eAPIKey),
		fmt.Sprintf("RAGSYNC_API_URL=%s", e.Server.URL),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	StatusCode int
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error,omitempty"`
	Code       string          `json:"code,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body, authToken)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path, authToken string) (*APIResponse, error) {
	return e.doRequest(http.MethodDelete, path, nil, authToken)
}

// MustPost posts with the test key and decodes the data envelope into v.
func (e *E2ETestEnv) MustPost(path string, body, v interface{}) {
	e.T.Helper()
	resp, err := e.Post(path, body, e2eAPIKey)
	if err != nil {
		e.T.Fatalf("POST %s: %v", path, err)
	}
	decodeInto(e.T, resp, v)
}

// MustGet gets with the test key and decodes the data envelope into v.
func (e *E2ETestEnv) MustGet(path string, v interface{}) {
	e.T.Helper()
	resp, err := e.Get(path, e2eAPIKey)
	if err != nil {
		e.T.Fatalf("GET %s: %v", path, err)
	}
	decodeInto(e.T, resp, v)
}

func decodeInto(t *testing.T, resp *APIResponse, v interface{}) {
	t.Helper()
	if v == nil {
		return
	}
	if err := json.Unmarshal(resp.Data, v); err != nil {
		t.Fatalf("failed to decode data: %v\n%s", err, resp.Data)
	}
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.Server.URL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	apiResp := APIResponse{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return &apiResp, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode >= 400 {
		return &apiResp, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// Stream posts to an SSE endpoint and returns the payload of every data frame.
func (e *E2ETestEnv) Stream(path string, body interface{}) []string {
	e.T.Helper()
	jsonData, err := json.Marshal(body)
	if err != nil {
		e.T.Fatalf("failed to marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, e.Server.URL+path, bytes.NewReader(jsonData))
	if err != nil {
		e.T.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+e2eAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("stream request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		e.T.Fatalf("stream returned %d: %s", resp.StatusCode, b)
	}

	var frames []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if data, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
			frames = append(frames, data)
		}
	}
	return frames
}

// fakeOpenAI serves the embeddings and chat completion endpoints. Embeddings
// are hashed bags of words, so texts sharing terms score as similar.
func fakeOpenAI() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data := make([]map[string]interface{}, len(req.Input))
		for i, text := range req.Input {
			data[i] = map[string]interface{}{"object": "embedding", "index": i, "embedding": bagOfWords(text)}
		}
		writeJSON(w, map[string]interface{}{"object": "list", "data": data, "model": "text-embedding-3-small"})
	})

	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
			Stream bool `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		answer := fakeAnswer
		if n := len(req.Messages); n > 0 {
			last := req.Messages[n-1].Content
			if _, followUp, ok := strings.Cut(last, "Follow-up question: "); ok {
				answer = strings.TrimSpace(followUp)
			}
		}

		if !req.Stream {
			writeJSON(w, map[string]interface{}{
				"id":      "chatcmpl-e2e",
				"object":  "chat.completion",
				"choices": []map[string]interface{}{{"index": 0, "message": map[string]string{"role": "assistant", "content": answer}, "finish_reason": "stop"}},
			})
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for i, word := range strings.SplitAfter(answer, " ") {
			chunk, _ := json.Marshal(map[string]interface{}{
				"id":      "chatcmpl-e2e",
				"object":  "chat.completion.chunk",
				"choices": []map[string]interface{}{{"index": 0, "delta": map[string]string{"content": word}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", chunk)
			if i == 0 {
				w.(http.Flusher).Flush()
			}
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	return mux
}

func bagOfWords(text string) []float32 {
	vec := make([]float32, e2eDimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%e2eDimensions]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
