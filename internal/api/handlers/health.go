package handlers

import (
	"net/http"
	"time"

	"github.com/cloo-solutions/ragsync/internal/api"
)

// Components reports which optional backends are wired.
type Components struct {
	VectorStore string `json:"vector_store"`
	Sessions    string `json:"sessions"`
	Reranker    string `json:"reranker"`
	Embeddings  bool   `json:"embeddings"`
	Generator   bool   `json:"generator"`
	Drive       bool   `json:"drive"`
	S3          bool   `json:"s3"`
}

type HealthHandler struct {
	components Components
	now        func() time.Time
}

func NewHealthHandler(components Components) *HealthHandler {
	return &HealthHandler{components: components, now: time.Now}
}

type HealthResponse struct {
	Status     string     `json:"status"`
	Timestamp  string     `json:"timestamp"`
	Server     string     `json:"server"`
	Components Components `json:"components"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Timestamp:  h.now().UTC().Format(time.RFC3339),
		Server:     "ragsync",
		Components: h.components,
	})
}
