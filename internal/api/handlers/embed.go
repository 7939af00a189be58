package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/ragsync/internal/api"
)

type Embedder interface {
	EmbedWithStatus(ctx context.Context, text string) ([]float32, bool, error)
}

type EmbedHandler struct {
	embedder Embedder
}

func NewEmbedHandler(embedder Embedder) *EmbedHandler {
	return &EmbedHandler{embedder: embedder}
}

type EmbedRequest struct {
	Text string `json:"text"`
}

type EmbedResponse struct {
	Embedding  []float32 `json:"embedding"`
	Cached     bool      `json:"cached"`
	Dimensions int       `json:"dimensions"`
}

func (h *EmbedHandler) Embed(w http.ResponseWriter, r *http.Request) {
	var req EmbedRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}

	vec, cached, err := h.embedder.EmbedWithStatus(r.Context(), req.Text)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, EmbedResponse{Embedding: vec, Cached: cached, Dimensions: len(vec)})
}
