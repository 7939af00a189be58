package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloo-solutions/ragsync/internal/api"
	"github.com/cloo-solutions/ragsync/internal/service"
)

type WebIngester interface {
	Ingest(ctx context.Context, input service.WebIngestInput) (*service.WebIngestResult, error)
}

type IngestHandler struct {
	web WebIngester
}

func NewIngestHandler(web WebIngester) *IngestHandler {
	return &IngestHandler{web: web}
}

type WebIngestRequest struct {
	URL       string `json:"url"`
	Namespace string `json:"namespace"`
}

func (h *IngestHandler) Web(w http.ResponseWriter, r *http.Request) {
	var req WebIngestRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		api.Error(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := h.web.Ingest(r.Context(), service.WebIngestInput{URL: req.URL, Namespace: req.Namespace})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, result)
}
