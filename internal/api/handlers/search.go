package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloo-solutions/ragsync/internal/api"
	"github.com/cloo-solutions/ragsync/internal/service"
)

type Retriever interface {
	Retrieve(ctx context.Context, input service.RetrieveInput) ([]service.RetrievedChunk, error)
}

type SearchHandler struct {
	retriever Retriever
}

func NewSearchHandler(retriever Retriever) *SearchHandler {
	return &SearchHandler{retriever: retriever}
}

type SearchRequest struct {
	Query     string `json:"query"`
	Namespace string `json:"namespace"`
	MeetingID string `json:"meeting_id"`
	K         int    `json:"k"`
}

type SearchResponse struct {
	Query     string           `json:"query"`
	Namespace string           `json:"namespace"`
	Results   []service.Source `json:"results"`
	Count     int              `json:"count"`
}

// Search runs the retrieval pipeline without answer synthesis.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.K < 0 {
		api.Error(w, http.StatusBadRequest, "k must not be negative")
		return
	}

	namespace := req.Namespace
	if req.MeetingID != "" {
		namespace = service.DefaultSyncNamespace(req.MeetingID)
	}
	if namespace == "" {
		namespace = service.DefaultChatNamespace
	}

	chunks, err := h.retriever.Retrieve(r.Context(), service.RetrieveInput{
		Query:     req.Query,
		Namespace: namespace,
		KFinal:    req.K,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	results := service.SanitizeSources(chunks)
	api.Success(w, http.StatusOK, SearchResponse{
		Query:     req.Query,
		Namespace: namespace,
		Results:   results,
		Count:     len(results),
	})
}
