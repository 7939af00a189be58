package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/cloo-solutions/ragsync/internal/api"
	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/cloo-solutions/ragsync/internal/service"
)

const vectorOpTimeout = 20 * time.Second

type VectorsHandler struct {
	store service.VectorStore
}

func NewVectorsHandler(store service.VectorStore) *VectorsHandler {
	return &VectorsHandler{store: store}
}

type DeleteVectorsRequest struct {
	Namespace  string   `json:"namespace"`
	IDs        []string `json:"ids"`
	DocumentID string   `json:"document_id"`
}

type DeleteVectorsResponse struct {
	Namespace    string `json:"namespace"`
	DeletedCount int    `json:"deleted_count,omitempty"`
	DocumentID   string `json:"document_id,omitempty"`
}

// Delete removes records by id, or every record of one document.
func (h *VectorsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req DeleteVectorsRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 && req.DocumentID == "" {
		api.Error(w, http.StatusBadRequest, "ids or document_id is required")
		return
	}
	if h.store == nil {
		api.HandleError(w, domain.ErrVectorStoreNotConfigured)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), vectorOpTimeout)
	defer cancel()

	resp := DeleteVectorsResponse{Namespace: req.Namespace}
	if len(req.IDs) > 0 {
		if err := h.store.DeleteIDs(ctx, req.Namespace, req.IDs); err != nil {
			api.HandleError(w, err)
			return
		}
		resp.DeletedCount = len(req.IDs)
	}
	if req.DocumentID != "" {
		err := h.store.DeleteByFilter(ctx, req.Namespace, map[string]any{domain.MetaFileID: req.DocumentID})
		if err != nil {
			api.HandleError(w, err)
			return
		}
		resp.DocumentID = req.DocumentID
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *VectorsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		api.HandleError(w, domain.ErrVectorStoreNotConfigured)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), vectorOpTimeout)
	defer cancel()

	stats, err := h.store.Stats(ctx)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, stats)
}
