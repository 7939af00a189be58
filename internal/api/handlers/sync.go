package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloo-solutions/ragsync/internal/api"
	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/cloo-solutions/ragsync/internal/service"
)

type Syncer interface {
	Sync(ctx context.Context, src service.DocumentSource, input service.SyncInput) (*domain.SyncSummary, error)
}

// DriveSourceFactory opens a Drive source acting as the holder of accessToken.
type DriveSourceFactory func(ctx context.Context, accessToken string) (service.DocumentSource, error)

type SyncHandler struct {
	syncer   Syncer
	newDrive DriveSourceFactory
	bucket   service.DocumentSource
}

// NewSyncHandler creates a SyncHandler. newDrive and bucket may be nil when
// the corresponding source is not configured.
func NewSyncHandler(syncer Syncer, newDrive DriveSourceFactory, bucket service.DocumentSource) *SyncHandler {
	return &SyncHandler{syncer: syncer, newDrive: newDrive, bucket: bucket}
}

type DriveSyncRequest struct {
	FolderID    string `json:"folder_id"`
	AccessToken string `json:"access_token"`
	TargetID    string `json:"target_id"`
	MeetingID   string `json:"meeting_id"`
	Namespace   string `json:"namespace"`
}

type S3SyncRequest struct {
	Prefix    string `json:"prefix"`
	TargetID  string `json:"target_id"`
	MeetingID string `json:"meeting_id"`
	Namespace string `json:"namespace"`
}

func targetOf(targetID, meetingID string) string {
	if targetID != "" {
		return targetID
	}
	return meetingID
}

func (h *SyncHandler) Drive(w http.ResponseWriter, r *http.Request) {
	var req DriveSyncRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.FolderID) == "" {
		api.Error(w, http.StatusBadRequest, "folder_id is required")
		return
	}
	target := targetOf(req.TargetID, req.MeetingID)
	if strings.TrimSpace(target) == "" {
		api.Error(w, http.StatusBadRequest, "target_id is required")
		return
	}
	if req.AccessToken == "" {
		api.Error(w, http.StatusBadRequest, "access_token is required")
		return
	}
	if h.newDrive == nil {
		api.HandleError(w, domain.ErrSourceNotConfigured)
		return
	}

	src, err := h.newDrive(r.Context(), req.AccessToken)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	h.run(w, r, src, service.SyncInput{FolderID: req.FolderID, TargetID: target, Namespace: req.Namespace})
}

func (h *SyncHandler) S3(w http.ResponseWriter, r *http.Request) {
	var req S3SyncRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}
	target := targetOf(req.TargetID, req.MeetingID)
	if strings.TrimSpace(target) == "" {
		api.Error(w, http.StatusBadRequest, "target_id is required")
		return
	}
	if h.bucket == nil {
		api.HandleError(w, domain.ErrSourceNotConfigured)
		return
	}

	h.run(w, r, h.bucket, service.SyncInput{FolderID: req.Prefix, TargetID: target, Namespace: req.Namespace})
}

func (h *SyncHandler) run(w http.ResponseWriter, r *http.Request, src service.DocumentSource, input service.SyncInput) {
	summary, err := h.syncer.Sync(r.Context(), src, input)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, summary)
}
