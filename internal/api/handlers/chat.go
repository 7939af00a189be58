package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/cloo-solutions/ragsync/internal/api"
	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/cloo-solutions/ragsync/internal/pagination"
	"github.com/cloo-solutions/ragsync/internal/service"
	"github.com/go-chi/chi/v5"
)

type ChatService interface {
	Ask(ctx context.Context, input service.ChatInput) (*service.ChatResult, error)
	Stream(ctx context.Context, input service.ChatInput, emit func(delta string) error) (*service.ChatResult, error)
	History(ctx context.Context, sessionID string) ([]domain.Message, error)
	ClearHistory(ctx context.Context, sessionID string) (bool, error)
	ListSessions(ctx context.Context, cursor string, limit int) (*pagination.PageResult[domain.SessionInfo], error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
	Namespace string `json:"namespace"`
	MeetingID string `json:"meeting_id"`
	K         int    `json:"k"`
}

func (req ChatRequest) input() service.ChatInput {
	namespace := req.Namespace
	if req.MeetingID != "" {
		namespace = service.DefaultSyncNamespace(req.MeetingID)
	}
	return service.ChatInput{
		Query:     req.Query,
		SessionID: req.SessionID,
		Namespace: namespace,
		KFinal:    req.K,
	}
}

type HistoryResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []domain.Message `json:"messages"`
	Count     int              `json:"count"`
}

type ClearHistoryResponse struct {
	SessionID string `json:"session_id"`
	Cleared   bool   `json:"cleared"`
}

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (*ChatRequest, bool) {
	var req ChatRequest
	if !api.DecodeJSON(w, r, &req) {
		return nil, false
	}
	if strings.TrimSpace(req.Query) == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return nil, false
	}
	return &req, true
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Ask(r.Context(), req.input())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, result)
}

type streamDelta struct {
	Content string `json:"content,omitempty"`
}

type streamChoice struct {
	Delta        streamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

type streamFrame struct {
	Choices   []streamChoice   `json:"choices,omitempty"`
	Sources   []service.Source `json:"sources,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// sseWriter writes "data: <json>\n\n" frames. Headers go out with the first
// frame, so failures before any output can still be answered with JSON.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (s *sseWriter) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

func (s *sseWriter) frame(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.raw(string(payload))
}

func (s *sseWriter) raw(data string) error {
	s.start()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	flusher, _ := w.(http.Flusher)
	sse := &sseWriter{w: w, flusher: flusher}

	result, err := h.svc.Stream(r.Context(), req.input(), func(delta string) error {
		return sse.frame(streamFrame{Choices: []streamChoice{{Delta: streamDelta{Content: delta}}}})
	})
	if err != nil {
		if !sse.started {
			api.HandleError(w, err)
			return
		}
		log.Printf("chat: stream failed: %v", err)
		_ = sse.frame(streamFrame{Error: "stream interrupted"})
		_ = sse.raw("[DONE]")
		return
	}

	stop := "stop"
	_ = sse.frame(streamFrame{
		Choices:   []streamChoice{{FinishReason: &stop}},
		Sources:   result.Sources,
		SessionID: result.SessionID,
	})
	_ = sse.raw("[DONE]")
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	if sessionID == "" {
		api.Error(w, http.StatusBadRequest, "session_id is required")
		return
	}

	messages, err := h.svc.History(r.Context(), sessionID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, HistoryResponse{
		SessionID: sessionID,
		Messages:  messages,
		Count:     len(messages),
	})
}

func (h *ChatHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	if sessionID == "" {
		api.Error(w, http.StatusBadRequest, "session_id is required")
		return
	}

	cleared, err := h.svc.ClearHistory(r.Context(), sessionID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ClearHistoryResponse{SessionID: sessionID, Cleared: cleared})
}

func (h *ChatHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	page, err := h.svc.ListSessions(r.Context(), r.URL.Query().Get("cursor"), limit)
	if errors.Is(err, pagination.ErrInvalidCursor) {
		api.Error(w, http.StatusBadRequest, "invalid cursor")
		return
	}
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, page)
}
