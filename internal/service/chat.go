package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/cloo-solutions/ragsync/internal/pagination"
	"github.com/cloo-solutions/ragsync/internal/telemetry"
	"github.com/google/uuid"
)

// DefaultChatNamespace is searched when a chat request names no namespace.
const DefaultChatNamespace = "default"

// placeholderName replaces missing or URL-valued document names.
const placeholderName = "Document"

// SessionStore keeps per-session conversation history.
type SessionStore interface {
	Append(ctx context.Context, sessionID string, msgs ...domain.Message) error
	History(ctx context.Context, sessionID string) ([]domain.Message, error)
	Clear(ctx context.Context, sessionID string) (bool, error)
	List(ctx context.Context, cursor string, limit int) (*pagination.PageResult[domain.SessionInfo], error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// ChatInput is one question in a conversation.
type ChatInput struct {
	Query     string
	SessionID string
	Namespace string
	KFinal    int
}

// Source is a retrieved chunk as shown to the caller.
type Source struct {
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// ChatResult is a synthesized answer with its supporting sources.
type ChatResult struct {
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources"`
	SessionID string   `json:"session_id"`
}

// ChatService answers questions from retrieved context and remembers the
// conversation per session.
type ChatService struct {
	retriever *Retriever
	generator Generator
	sessions  SessionStore
	uuidGen   UUIDGenerator
	now       func() time.Time
}

// NewChatService creates a new ChatService instance. sessions may be nil for
// stateless operation.
func NewChatService(retriever *Retriever, generator Generator, sessions SessionStore) *ChatService {
	return &ChatService{
		retriever: retriever,
		generator: generator,
		sessions:  sessions,
		uuidGen:   &DefaultUUIDGenerator{},
		now:       time.Now,
	}
}

// NewChatServiceWithUUIDGen creates a ChatService with a custom UUID generator (for testing)
func NewChatServiceWithUUIDGen(retriever *Retriever, generator Generator, sessions SessionStore, uuidGen UUIDGenerator) *ChatService {
	s := NewChatService(retriever, generator, sessions)
	s.uuidGen = uuidGen
	return s
}

type preparedTurn struct {
	query     string
	sessionID string
	chunks    []RetrievedChunk
	messages  []domain.Message
}

// Ask returns a complete answer.
func (s *ChatService) Ask(ctx context.Context, input ChatInput) (*ChatResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.Ask", telemetry.SpanAttributes{
		Namespace: input.Namespace,
		SessionID: input.SessionID,
		Operation: "chat",
	})
	defer span.End()

	turn, err := s.prepare(ctx, input)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	answer, err := s.generator.Generate(ctx, turn.messages)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return s.finish(ctx, turn, answer)
}

// Stream is Ask with incremental delivery: emit receives each text delta as
// the model produces it. Nothing is remembered if streaming fails.
func (s *ChatService) Stream(ctx context.Context, input ChatInput, emit func(delta string) error) (*ChatResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.Stream", telemetry.SpanAttributes{
		Namespace: input.Namespace,
		SessionID: input.SessionID,
		Operation: "chat_stream",
	})
	defer span.End()

	turn, err := s.prepare(ctx, input)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	answer, err := s.generator.GenerateStream(ctx, turn.messages, emit)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to stream answer: %w", err)
	}

	return s.finish(ctx, turn, answer)
}

func (s *ChatService) prepare(ctx context.Context, input ChatInput) (*preparedTurn, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if s.generator == nil {
		return nil, domain.ErrGeneratorNotConfigured
	}
	if s.retriever == nil {
		return nil, domain.ErrVectorStoreNotConfigured
	}

	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		sessionID = s.uuidGen.NewString()
	}
	namespace := input.Namespace
	if namespace == "" {
		namespace = DefaultChatNamespace
	}

	history, err := s.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	standalone := s.retriever.CondenseQuestion(ctx, query, history)
	chunks, err := s.retriever.Retrieve(ctx, RetrieveInput{
		Query:     standalone,
		Namespace: namespace,
		KFinal:    input.KFinal,
	})
	if err != nil {
		return nil, err
	}

	return &preparedTurn{
		query:     query,
		sessionID: sessionID,
		chunks:    chunks,
		messages:  buildAnswerMessages(query, chunks, history),
	}, nil
}

func (s *ChatService) finish(ctx context.Context, turn *preparedTurn, answer string) (*ChatResult, error) {
	if s.sessions != nil {
		now := s.now().UTC()
		err := s.sessions.Append(ctx, turn.sessionID,
			domain.Message{Role: domain.RoleUser, Content: turn.query, CreatedAt: now},
			domain.Message{Role: domain.RoleAssistant, Content: answer, CreatedAt: now},
		)
		if err != nil {
			log.Printf("chat: failed to record turn for session %s: %v", turn.sessionID, err)
		}
	}

	return &ChatResult{
		Answer:    answer,
		Sources:   SanitizeSources(turn.chunks),
		SessionID: turn.sessionID,
	}, nil
}

// History returns the remembered messages of a session, oldest first.
func (s *ChatService) History(ctx context.Context, sessionID string) ([]domain.Message, error) {
	if s.sessions == nil {
		return []domain.Message{}, nil
	}
	history, err := s.sessions.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if history == nil {
		history = []domain.Message{}
	}
	return history, nil
}

// ClearHistory forgets a session. It reports whether the session existed.
func (s *ChatService) ClearHistory(ctx context.Context, sessionID string) (bool, error) {
	if s.sessions == nil {
		return false, nil
	}
	return s.sessions.Clear(ctx, sessionID)
}

// ListSessions pages through live sessions, most recently active first.
func (s *ChatService) ListSessions(ctx context.Context, cursor string, limit int) (*pagination.PageResult[domain.SessionInfo], error) {
	if s.sessions == nil {
		return &pagination.PageResult[domain.SessionInfo]{Items: []domain.SessionInfo{}}, nil
	}
	return s.sessions.List(ctx, cursor, limit)
}

// DisplayName picks a human-readable document name from metadata: the first
// of filename, title and name that is set, is not a URL and is not "unknown".
func DisplayName(meta map[string]any) string {
	for _, key := range []string{domain.MetaFilename, domain.MetaTitle, domain.MetaName} {
		v := strings.TrimSpace(domain.MetaString(meta, key))
		if v == "" || isURL(v) || strings.EqualFold(v, "unknown") {
			continue
		}
		return v
	}
	return placeholderName
}

// SanitizeSources converts chunks to sources whose filename is always a clean
// display name and whose source never holds a URL.
func SanitizeSources(chunks []RetrievedChunk) []Source {
	sources := make([]Source, 0, len(chunks))
	for _, c := range chunks {
		meta := make(map[string]any, len(c.Metadata)+1)
		for k, v := range c.Metadata {
			meta[k] = v
		}
		name := DisplayName(meta)
		meta[domain.MetaFilename] = name
		if src, ok := meta[domain.MetaSource].(string); ok && isURL(src) {
			meta[domain.MetaSource] = name
		}
		sources = append(sources, Source{
			Content:  c.Content,
			Score:    c.Score,
			Metadata: meta,
		})
	}
	return sources
}

func isURL(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
