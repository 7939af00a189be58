package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/cloo-solutions/ragsync/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// Generator produces chat completions.
type Generator interface {
	Generate(ctx context.Context, messages []domain.Message) (string, error)
	GenerateStream(ctx context.Context, messages []domain.Message, onDelta func(string) error) (string, error)
}

// Reranker scores documents against a query. It returns one score per
// document, in input order.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]float64, error)
}

// RetrievalConfig tunes the expand, search and rerank stages.
type RetrievalConfig struct {
	Variants     int
	KInitial     int
	KFinal       int
	Concurrency  int
	QueryTimeout time.Duration
}

// DefaultRetrievalConfig returns the standard pipeline settings.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		Variants:     3,
		KInitial:     10,
		KFinal:       5,
		Concurrency:  4,
		QueryTimeout: 20 * time.Second,
	}
}

func (c RetrievalConfig) normalized() RetrievalConfig {
	d := DefaultRetrievalConfig()
	if c.Variants < 0 {
		c.Variants = 0
	}
	if c.KInitial <= 0 {
		c.KInitial = d.KInitial
	}
	if c.KFinal <= 0 {
		c.KFinal = d.KFinal
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = d.QueryTimeout
	}
	return c
}

// RetrieveInput is a single retrieval request.
type RetrieveInput struct {
	Query     string
	Namespace string
	KFinal    int
}

// RetrievedChunk is a ranked retrieval result. Score is the rerank score when
// reranking succeeded, otherwise the similarity.
type RetrievedChunk struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Score      float64        `json:"score"`
	Similarity float32        `json:"similarity"`
	Metadata   map[string]any `json:"metadata"`
}

// Retriever runs query expansion, concurrent similarity search and reranking.
type Retriever struct {
	store     VectorStore
	embedder  EmbeddingClient
	generator Generator
	reranker  Reranker
	cfg       RetrievalConfig
}

// NewRetriever creates a new Retriever. generator and reranker may be nil, in
// which case expansion and reranking are skipped.
func NewRetriever(store VectorStore, embedder EmbeddingClient, generator Generator, reranker Reranker, cfg RetrievalConfig) *Retriever {
	return &Retriever{
		store:     store,
		embedder:  embedder,
		generator: generator,
		reranker:  reranker,
		cfg:       cfg.normalized(),
	}
}

// Retrieve returns the top chunks for the query. Failing variants are
// skipped; only when every variant fails is an error returned.
func (r *Retriever) Retrieve(ctx context.Context, input RetrieveInput) ([]RetrievedChunk, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if r.store == nil {
		return nil, domain.ErrVectorStoreNotConfigured
	}
	if r.embedder == nil {
		return nil, domain.ErrEmbeddingNotConfigured
	}
	kFinal := input.KFinal
	if kFinal <= 0 {
		kFinal = r.cfg.KFinal
	}

	ctx, span := telemetry.StartSpan(ctx, "Retriever.Retrieve", telemetry.SpanAttributes{
		Namespace: input.Namespace,
		Operation: "retrieve",
	})
	defer span.End()

	variants := r.Expand(ctx, query)
	candidates, err := r.search(ctx, input.Namespace, variants)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return r.rerank(ctx, query, candidates, kFinal), nil
}

// Expand returns the original query followed by up to Variants rephrasings.
// Any generator failure degrades to the original query alone.
func (r *Retriever) Expand(ctx context.Context, query string) []string {
	if r.generator == nil || r.cfg.Variants == 0 {
		return []string{query}
	}
	out, err := r.generator.Generate(ctx, buildExpansionMessages(query, r.cfg.Variants))
	if err != nil {
		log.Printf("retrieval: query expansion failed, using original query: %v", err)
		return []string{query}
	}
	return parseExpansions(query, out, r.cfg.Variants)
}

// CondenseQuestion rewrites a follow-up into a standalone question using the
// conversation so far. Without history, or on failure, query is returned as is.
func (r *Retriever) CondenseQuestion(ctx context.Context, query string, history []domain.Message) string {
	if len(history) == 0 || r.generator == nil {
		return query
	}
	out, err := r.generator.Generate(ctx, buildCondenseMessages(query, history))
	if err != nil {
		log.Printf("retrieval: condense failed, using raw question: %v", err)
		return query
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return query
	}
	return out
}

var listMarker = regexp.MustCompile(`^(?:\d+[.)]|[-*•])\s*`)

func parseExpansions(query, output string, n int) []string {
	variants := []string{query}
	seen := map[string]bool{strings.ToLower(query): true}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		line = strings.Trim(line, `"'`)
		if line == "" {
			continue
		}
		key := strings.ToLower(line)
		if seen[key] {
			continue
		}
		seen[key] = true
		variants = append(variants, line)
		if len(variants) == n+1 {
			break
		}
	}
	return variants
}

// search runs every variant concurrently and merges the hits in variant
// order, keeping the first occurrence of each record id.
func (r *Retriever) search(ctx context.Context, namespace string, variants []string) ([]domain.Match, error) {
	results := make([][]domain.Match, len(variants))
	errs := make([]error, len(variants))

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i, variant := range variants {
		g.Go(func() error {
			matches, err := r.searchVariant(ctx, namespace, variant)
			if err != nil {
				log.Printf("retrieval: variant %d failed: %v", i, err)
				errs[i] = err
				return nil
			}
			results[i] = matches
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(variants) {
		return nil, domain.ErrRetrievalFailed.WithCause(errors.Join(errs...))
	}

	seen := make(map[string]bool)
	var merged []domain.Match
	for _, matches := range results {
		for _, m := range matches {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			merged = append(merged, m)
		}
	}
	return merged, nil
}

func (r *Retriever) searchVariant(ctx context.Context, namespace, variant string) ([]domain.Match, error) {
	vec, err := r.embedder.GenerateEmbedding(ctx, variant)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer cancel()
	matches, err := r.store.Query(ctx, namespace, vec, r.cfg.KInitial)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return matches, nil
}

// rerank scores candidates against the original query and keeps the top
// kFinal. Without a usable reranker the similarity order is kept.
func (r *Retriever) rerank(ctx context.Context, query string, candidates []domain.Match, kFinal int) []RetrievedChunk {
	chunks := make([]RetrievedChunk, len(candidates))
	docs := make([]string, len(candidates))
	for i, m := range candidates {
		content := domain.MetaString(m.Metadata, domain.MetaContent)
		chunks[i] = RetrievedChunk{
			ID:         m.ID,
			Content:    content,
			Score:      float64(m.Score),
			Similarity: m.Score,
			Metadata:   m.Metadata,
		}
		docs[i] = content
	}

	reranked := false
	if r.reranker != nil && len(chunks) > 0 {
		scores, err := r.reranker.Rerank(ctx, query, docs)
		switch {
		case err != nil:
			log.Printf("retrieval: rerank failed, using similarity order: %v", err)
		case len(scores) != len(chunks):
			log.Printf("retrieval: reranker returned %d scores for %d candidates, using similarity order", len(scores), len(chunks))
		default:
			for i := range chunks {
				chunks[i].Score = scores[i]
			}
			reranked = true
		}
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		if reranked {
			return chunks[i].Score > chunks[j].Score
		}
		return chunks[i].Similarity > chunks[j].Similarity
	})
	if len(chunks) > kFinal {
		chunks = chunks[:kFinal]
	}
	return chunks
}
