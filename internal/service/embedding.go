package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/cloo-solutions/ragsync/internal/embedcache"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingService puts the content-addressed cache in front of the provider.
// It satisfies EmbeddingClient so indexing and retrieval share one cache.
type EmbeddingService struct {
	client EmbeddingClient
	cache  *embedcache.Cache
}

// NewEmbeddingService creates a new EmbeddingService instance. A nil cache
// disables caching.
func NewEmbeddingService(client EmbeddingClient, cache *embedcache.Cache) *EmbeddingService {
	return &EmbeddingService{
		client: client,
		cache:  cache,
	}
}

// GenerateEmbedding returns the vector for text, consulting the cache first.
func (s *EmbeddingService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vec, _, err := s.EmbedWithStatus(ctx, text)
	return vec, err
}

// EmbedWithStatus is GenerateEmbedding that also reports whether the vector
// came from the cache.
func (s *EmbeddingService) EmbedWithStatus(ctx context.Context, text string) ([]float32, bool, error) {
	if s == nil || s.client == nil {
		return nil, false, domain.ErrEmbeddingNotConfigured
	}
	if strings.TrimSpace(text) == "" {
		return nil, false, domain.ErrEmptyText
	}

	if s.cache == nil {
		vec, err := s.client.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, false, fmt.Errorf("failed to generate embedding: %w", err)
		}
		return vec, false, nil
	}

	vec, hit, err := s.cache.GetOrCompute(ctx, text, s.client.GenerateEmbedding)
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate embedding: %w", err)
	}
	return vec, hit, nil
}

// CacheSize reports the number of cached vectors.
func (s *EmbeddingService) CacheSize() int {
	if s == nil || s.cache == nil {
		return 0
	}
	return s.cache.Len()
}
