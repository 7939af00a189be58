package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// LLMReranker scores passages with a chat model prompted to return a JSON
// array of 0-10 relevance ratings.
type LLMReranker struct {
	generator Generator
}

// NewLLMReranker creates a new LLMReranker instance
func NewLLMReranker(generator Generator) *LLMReranker {
	return &LLMReranker{generator: generator}
}

// Rerank implements Reranker.
func (r *LLMReranker) Rerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	if r.generator == nil {
		return nil, errors.New("rerank: no generator")
	}
	if len(documents) == 0 {
		return nil, nil
	}
	out, err := r.generator.Generate(ctx, buildRerankMessages(query, documents))
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	scores, err := parseScores(out)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(documents) {
		return nil, fmt.Errorf("rerank: got %d scores for %d passages", len(scores), len(documents))
	}
	return scores, nil
}

// parseScores extracts the first JSON array in the model output, tolerating
// code fences and surrounding prose.
func parseScores(out string) ([]float64, error) {
	start := strings.Index(out, "[")
	end := strings.LastIndex(out, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("rerank: no score array in %q", truncate(out, 80))
	}
	var scores []float64
	if err := json.Unmarshal([]byte(out[start:end+1]), &scores); err != nil {
		return nil, fmt.Errorf("rerank: parse scores: %w", err)
	}
	return scores, nil
}
