// Package rerank is a client for hosted cross-encoder rerank APIs that speak
// the common /rerank shape (Cohere, Jina, Voyage, text-embeddings-inference).
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloo-solutions/ragsync/internal/domain"
)

const (
	defaultTimeout = 15 * time.Second
	maxRetries     = 2
)

// ErrNoURL is returned when the rerank endpoint is not configured.
var ErrNoURL = errors.New("rerank url not set")

// Config holds configuration for Client
type Config struct {
	URL    string
	APIKey string
	Model  string
}

// Client scores documents against a query with a remote cross-encoder.
type Client struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
	newBackOff func() backoff.BackOff
}

// NewClient creates a new Client. URL is the full endpoint, e.g.
// "https://api.cohere.com/v2/rerank".
func NewClient(cfg Config) (*Client, error) {
	u := strings.TrimSpace(cfg.URL)
	if u == "" {
		return nil, ErrNoURL
	}
	return &Client{
		url:        u,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: defaultTimeout},
		newBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries)
		},
	}, nil
}

// WithHTTPClient swaps the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank returns one relevance score per document, in input order.
// Transient failures are retried a couple of times.
func (c *Client) Rerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: documents,
		TopN:      len(documents),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := backoff.RetryWithData(func() (*rerankResponse, error) {
		out, err := c.post(ctx, body)
		if err != nil && !domain.IsCode(err, domain.ErrCodeTransient) {
			return nil, backoff.Permanent(err)
		}
		return out, err
	}, backoff.WithContext(c.newBackOff(), ctx))
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(documents))
	seen := make([]bool, len(documents))
	for _, r := range resp.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			return nil, fmt.Errorf("rerank: result index %d out of range", r.Index)
		}
		scores[r.Index] = r.RelevanceScore
		seen[r.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("rerank: no score for document %d", i)
		}
	}
	return scores, nil
}

func (c *Client) post(ctx context.Context, body []byte) (*rerankResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewTransientError("rerank", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewTransientError("rerank", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := fmt.Errorf("rerank: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, domain.NewTransientError("rerank", statusErr)
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, domain.ErrMissingCredentials.WithCause(statusErr)
		}
		return nil, statusErr
	}

	var out rerankResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}
