// Package vectorstore holds the vector index backends: a Pinecone REST client
// and an in-process store for tests and local runs. The pgvector backend lives
// in the repository package next to the other Postgres code.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloo-solutions/ragsync/internal/domain"
)

const (
	pineconeAPIVersion = "2024-07"
	defaultHTTPTimeout = 30 * time.Second
	// fetchPageSize keeps GET query strings well under proxy URL limits.
	fetchPageSize = 100
)

// ErrNoHost is returned when the index host is not configured.
var ErrNoHost = errors.New("pinecone index host not set")

// Pinecone answers 404 for deletes in a namespace that was never written.
var errNotFound = errors.New("not found")

// PineconeClient talks to a single Pinecone index over its data-plane REST API.
type PineconeClient struct {
	host       string
	apiKey     string
	httpClient *http.Client
}

// NewPineconeClient creates a client for the index at host, e.g.
// "my-index-abc123.svc.us-east-1.pinecone.io". A scheme is optional.
func NewPineconeClient(host, apiKey string) (*PineconeClient, error) {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return nil, ErrNoHost
	}
	if apiKey == "" {
		return nil, domain.ErrMissingCredentials
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return &PineconeClient{
		host:   host,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
	}, nil
}

// WithHTTPClient swaps the underlying HTTP client.
func (c *PineconeClient) WithHTTPClient(hc *http.Client) *PineconeClient {
	c.httpClient = hc
	return c
}

type pineconeVector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type upsertRequest struct {
	Vectors   []pineconeVector `json:"vectors"`
	Namespace string           `json:"namespace"`
}

type queryRequest struct {
	Namespace       string    `json:"namespace"`
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	IncludeValues   bool      `json:"includeValues"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float32        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

type fetchResponse struct {
	Vectors map[string]pineconeVector `json:"vectors"`
}

type deleteRequest struct {
	IDs       []string       `json:"ids,omitempty"`
	Filter    map[string]any `json:"filter,omitempty"`
	Namespace string         `json:"namespace"`
}

type statsResponse struct {
	Dimension        int   `json:"dimension"`
	TotalVectorCount int64 `json:"totalVectorCount"`
	Namespaces       map[string]struct {
		VectorCount int64 `json:"vectorCount"`
	} `json:"namespaces"`
}

// Upsert writes records into namespace. Callers batch; this sends one request.
func (c *PineconeClient) Upsert(ctx context.Context, namespace string, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	req := upsertRequest{
		Vectors:   make([]pineconeVector, 0, len(records)),
		Namespace: namespace,
	}
	for _, r := range records {
		req.Vectors = append(req.Vectors, pineconeVector{ID: r.ID, Values: r.Values, Metadata: r.Metadata})
	}
	return c.do(ctx, http.MethodPost, "/vectors/upsert", req, nil)
}

// Query returns the topK nearest records with metadata.
func (c *PineconeClient) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.Match, error) {
	var resp queryResponse
	err := c.do(ctx, http.MethodPost, "/query", queryRequest{
		Namespace:       namespace,
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	matches := make([]domain.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, domain.Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return matches, nil
}

// Fetch returns the records that exist among ids.
func (c *PineconeClient) Fetch(ctx context.Context, namespace string, ids []string) (map[string]domain.VectorRecord, error) {
	out := make(map[string]domain.VectorRecord, len(ids))
	for start := 0; start < len(ids); start += fetchPageSize {
		end := start + fetchPageSize
		if end > len(ids) {
			end = len(ids)
		}

		q := url.Values{}
		for _, id := range ids[start:end] {
			q.Add("ids", id)
		}
		q.Set("namespace", namespace)

		var resp fetchResponse
		if err := c.do(ctx, http.MethodGet, "/vectors/fetch?"+q.Encode(), nil, &resp); err != nil {
			return nil, err
		}
		for id, v := range resp.Vectors {
			out[id] = domain.VectorRecord{ID: v.ID, Values: v.Values, Metadata: v.Metadata}
		}
	}
	return out, nil
}

// DeleteIDs removes records by id.
func (c *PineconeClient) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/vectors/delete", deleteRequest{IDs: ids, Namespace: namespace}, nil)
}

// DeleteByFilter removes every record whose metadata equals all filter values.
func (c *PineconeClient) DeleteByFilter(ctx context.Context, namespace string, filter map[string]any) error {
	if len(filter) == 0 {
		return fmt.Errorf("delete by filter requires at least one condition")
	}
	f := make(map[string]any, len(filter))
	for k, v := range filter {
		f[k] = map[string]any{"$eq": v}
	}
	err := c.do(ctx, http.MethodPost, "/vectors/delete", deleteRequest{Filter: f, Namespace: namespace}, nil)
	if errors.Is(err, errNotFound) {
		return nil
	}
	return err
}

// Stats describes the index.
func (c *PineconeClient) Stats(ctx context.Context) (domain.IndexStats, error) {
	var resp statsResponse
	if err := c.do(ctx, http.MethodPost, "/describe_index_stats", struct{}{}, &resp); err != nil {
		return domain.IndexStats{}, err
	}
	stats := domain.IndexStats{
		Dimension:        resp.Dimension,
		TotalRecordCount: resp.TotalVectorCount,
		Namespaces:       make(map[string]int64, len(resp.Namespaces)),
	}
	for name, ns := range resp.Namespaces {
		stats.Namespaces[name] = ns.VectorCount
	}
	return stats, nil
}

func (c *PineconeClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.host+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("X-Pinecone-API-Version", pineconeAPIVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewTransientError("pinecone", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewTransientError("pinecone", fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := fmt.Errorf("pinecone %s %s: status %d: %s", method, strings.SplitN(path, "?", 2)[0], resp.StatusCode, strings.TrimSpace(string(respBody)))
		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return domain.NewTransientError("pinecone", statusErr)
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return domain.ErrMissingCredentials.WithCause(statusErr)
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %w", errNotFound, statusErr)
		default:
			return statusErr
		}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
