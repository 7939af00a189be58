package service

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/cloo-solutions/ragsync/internal/extract"
	"github.com/cloo-solutions/ragsync/internal/telemetry"
)

const (
	// WebFetchTimeout bounds a page download.
	WebFetchTimeout = 20 * time.Second
	// MaxPageBytes caps the size of a fetched page.
	MaxPageBytes = 5 * 1024 * 1024

	webUserAgent = "ragsync/1.0 (+web ingest)"
)

// WebIngestInput names the page to index.
type WebIngestInput struct {
	URL       string
	Namespace string
}

// WebIngestResult reports what was stored for a page.
type WebIngestResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Namespace   string `json:"namespace"`
	DocumentKey string `json:"document_key"`
	ChunkCount  int    `json:"chunks"`
}

// WebIngestService scrapes pages and indexes their readable text.
type WebIngestService struct {
	store   VectorStore
	indexer *Indexer
	client  *http.Client
	now     func() time.Time
}

// NewWebIngestService creates a new WebIngestService instance
func NewWebIngestService(store VectorStore, indexer *Indexer) *WebIngestService {
	return &WebIngestService{
		store:   store,
		indexer: indexer,
		client:  &http.Client{Timeout: WebFetchTimeout},
		now:     time.Now,
	}
}

// WithHTTPClient replaces the client used to fetch pages.
func (s *WebIngestService) WithHTTPClient(c *http.Client) *WebIngestService {
	s.client = c
	return s
}

// WebDocumentKey is the record id prefix for a page.
func WebDocumentKey(pageURL string) string {
	sum := sha1.Sum([]byte(pageURL))
	return "web_" + hex.EncodeToString(sum[:])
}

// DefaultWebNamespace is the namespace pages from host are stored in.
func DefaultWebNamespace(host string) string {
	return "web:" + host
}

// Ingest fetches the page, replaces any records previously stored for it and
// indexes the new text.
func (s *WebIngestService) Ingest(ctx context.Context, input WebIngestInput) (*WebIngestResult, error) {
	if s.store == nil || s.indexer == nil {
		return nil, domain.ErrVectorStoreNotConfigured
	}
	u, err := url.Parse(strings.TrimSpace(input.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.ErrInvalidURL
	}
	pageURL := u.String()
	namespace := input.Namespace
	if namespace == "" {
		namespace = DefaultWebNamespace(u.Hostname())
	}

	ctx, span := telemetry.StartSpan(ctx, "WebIngestService.Ingest", telemetry.SpanAttributes{
		Namespace: namespace,
		Operation: "ingest_web",
	})
	defer span.End()

	page, err := s.fetch(ctx, pageURL)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if strings.TrimSpace(page.Text) == "" {
		return nil, domain.ErrUnparseable.WithCause(errors.New("page has no readable text"))
	}
	title := page.Title
	if title == "" {
		title = u.Hostname() + u.Path
	}

	key := WebDocumentKey(pageURL)
	doc := domain.Document{
		ID:           key,
		Name:         title,
		MimeType:     domain.MimeTypeHTML,
		SourceURI:    pageURL,
		ModifiedTime: s.now().UTC().Format(time.RFC3339),
	}

	delCtx, cancel := context.WithTimeout(ctx, DeleteTimeout)
	err = s.store.DeleteByFilter(delCtx, namespace, map[string]any{domain.MetaFileID: key})
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to remove previous records: %w", err)
	}

	records, err := s.indexer.IndexDocument(ctx, IndexInput{
		DocumentKey: key,
		Document:    doc,
		Chunks:      ChunkDocument(page.Text, domain.FormatHTML, WebChunkConfig()),
		Namespace:   namespace,
		Extra:       map[string]any{domain.MetaURL: pageURL},
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return &WebIngestResult{
		URL:         pageURL,
		Title:       title,
		Namespace:   namespace,
		DocumentKey: key,
		ChunkCount:  len(records),
	}, nil
}

func (s *WebIngestService) fetch(ctx context.Context, pageURL string) (extract.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return extract.Page{}, domain.ErrInvalidURL.WithCause(err)
	}
	req.Header.Set("User-Agent", webUserAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return extract.Page{}, domain.NewTransientError("web", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return extract.Page{}, domain.NewTransientError("web", fmt.Errorf("%s returned %d", pageURL, resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return extract.Page{}, domain.NewDomainError(domain.ErrCodeNotFound, "page not found")
	case resp.StatusCode >= 400:
		return extract.Page{}, domain.NewDomainError(domain.ErrCodeValidation, fmt.Sprintf("url returned status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxPageBytes+1))
	if err != nil {
		return extract.Page{}, domain.NewTransientError("web", err)
	}
	if len(data) > MaxPageBytes {
		return extract.Page{}, domain.ErrUnsupportedFormat.WithCause(fmt.Errorf("page exceeds %d bytes", MaxPageBytes))
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(contentType, "text/plain"):
		text, err := extract.Text(data)
		if err != nil {
			return extract.Page{}, err
		}
		return extract.Page{Title: firstLine(text, 120), Text: text}, nil
	case contentType == "" || strings.Contains(contentType, "text/html") || strings.Contains(contentType, "application/xhtml"):
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
		if err != nil {
			return extract.Page{}, domain.ErrUnparseable.WithCause(err)
		}
		return extract.HTMLDocument(doc), nil
	}
	return extract.Page{}, domain.ErrUnsupportedFormat.WithCause(fmt.Errorf("content type %q", contentType))
}

func firstLine(s string, maxRunes int) string {
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(s), "\n", 2)[0])
	return truncate(line, maxRunes)
}
