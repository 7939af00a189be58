package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/cloo-solutions/ragsync/internal/telemetry"
)

// Timeouts and thresholds applied per document during a sync run.
const (
	ProbeTimeout    = 10 * time.Second
	DeleteTimeout   = 20 * time.Second
	ListTimeout     = 30 * time.Second
	DownloadTimeout = 60 * time.Second

	ProbeRetries = 2

	MinContentBytes = 50
	MinTextRunes    = 50
)

// DocumentSource enumerates a folder tree and downloads files.
// Download returns the MIME type of the bytes, which differs from the listed
// type for exported workspace formats.
type DocumentSource interface {
	ListChildren(ctx context.Context, folderID string) ([]domain.Document, error)
	Download(ctx context.Context, doc domain.Document) ([]byte, string, error)
}

// TextExtractor turns downloaded bytes into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, format domain.Format, mimeType string) (string, error)
}

// SyncInput selects the folder to sync and where its records go.
type SyncInput struct {
	FolderID  string
	TargetID  string
	Namespace string
}

// DefaultSyncNamespace is the namespace used when the caller names none.
func DefaultSyncNamespace(targetID string) string {
	return "meeting:" + targetID
}

// SyncService reconciles a document source with the vector store. Unchanged
// documents are skipped, stale ones are deleted and reindexed.
type SyncService struct {
	store     VectorStore
	indexer   *Indexer
	extractor TextExtractor
	chunkCfg  ChunkConfig

	probeTimeout    time.Duration
	deleteTimeout   time.Duration
	listTimeout     time.Duration
	downloadTimeout time.Duration
	newBackOff      func() backoff.BackOff
}

// NewSyncService creates a new SyncService instance
func NewSyncService(store VectorStore, indexer *Indexer, extractor TextExtractor, chunkCfg ChunkConfig) *SyncService {
	return &SyncService{
		store:           store,
		indexer:         indexer,
		extractor:       extractor,
		chunkCfg:        chunkCfg,
		probeTimeout:    ProbeTimeout,
		deleteTimeout:   DeleteTimeout,
		listTimeout:     ListTimeout,
		downloadTimeout: DownloadTimeout,
		newBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), ProbeRetries)
		},
	}
}

// Sync runs one pass over the folder tree. It returns an error only when the
// tree cannot be enumerated; per-document failures are reported in the summary.
func (s *SyncService) Sync(ctx context.Context, src DocumentSource, input SyncInput) (*domain.SyncSummary, error) {
	if s.store == nil || s.indexer == nil {
		return nil, domain.ErrVectorStoreNotConfigured
	}
	if src == nil {
		return nil, domain.ErrSourceNotConfigured
	}
	if strings.TrimSpace(input.TargetID) == "" {
		return nil, domain.ErrMissingRequiredField.WithCause(errors.New("target_id"))
	}
	namespace := input.Namespace
	if namespace == "" {
		namespace = DefaultSyncNamespace(input.TargetID)
	}

	ctx, span := telemetry.StartSpan(ctx, "SyncService.Sync", telemetry.SpanAttributes{
		Namespace: namespace,
		Operation: "sync",
	})
	defer span.End()

	docs, err := s.listRecursive(ctx, src, input.FolderID)
	if err != nil {
		span.SetError(err)
		return nil, domain.ErrSourceUnavailable.WithCause(err)
	}

	summary := &domain.SyncSummary{
		Success:    true,
		TotalFiles: len(docs),
		Namespace:  namespace,
	}
	log.Printf("sync: %d files under %q into %s", len(docs), input.FolderID, namespace)

	for _, doc := range docs {
		state, err := s.syncDocument(ctx, src, doc, input.TargetID, namespace)
		switch state {
		case domain.DocumentStateReindexed:
			summary.SyncedCount++
		case domain.DocumentStateUnsupported:
			summary.UnsupportedCount++
		case domain.DocumentStateFailed:
			summary.SkippedCount++
			summary.Errors = append(summary.Errors, domain.SyncError{File: doc.Name, Error: err.Error()})
			log.Printf("sync: %s failed: %v", doc.Name, err)
		default:
			summary.SkippedCount++
		}
	}

	log.Printf("sync: done %s synced=%d skipped=%d unsupported=%d errors=%d",
		namespace, summary.SyncedCount, summary.SkippedCount, summary.UnsupportedCount, len(summary.Errors))
	return summary, nil
}

// listRecursive walks the tree depth first and returns files only.
func (s *SyncService) listRecursive(ctx context.Context, src DocumentSource, folderID string) ([]domain.Document, error) {
	listCtx, cancel := context.WithTimeout(ctx, s.listTimeout)
	children, err := src.ListChildren(listCtx, folderID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", folderID, err)
	}

	var files []domain.Document
	for _, child := range children {
		if child.IsFolder() {
			nested, err := s.listRecursive(ctx, src, child.ID)
			if err != nil {
				return nil, err
			}
			files = append(files, nested...)
			continue
		}
		files = append(files, child)
	}
	return files, nil
}

func (s *SyncService) syncDocument(ctx context.Context, src DocumentSource, doc domain.Document, targetID, namespace string) (domain.DocumentState, error) {
	if !doc.Format().Supported() {
		return domain.DocumentStateUnsupported, nil
	}

	key := DocumentKey(targetID, doc.ID)
	switch s.classify(ctx, namespace, key, doc) {
	case domain.DocumentStateUnchanged:
		return domain.DocumentStateSkipped, nil
	case domain.DocumentStateStale:
		if err := s.deleteDocument(ctx, namespace, targetID, doc.ID); err != nil {
			return domain.DocumentStateFailed, fmt.Errorf("delete stale records: %w", err)
		}
		log.Printf("sync: %s changed, removed previous records", doc.Name)
	default:
		// Chunk 0 missing or unreadable does not prove the document has no
		// records, so clear any leftovers before the fresh upsert.
		if err := s.deleteDocument(ctx, namespace, targetID, doc.ID); err != nil {
			return domain.DocumentStateFailed, fmt.Errorf("delete previous records: %w", err)
		}
	}

	dlCtx, cancel := context.WithTimeout(ctx, s.downloadTimeout)
	data, mimeType, err := src.Download(dlCtx, doc)
	cancel()
	if err != nil {
		if domain.IsCode(err, domain.ErrCodeUnsupportedInput) {
			log.Printf("sync: skipping %s: %v", doc.Name, err)
			return domain.DocumentStateSkipped, nil
		}
		return domain.DocumentStateFailed, fmt.Errorf("download: %w", err)
	}
	if len(data) < MinContentBytes {
		log.Printf("sync: skipping %s: %d bytes", doc.Name, len(data))
		return domain.DocumentStateSkipped, nil
	}
	if mimeType == "" {
		mimeType = doc.MimeType
	}
	format := domain.DetectFormat(mimeType, doc.Name)

	text, err := s.extractor.Extract(ctx, data, format, mimeType)
	if err != nil {
		if domain.IsCode(err, domain.ErrCodeUnsupportedInput) {
			log.Printf("sync: skipping %s: %v", doc.Name, err)
			return domain.DocumentStateSkipped, nil
		}
		return domain.DocumentStateFailed, fmt.Errorf("extract: %w", err)
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < MinTextRunes {
		log.Printf("sync: skipping %s: too little text", doc.Name)
		return domain.DocumentStateSkipped, nil
	}

	records, err := s.indexer.IndexDocument(ctx, IndexInput{
		DocumentKey: key,
		Document:    doc,
		Chunks:      ChunkDocument(text, format, s.chunkCfg),
		Namespace:   namespace,
		TargetID:    targetID,
	})
	if err != nil {
		return domain.DocumentStateFailed, err
	}
	if len(records) == 0 {
		return domain.DocumentStateSkipped, nil
	}
	return domain.DocumentStateReindexed, nil
}

// classify probes the first chunk record. A probe that keeps failing is
// treated as new so the document is reindexed rather than silently skipped;
// the caller still clears any records left under the document's key.
func (s *SyncService) classify(ctx context.Context, namespace, key string, doc domain.Document) domain.DocumentState {
	probeID := RecordID(key, 0)
	found, err := backoff.RetryWithData(func() (map[string]domain.VectorRecord, error) {
		probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
		defer cancel()
		return s.store.Fetch(probeCtx, namespace, []string{probeID})
	}, backoff.WithContext(s.newBackOff(), ctx))
	if err != nil {
		log.Printf("sync: probe for %s failed, reindexing: %v", doc.Name, err)
		return domain.DocumentStateNew
	}

	rec, ok := found[probeID]
	if !ok {
		return domain.DocumentStateNew
	}
	if domain.MetaString(rec.Metadata, domain.MetaModifiedTime) == doc.ModifiedTime {
		return domain.DocumentStateUnchanged
	}
	return domain.DocumentStateStale
}

func (s *SyncService) deleteDocument(ctx context.Context, namespace, targetID, fileID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.deleteTimeout)
	defer cancel()
	return s.store.DeleteByFilter(ctx, namespace, map[string]any{
		domain.MetaFileID:   fileID,
		domain.MetaTargetID: targetID,
	})
}
