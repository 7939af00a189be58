package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/cloo-solutions/ragsync/internal/telemetry"
)

const (
	// BatchSize is the number of records per upsert call.
	BatchSize = 100
	// UpsertTimeout bounds a single upsert batch.
	UpsertTimeout = 30 * time.Second

	contentPreviewRunes = 1000
)

// VectorStore is the namespaced vector index the indexer, sync engine and
// retriever talk to. Every call targets exactly one namespace.
type VectorStore interface {
	Upsert(ctx context.Context, namespace string, records []domain.VectorRecord) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.Match, error)
	Fetch(ctx context.Context, namespace string, ids []string) (map[string]domain.VectorRecord, error)
	DeleteIDs(ctx context.Context, namespace string, ids []string) error
	DeleteByFilter(ctx context.Context, namespace string, filter map[string]any) error
	Stats(ctx context.Context) (domain.IndexStats, error)
}

// IndexInput describes one document's chunks to be embedded and stored.
type IndexInput struct {
	DocumentKey string
	Document    domain.Document
	Chunks      []domain.Chunk
	Namespace   string
	TargetID    string
	Extra       map[string]any
}

// Indexer embeds chunks and writes them to the vector store in batches.
type Indexer struct {
	store         VectorStore
	embedder      EmbeddingClient
	batchSize     int
	upsertTimeout time.Duration
}

// NewIndexer creates a new Indexer instance
func NewIndexer(store VectorStore, embedder EmbeddingClient) *Indexer {
	return &Indexer{
		store:         store,
		embedder:      embedder,
		batchSize:     BatchSize,
		upsertTimeout: UpsertTimeout,
	}
}

// DocumentKey returns the id prefix used for a synced document's records.
func DocumentKey(targetID, fileID string) string {
	return targetID + "_" + fileID
}

// RecordID returns the deterministic id of chunk index under documentKey.
func RecordID(documentKey string, index int) string {
	return fmt.Sprintf("%s_%d", documentKey, index)
}

// EmbeddingInput prefixes chunk text with the document's name and type so that
// filename-targeted queries still land on the right chunks.
func EmbeddingInput(doc domain.Document, text string) string {
	return fmt.Sprintf("[File: %s] [Type: %s] %s", doc.Name, doc.Format().Extension(), text)
}

// IndexDocument embeds every chunk and upserts the resulting records. Chunks
// whose embedding fails are skipped. A failed batch stops the remaining
// batches and returns a partial batch error; earlier batches stay written.
// The returned slice holds only records that were upserted.
func (ix *Indexer) IndexDocument(ctx context.Context, input IndexInput) ([]domain.VectorRecord, error) {
	if ix.store == nil {
		return nil, domain.ErrVectorStoreNotConfigured
	}
	if ix.embedder == nil {
		return nil, domain.ErrEmbeddingNotConfigured
	}
	if input.DocumentKey == "" {
		return nil, domain.ErrMissingRequiredField.WithCause(fmt.Errorf("document key"))
	}

	ctx, span := telemetry.StartSpan(ctx, "Indexer.IndexDocument", telemetry.SpanAttributes{
		Namespace:  input.Namespace,
		DocumentID: input.Document.ID,
		Operation:  "index",
	})
	defer span.End()

	records := make([]domain.VectorRecord, 0, len(input.Chunks))
	for _, chunk := range input.Chunks {
		if strings.TrimSpace(chunk.Text) == "" {
			continue
		}
		vec, err := ix.embedder.GenerateEmbedding(ctx, EmbeddingInput(input.Document, chunk.Text))
		if err != nil {
			log.Printf("indexer: skipping chunk %d of %s: %v", chunk.Index, input.Document.Name, err)
			continue
		}
		records = append(records, domain.VectorRecord{
			ID:       RecordID(input.DocumentKey, chunk.Index),
			Values:   vec,
			Metadata: recordMetadata(input, chunk),
		})
	}

	for start := 0; start < len(records); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := ix.upsertBatch(ctx, input.Namespace, records[start:end]); err != nil {
			span.SetError(err)
			return records[:start], domain.NewPartialBatchError(start, end, err)
		}
	}

	return records, nil
}

func (ix *Indexer) upsertBatch(ctx context.Context, namespace string, batch []domain.VectorRecord) error {
	ctx, cancel := context.WithTimeout(ctx, ix.upsertTimeout)
	defer cancel()
	return ix.store.Upsert(ctx, namespace, batch)
}

func recordMetadata(input IndexInput, chunk domain.Chunk) map[string]any {
	doc := input.Document
	source := doc.SourceURI
	if source == "" {
		source = doc.Name
	}

	meta := map[string]any{
		domain.MetaFileID:       doc.ID,
		domain.MetaFilename:     doc.Name,
		domain.MetaTitle:        doc.Name,
		domain.MetaSource:       source,
		domain.MetaFileType:     doc.Format().Extension(),
		domain.MetaModifiedTime: doc.ModifiedTime,
		domain.MetaChunkIndex:   chunk.Index,
		domain.MetaContent:      truncate(chunk.Text, contentPreviewRunes),
	}
	if input.TargetID != "" {
		meta[domain.MetaTargetID] = input.TargetID
	}
	for k, v := range chunk.Metadata {
		meta[k] = v
	}
	for k, v := range input.Extra {
		meta[k] = v
	}
	return meta
}

func truncate(s string, maxRunes int) string {
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}
