package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// VectorRepository stores vector records in Postgres with pgvector.
// Namespaces are a column; every query is scoped to one.
type VectorRepository struct {
	db        dbtx
	tx        *TxRunner
	dimension int
}

func NewVectorRepository(pool *pgxpool.Pool, dimension int) *VectorRepository {
	return &VectorRepository{db: pool, tx: NewTxRunner(pool), dimension: dimension}
}

// Upsert writes all records in one transaction.
func (r *VectorRepository) Upsert(ctx context.Context, namespace string, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.tx.WithTx(ctx, func(tx pgx.Tx) error {
		for _, rec := range records {
			meta, err := json.Marshal(metadataOrEmpty(rec.Metadata))
			if err != nil {
				return fmt.Errorf("failed to encode metadata for %s: %w", rec.ID, err)
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO vector_records (namespace, id, embedding, metadata, updated_at)
				 VALUES ($1, $2, $3, $4, now())
				 ON CONFLICT (namespace, id) DO UPDATE
				 SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata, updated_at = now()`,
				namespace, rec.ID, pgvector.NewVector(rec.Values), meta,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *VectorRepository) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = 10
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, metadata, 1 - (embedding <=> $2) AS score
		 FROM vector_records
		 WHERE namespace = $1
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		namespace, pgvector.NewVector(vector), topK,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]domain.Match, 0, topK)
	for rows.Next() {
		var m domain.Match
		var meta []byte
		var score float64
		if err := rows.Scan(&m.ID, &meta, &score); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(meta, &m.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", m.ID, err)
		}
		m.Score = float32(score)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *VectorRepository) Fetch(ctx context.Context, namespace string, ids []string) (map[string]domain.VectorRecord, error) {
	out := make(map[string]domain.VectorRecord, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, embedding::text, metadata
		 FROM vector_records
		 WHERE namespace = $1 AND id = ANY($2)`,
		namespace, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var vec pgvector.Vector
		var meta []byte
		if err := rows.Scan(&id, &vec, &meta); err != nil {
			return nil, err
		}
		rec := domain.VectorRecord{ID: id, Values: vec.Slice()}
		if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", id, err)
		}
		out[id] = rec
	}
	return out, rows.Err()
}

func (r *VectorRepository) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`DELETE FROM vector_records WHERE namespace = $1 AND id = ANY($2)`,
		namespace, ids,
	)
	return err
}

// DeleteByFilter removes records whose metadata contains every filter pair.
func (r *VectorRepository) DeleteByFilter(ctx context.Context, namespace string, filter map[string]any) error {
	if len(filter) == 0 {
		return fmt.Errorf("delete by filter requires at least one condition")
	}
	f, err := json.Marshal(filter)
	if err != nil {
		return fmt.Errorf("failed to encode filter: %w", err)
	}
	_, err = r.db.Exec(ctx,
		`DELETE FROM vector_records WHERE namespace = $1 AND metadata @> $2::jsonb`,
		namespace, f,
	)
	return err
}

func (r *VectorRepository) Stats(ctx context.Context) (domain.IndexStats, error) {
	rows, err := r.db.Query(ctx,
		`SELECT namespace, count(*) FROM vector_records GROUP BY namespace`,
	)
	if err != nil {
		return domain.IndexStats{}, err
	}
	defer rows.Close()

	stats := domain.IndexStats{
		Dimension:  r.dimension,
		Namespaces: make(map[string]int64),
	}
	for rows.Next() {
		var ns string
		var n int64
		if err := rows.Scan(&ns, &n); err != nil {
			return domain.IndexStats{}, err
		}
		stats.Namespaces[ns] = n
		stats.TotalRecordCount += n
	}
	return stats, rows.Err()
}

func metadataOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
