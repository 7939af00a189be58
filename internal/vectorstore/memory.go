package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cloo-solutions/ragsync/internal/domain"
)

// MemoryStore is an in-process vector index using cosine similarity.
// It is safe for concurrent use.
type MemoryStore struct {
	mu         sync.RWMutex
	dimension  int
	namespaces map[string]map[string]domain.VectorRecord
}

// NewMemoryStore creates an empty store. dimension is reported by Stats only.
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		dimension:  dimension,
		namespaces: make(map[string]map[string]domain.VectorRecord),
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, namespace string, records []domain.VectorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = make(map[string]domain.VectorRecord)
		s.namespaces[namespace] = ns
	}
	for _, r := range records {
		ns[r.ID] = copyRecord(r)
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]domain.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns := s.namespaces[namespace]
	matches := make([]domain.Match, 0, len(ns))
	for id, r := range ns {
		matches = append(matches, domain.Match{
			ID:       id,
			Score:    cosine(vector, r.Values),
			Metadata: copyMeta(r.Metadata),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *MemoryStore) Fetch(ctx context.Context, namespace string, ids []string) (map[string]domain.VectorRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.VectorRecord, len(ids))
	ns := s.namespaces[namespace]
	for _, id := range ids {
		if r, ok := ns[id]; ok {
			out[id] = copyRecord(r)
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := s.namespaces[namespace]
	for _, id := range ids {
		delete(ns, id)
	}
	return nil
}

func (s *MemoryStore) DeleteByFilter(ctx context.Context, namespace string, filter map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(filter) == 0 {
		return fmt.Errorf("delete by filter requires at least one condition")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := s.namespaces[namespace]
	for id, r := range ns {
		if MatchesFilter(r.Metadata, filter) {
			delete(ns, id)
		}
	}
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context) (domain.IndexStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.IndexStats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.IndexStats{
		Dimension:  s.dimension,
		Namespaces: make(map[string]int64, len(s.namespaces)),
	}
	for name, ns := range s.namespaces {
		stats.Namespaces[name] = int64(len(ns))
		stats.TotalRecordCount += int64(len(ns))
	}
	return stats, nil
}

// MatchesFilter reports whether meta has every filter key with an equal value.
// Values compare by their printed form so ints and JSON float64s agree.
func MatchesFilter(meta, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := meta[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func copyRecord(r domain.VectorRecord) domain.VectorRecord {
	values := make([]float32, len(r.Values))
	copy(values, r.Values)
	return domain.VectorRecord{ID: r.ID, Values: values, Metadata: copyMeta(r.Metadata)}
}

func copyMeta(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
