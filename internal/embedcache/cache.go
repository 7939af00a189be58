// Package embedcache provides a content-addressed, bounded LRU cache for embeddings.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultCapacity is the default number of cached vectors.
	DefaultCapacity = 1000
	// DefaultMaxInputChars matches the provider's input window.
	DefaultMaxInputChars = 8000
)

// ComputeFunc produces the embedding for text on a cache miss.
type ComputeFunc func(ctx context.Context, text string) ([]float32, error)

// Config controls cache sizing.
type Config struct {
	Capacity      int
	MaxInputChars int
}

// Cache maps a fingerprint of the (truncated) text to its vector.
// It is safe for concurrent use. Concurrent misses on one key share a single
// compute call.
type Cache struct {
	entries       *lru.Cache[string, []float32]
	group         singleflight.Group
	maxInputChars int
}

// New creates a cache with the given configuration.
func New(cfg Config) (*Cache, error) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = DefaultMaxInputChars
	}
	entries, err := lru.New[string, []float32](cfg.Capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries, maxInputChars: cfg.MaxInputChars}, nil
}

// Truncate cuts text to the provider input window.
func (c *Cache) Truncate(text string) string {
	return truncateRunes(text, c.maxInputChars)
}

// Key returns the fingerprint of text.
func (c *Cache) Key(text string) string {
	sum := sha256.Sum256([]byte(c.Truncate(text)))
	return hex.EncodeToString(sum[:])
}

// GetOrCompute returns the cached vector for text, or calls fn with the
// truncated text and caches the result. The bool reports a cache hit.
// Errors are never cached. The returned slice is the caller's own copy.
func (c *Cache) GetOrCompute(ctx context.Context, text string, fn ComputeFunc) ([]float32, bool, error) {
	key := c.Key(text)
	if v, ok := c.entries.Get(key); ok {
		return cloneVector(v), true, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.entries.Get(key); ok {
			return v, nil
		}
		vec, err := fn(ctx, c.Truncate(text))
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, false, err
	}
	return cloneVector(v.([]float32)), false, nil
}

// Get looks up text without computing.
func (c *Cache) Get(text string) ([]float32, bool) {
	v, ok := c.entries.Get(c.Key(text))
	if !ok {
		return nil, false
	}
	return cloneVector(v), true
}

// Len returns the number of cached vectors.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.entries.Purge()
}

func cloneVector(v []float32) []float32 {
	return append([]float32(nil), v...)
}

func truncateRunes(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
