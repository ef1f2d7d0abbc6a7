package ollama

import (
	"context"
	"sync"
)

// embedder is the minimal embedding interface the cache wraps.
type embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CachedEmbedder memoizes embeddings by exact text. When the capacity is
// reached the whole cache is flushed rather than tracking recency; query
// traffic is repetitive enough that the simple scheme holds a high hit rate.
type CachedEmbedder struct {
	inner    embedder
	capacity int

	mu    sync.RWMutex
	cache map[string][]float32
}

// NewCachedEmbedder wraps an embedder with a bounded memo cache.
func NewCachedEmbedder(inner embedder, capacity int) *CachedEmbedder {
	if capacity <= 0 {
		capacity = 1024
	}
	return &CachedEmbedder{
		inner:    inner,
		capacity: capacity,
		cache:    make(map[string][]float32),
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.RLock()
	vec, ok := c.cache[text]
	c.mu.RUnlock()
	if ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if len(c.cache) >= c.capacity {
		c.cache = make(map[string][]float32)
	}
	c.cache[text] = vec
	c.mu.Unlock()
	return vec, nil
}

// Flush drops all cached vectors. Called when the corpus is re-ingested.
func (c *CachedEmbedder) Flush() {
	c.mu.Lock()
	c.cache = make(map[string][]float32)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *CachedEmbedder) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
