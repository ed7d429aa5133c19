package llm

import (
	"container/list"
	"context"
	"sync"
)

// DefaultEmbedCacheSize is the embedding cache capacity used by the CLI.
const DefaultEmbedCacheSize = 256

// CachedClient wraps a Client with an LRU cache on Embed, keyed by the input
// text. Repeated embeddings of the same query (watch re-ingests, repeated
// searches) skip the backend round trip. GenerateText is never cached.
type CachedClient struct {
	inner    Client
	capacity int

	mu    sync.Mutex
	cache map[string]*list.Element
	lru   *list.List
}

var _ Client = (*CachedClient)(nil)

type embedEntry struct {
	key   string
	value []float32
}

// NewCachedClient wraps inner with an embedding cache of the given capacity.
func NewCachedClient(inner Client, capacity int) *CachedClient {
	if capacity <= 0 {
		capacity = DefaultEmbedCacheSize
	}
	return &CachedClient{
		inner:    inner,
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

func (c *CachedClient) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.inner.GenerateText(ctx, systemPrompt, userPrompt)
}

func (c *CachedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	if elem, ok := c.cache[text]; ok {
		c.lru.MoveToFront(elem)
		v := elem.Value.(*embedEntry).value
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	embedding, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if elem, ok := c.cache[text]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*embedEntry).value = embedding
	} else {
		c.cache[text] = c.lru.PushFront(&embedEntry{key: text, value: embedding})
		if c.lru.Len() > c.capacity {
			oldest := c.lru.Back()
			if oldest != nil {
				c.lru.Remove(oldest)
				delete(c.cache, oldest.Value.(*embedEntry).key)
			}
		}
	}
	c.mu.Unlock()
	return embedding, nil
}

func (c *CachedClient) Dimensions() int {
	return c.inner.Dimensions()
}

func (c *CachedClient) Close() error {
	return c.inner.Close()
}
