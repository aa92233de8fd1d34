package embedding

import "sync"

// Cache maps content hashes to previously computed vectors. Only successful
// embeddings are ever stored; failed or partial results never land here. Hits
// are resolved before batching and never count against the provider quota.
type Cache struct {
	mu      sync.RWMutex
	entries map[string][]float32
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string][]float32)}
}

func (c *Cache) Get(hash string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vec, ok := c.entries[hash]
	return vec, ok
}

func (c *Cache) Put(hash string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[hash] = vector
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
