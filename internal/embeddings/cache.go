package embeddings

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a synchronized TTL + LRU store of computed vectors. Entries are
// copied on the way in and out so callers cannot mutate shared state.
type Cache struct {
	lru *expirable.LRU[string, []float32]
}

// NewCache creates a cache holding at most capacity vectors, each for ttl.
func NewCache(capacity int, ttl time.Duration) *Cache {
	return &Cache{lru: expirable.NewLRU[string, []float32](capacity, nil, ttl)}
}

// CacheKey identifies a vector by provider, task, model and a digest of the
// text. The raw text is never stored.
func CacheKey(provider string, task TaskType, model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return provider + "|" + string(task) + "|" + model + "|" + hex.EncodeToString(sum[:])
}

// Get returns a copy of the cached vector.
func (c *Cache) Get(key string) ([]float32, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return append([]float32(nil), v...), true
}

// Add stores a copy of vec under key.
func (c *Cache) Add(key string, vec []float32) {
	c.lru.Add(key, append([]float32(nil), vec...))
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.lru.Purge()
}
