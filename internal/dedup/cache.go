// Package dedup implements the bounded FIFO membership cache that keeps a source from
// reprocessing recently seen feed items.
package dedup

import (
	"fmt"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/JakeFAU/wallpaper-armada/internal/armada"
)

// Cache remembers the most recently added identifiers, evicting the oldest once full.
//
// Has never refreshes an entry and Add ignores identifiers already present, so the underlying
// LRU order is exactly insertion order. The cache is not safe for concurrent use; each source
// owns its own instance. Contents are in-memory only and start empty on every process start.
type Cache struct {
	entries *simplelru.LRU[string, struct{}]
	size    int
}

// New builds a Cache holding at most size identifiers.
func New(size int) (*Cache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be > 0, got %d: %w", size, armada.ErrConfiguration)
	}
	entries, err := simplelru.NewLRU[string, struct{}](size, nil)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	return &Cache{entries: entries, size: size}, nil
}

// Has reports whether id is cached.
func (c *Cache) Has(id string) bool {
	return c.entries.Contains(id)
}

// Add caches id. When the cache is full the single oldest identifier is evicted.
func (c *Cache) Add(id string) {
	if c.entries.Contains(id) {
		return
	}
	c.entries.Add(id, struct{}{})
}

// Len returns the number of cached identifiers.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Size returns the configured capacity.
func (c *Cache) Size() int {
	return c.size
}

// Keys returns the cached identifiers from oldest to newest.
func (c *Cache) Keys() []string {
	return c.entries.Keys()
}
