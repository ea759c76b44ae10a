package trajectory

import (
	"container/list"
	"sync"

	"github.com/fleray/Flight-Simulator/pkg/trace"
)

// DefaultCacheSize is the number of trajectories a Cache keeps when none is given.
const DefaultCacheSize = 8

// Cache memoizes Build by document content. The least recently used
// trajectory is evicted once the cache holds maxEntries.
// Safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	order      *list.List // front = most recently used
	entries    map[string]*list.Element

	hits   uint64
	misses uint64
}

type cacheEntry struct {
	digest string
	tr     Trajectory
}

// CacheStats reports cache usage.
type CacheStats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

// NewCache creates a Cache that keeps at most maxEntries trajectories.
func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheSize
	}
	return &Cache{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

// Build returns the trajectory of doc, building it only the first time a
// document with the same content is seen. hit reports whether the result
// came from the cache. A nil document is never cached.
func (c *Cache) Build(doc *trace.Document) (tr Trajectory, hit bool) {
	digest := doc.Digest()
	if digest == "" {
		return Build(doc), false
	}

	c.mu.Lock()
	if el, ok := c.entries[digest]; ok {
		c.order.MoveToFront(el)
		c.hits++
		tr = el.Value.(*cacheEntry).tr
		c.mu.Unlock()
		return tr, true
	}
	c.misses++
	c.mu.Unlock()

	// Build outside the lock; concurrent misses for one document yield equal results
	tr = Build(doc)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[digest]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*cacheEntry).tr, false
	}

	c.entries[digest] = c.order.PushFront(&cacheEntry{digest: digest, tr: tr})
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).digest)
	}

	return tr, false
}

// Stats returns the current cache usage.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Entries: c.order.Len(),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

// Clear drops every cached trajectory.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
}
