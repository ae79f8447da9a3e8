package registry

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache event names reported to the Observer
const (
	CacheHit        = "hit"
	CacheMiss       = "miss"
	CacheInvalidate = "invalidate"
)

// PublicCache holds snapshots of publicly visible plugins for anonymous reads.
// A generation counter per id keeps a slow reader from re-inserting a snapshot
// that was invalidated while it was loading.
type PublicCache struct {
	lru      *expirable.LRU[string, *Plugin]
	mu       sync.Mutex
	gens     map[string]uint64
	observer Observer
}

// NewPublicCache creates a cache; size <= 0 disables caching
func NewPublicCache(size int, ttl time.Duration, observer Observer) *PublicCache {
	if size <= 0 {
		return nil
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &PublicCache{
		lru:      expirable.NewLRU[string, *Plugin](size, nil, ttl),
		gens:     make(map[string]uint64),
		observer: observer,
	}
}

// Get returns a cached snapshot and the generation to pass to Put on a miss
func (c *PublicCache) Get(id string) (*Plugin, uint64, bool) {
	if c == nil {
		return nil, 0, false
	}
	c.mu.Lock()
	gen := c.gens[id]
	c.mu.Unlock()

	if p, ok := c.lru.Get(id); ok {
		c.observer.CacheEvent(CacheHit)
		return p.Clone(), gen, true
	}
	c.observer.CacheEvent(CacheMiss)
	return nil, gen, false
}

// Put stores p if id has not been invalidated since gen was observed
func (c *PublicCache) Put(id string, gen uint64, p *Plugin) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[id] != gen {
		return
	}
	c.lru.Add(id, p.Clone())
}

// Invalidate drops id and bumps its generation
func (c *PublicCache) Invalidate(id string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.gens[id]++
	c.lru.Remove(id)
	c.mu.Unlock()
	c.observer.CacheEvent(CacheInvalidate)
}

// Len returns the number of cached snapshots
func (c *PublicCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
