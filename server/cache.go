package server

import (
	"strconv"
	"sync"

	"newsdesk/relations"
)

// PageCache tracks a cache epoch per user. Relation mutations bump the
// owner's epoch; the epoch is part of the page cache key, so every cached
// rendering for that user becomes unreachable at once and the stale entries
// age out through the cache TTL.
type PageCache struct {
	mu     sync.RWMutex
	epochs map[string]uint64
}

func NewPageCache() *PageCache {
	return &PageCache{epochs: make(map[string]uint64)}
}

// Invalidate implements relations.Invalidator.
func (p *PageCache) Invalidate(userID string, collection relations.Collection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.epochs[userID]++
}

// Epoch returns the user's current cache epoch as a key fragment.
func (p *PageCache) Epoch(userID string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return strconv.FormatUint(p.epochs[userID], 10)
}
