package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TreeCache holds the flat, key-sorted node list of a tenant for tree reads.
// Positioning never consults it.
//
// Each tenant has a generation that Invalidate advances. Set stores nodes
// only while the generation still equals the one read before the nodes were
// loaded, so a read that raced a committed write is never cached.
type TreeCache interface {
	Get(ctx context.Context, tenantID uuid.UUID) ([]Node, bool, error)
	Generation(ctx context.Context, tenantID uuid.UUID) (uint64, error)
	Set(ctx context.Context, tenantID uuid.UUID, generation uint64, nodes []Node) (bool, error)
	Invalidate(ctx context.Context, tenantID uuid.UUID) error
}

type noopTreeCache struct{}

func NewNoopTreeCache() TreeCache { return noopTreeCache{} }

func (noopTreeCache) Get(context.Context, uuid.UUID) ([]Node, bool, error)         { return nil, false, nil }
func (noopTreeCache) Generation(context.Context, uuid.UUID) (uint64, error)        { return 0, nil }
func (noopTreeCache) Set(context.Context, uuid.UUID, uint64, []Node) (bool, error) { return false, nil }
func (noopTreeCache) Invalidate(context.Context, uuid.UUID) error                  { return nil }

type cachedTree struct {
	Nodes     []Node
	ExpiresAt time.Time
}

type MemoryTreeCache struct {
	mu          sync.RWMutex
	ttl         time.Duration
	entries     map[uuid.UUID]cachedTree
	generations map[uuid.UUID]uint64
	now         func() time.Time
}

// NewMemoryTreeCache returns a process local cache. A zero ttl keeps entries
// until they are invalidated.
func NewMemoryTreeCache(ttl time.Duration) *MemoryTreeCache {
	return &MemoryTreeCache{
		ttl:         ttl,
		entries:     make(map[uuid.UUID]cachedTree),
		generations: make(map[uuid.UUID]uint64),
		now:         time.Now,
	}
}

func (c *MemoryTreeCache) Get(_ context.Context, tenantID uuid.UUID) ([]Node, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[tenantID]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !entry.ExpiresAt.IsZero() && !c.now().Before(entry.ExpiresAt) {
		c.mu.Lock()
		delete(c.entries, tenantID)
		c.mu.Unlock()
		return nil, false, nil
	}
	return cloneNodes(entry.Nodes), true, nil
}

func (c *MemoryTreeCache) Generation(_ context.Context, tenantID uuid.UUID) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[tenantID], nil
}

func (c *MemoryTreeCache) Set(_ context.Context, tenantID uuid.UUID, generation uint64, nodes []Node) (bool, error) {
	if tenantID == uuid.Nil {
		return false, nil
	}
	entry := cachedTree{Nodes: cloneNodes(nodes)}
	if c.ttl > 0 {
		entry.ExpiresAt = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[tenantID] != generation {
		return false, nil
	}
	c.entries[tenantID] = entry
	return true, nil
}

func (c *MemoryTreeCache) Invalidate(_ context.Context, tenantID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[tenantID]++
	delete(c.entries, tenantID)
	return nil
}

func cloneNodes(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		n.ParentID = copyID(n.ParentID)
		out[i] = n
	}
	return out
}
