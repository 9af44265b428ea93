package index

import (
	"slices"
	"sync"
)

// Collection tracks the index versions in use: every write index receives
// each mutation, and at most one search index answers reads
type Collection struct {
	mu     sync.RWMutex
	search Index
	write  map[int]Index
}

// NewCollection creates an empty collection
func NewCollection() *Collection {
	return &Collection{write: make(map[int]Index)}
}

// SearchIndex returns the index used for reads, or nil if none is designated
func (c *Collection) SearchIndex() Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.search
}

// SetSearchIndex designates the index used for reads; nil clears it
func (c *Collection) SetSearchIndex(idx Index) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search = idx
}

// WriteIndexes returns every write index ordered by schema version
func (c *Collection) WriteIndexes() []Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Index, 0, len(c.write))
	for _, idx := range c.write {
		out = append(out, idx)
	}
	slices.SortFunc(out, func(a, b Index) int {
		return a.Schema().Version - b.Schema().Version
	})
	return out
}

// WriteIndex returns the write index for a schema version
func (c *Collection) WriteIndex(version int) (Index, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.write[version]
	return idx, ok
}

// AddWriteIndex starts sending mutations to idx, replacing any index of the
// same version
func (c *Collection) AddWriteIndex(idx Index) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.write[idx.Schema().Version] = idx
}

// RemoveWriteIndex stops sending mutations to the given version
func (c *Collection) RemoveWriteIndex(version int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.write, version)
}
