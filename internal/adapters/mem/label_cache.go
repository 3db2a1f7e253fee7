// Package mem provides in-process adapters backed by plain maps. They are
// the defaults when no external store is configured.
package mem

import (
	"context"
	"sync"

	"github.com/harbormail/mailferry/internal/domain"
)

// LabelCache implements ports.LabelCache with a mutex-guarded map.
type LabelCache struct {
	mu      sync.RWMutex
	entries map[string]domain.LabelID
}

// NewLabelCache creates an empty cache.
func NewLabelCache() *LabelCache {
	return &LabelCache{entries: make(map[string]domain.LabelID)}
}

// Get looks up a cached mapping.
func (c *LabelCache) Get(ctx context.Context, name string) (domain.LabelID, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.entries[name]
	return id, ok, nil
}

// Put stores a mapping.
func (c *LabelCache) Put(ctx context.Context, name string, id domain.LabelID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = id
	return nil
}

// Invalidate drops every mapping.
func (c *LabelCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]domain.LabelID)
	return nil
}
