package ports

import (
	"context"

	"github.com/harbormail/mailferry/internal/domain"
)

// LabelCache caches label name to id mappings between resolutions.
// Only the label resolver writes to the cache.
type LabelCache interface {
	// Get returns the cached id for a label name.
	// The bool reports whether a mapping was present.
	Get(ctx context.Context, name string) (domain.LabelID, bool, error)

	// Put stores a resolved mapping.
	Put(ctx context.Context, name string, id domain.LabelID) error

	// Invalidate drops every cached mapping.
	Invalidate(ctx context.Context) error
}
