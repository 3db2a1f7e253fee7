package gmail

import (
	"context"

	"github.com/harbormail/mailferry/internal/domain"
	"github.com/harbormail/mailferry/internal/ports"
)

// LabelLister is the slice of the client the resolver needs.
type LabelLister interface {
	ListLabels(ctx context.Context) ([]domain.Label, error)
}

// LabelResolver maps label names to ids with a cache in front of the labels
// listing. Lookups cache on success only, so a missing label or a failed
// listing leaves the cache untouched and the next resolve lists again.
// The resolver is the only writer of the label cache.
type LabelResolver struct {
	client LabelLister
	cache  ports.LabelCache
	logger ports.Logger
}

// NewLabelResolver builds a resolver over the given listing client and cache.
func NewLabelResolver(client LabelLister, cache ports.LabelCache, logger ports.Logger) *LabelResolver {
	return &LabelResolver{client: client, cache: cache, logger: logger}
}

// Resolve returns the id for an exact label name. The bool reports whether
// the label exists. Listing failures are logged and reported as absent
// rather than returned, so callers treat lookup and outage the same way.
func (r *LabelResolver) Resolve(ctx context.Context, name string) (domain.LabelID, bool) {
	if id, ok, err := r.cache.Get(ctx, name); err != nil {
		r.logger.Warn("label cache read failed", ports.Err(err), ports.String("label", name))
	} else if ok {
		return id, true
	}

	labels, err := r.client.ListLabels(ctx)
	if err != nil {
		r.logger.Error("list labels failed", ports.Err(err), ports.String("label", name))
		return "", false
	}

	for _, l := range labels {
		if l.Name == name {
			if err := r.cache.Put(ctx, name, l.ID); err != nil {
				r.logger.Warn("label cache write failed", ports.Err(err), ports.String("label", name))
			}
			return l.ID, true
		}
	}

	r.logger.Debug("label not found", ports.String("label", name), ports.Int("labels_seen", len(labels)))
	return "", false
}

// Invalidate drops every cached mapping.
func (r *LabelResolver) Invalidate(ctx context.Context) {
	if err := r.cache.Invalidate(ctx); err != nil {
		r.logger.Warn("label cache invalidate failed", ports.Err(err))
	}
}
