package ports

import (
	"context"
	"time"

	"github.com/harbormail/mailferry/internal/domain"
)

// MessageSink stores fetched messages durably.
// Implementations must tolerate the same message arriving twice; re-stored
// ids overwrite the previous copy.
type MessageSink interface {
	// Store persists a batch of messages.
	Store(ctx context.Context, msgs []domain.Message) error

	// Prune deletes messages fetched before the cutoff and returns how many
	// were removed.
	Prune(ctx context.Context, before time.Time) (int64, error)

	// Close releases resources held by the sink.
	Close() error
}
