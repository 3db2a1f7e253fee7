package ports

import "context"

// CursorStore persists the opaque listing cursor so an interrupted sync can
// resume where it stopped.
// Implementations persist atomically so a crash never leaves a torn cursor.
type CursorStore interface {
	// Cursor retrieves the stored cursor.
	// Returns an empty cursor and nil error when none has been stored.
	Cursor(ctx context.Context) (string, error)

	// SetCursor stores the cursor. Storing an empty cursor clears it.
	SetCursor(ctx context.Context, cursor string) error
}
