package mem

import (
	"context"
	"sync"
)

// CursorStore implements ports.CursorStore in memory. The cursor vanishes
// with the process, so interrupted runs start over from the first page.
type CursorStore struct {
	mu     sync.RWMutex
	cursor string
}

// NewCursorStore creates an empty store.
func NewCursorStore() *CursorStore {
	return &CursorStore{}
}

// Cursor returns the stored continuation token.
func (s *CursorStore) Cursor(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor, nil
}

// SetCursor replaces the stored token. An empty value clears it.
func (s *CursorStore) SetCursor(ctx context.Context, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = cursor
	return nil
}
