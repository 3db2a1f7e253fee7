package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const cursorFileName = "cursor.json"

// cursorState is the on-disk shape of the listing cursor.
type cursorState struct {
	PageToken string    `json:"pageToken"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CursorFileStore implements ports.CursorStore using a JSON file.
type CursorFileStore struct {
	dir string
}

// NewCursorFileStore creates a new CursorFileStore for the given directory.
func NewCursorFileStore(dir string) *CursorFileStore {
	return &CursorFileStore{dir: dir}
}

// Cursor retrieves the last saved continuation token.
// Returns an empty token and nil error if no cursor file exists.
func (s *CursorFileStore) Cursor(ctx context.Context) (string, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	var state cursorState
	if err := json.Unmarshal(data, &state); err != nil {
		return "", err
	}

	return state.PageToken, nil
}

// SetCursor persists the token atomically.
// Uses atomic write (write to temp file, then rename) to prevent corruption.
// An empty token removes the cursor file so the next run starts fresh.
func (s *CursorFileStore) SetCursor(ctx context.Context, cursor string) error {
	path := s.Path()

	if cursor == "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	// Ensure directory exists
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cursorState{
		PageToken: cursor,
		UpdatedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}

	// Atomic rename
	return os.Rename(tmp, path)
}

// Path returns the full path to the cursor file.
func (s *CursorFileStore) Path() string {
	return filepath.Join(s.dir, cursorFileName)
}
