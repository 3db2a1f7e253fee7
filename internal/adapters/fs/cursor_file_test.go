package fs

import (
	"context"
	"encoding/json"
	"os"
	"testing"
)

func TestCursorFileStoreRoundTrip(t *testing.T) {
	store := NewCursorFileStore(t.TempDir())
	ctx := context.Background()

	// No file yet means no cursor, not an error.
	cursor, err := store.Cursor(ctx)
	if err != nil {
		t.Fatalf("Cursor on empty dir: %v", err)
	}
	if cursor != "" {
		t.Fatalf("cursor = %q, want empty", cursor)
	}

	if err := store.SetCursor(ctx, "page-42"); err != nil {
		t.Fatalf("SetCursor: %v", err)
	}
	cursor, err = store.Cursor(ctx)
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	if cursor != "page-42" {
		t.Fatalf("cursor = %q, want page-42", cursor)
	}

	if err := store.SetCursor(ctx, "page-43"); err != nil {
		t.Fatalf("SetCursor overwrite: %v", err)
	}
	if cursor, _ = store.Cursor(ctx); cursor != "page-43" {
		t.Fatalf("cursor = %q, want page-43", cursor)
	}
}

func TestCursorFileStoreClear(t *testing.T) {
	store := NewCursorFileStore(t.TempDir())
	ctx := context.Background()

	if err := store.SetCursor(ctx, "page-1"); err != nil {
		t.Fatalf("SetCursor: %v", err)
	}
	if err := store.SetCursor(ctx, ""); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Fatalf("cursor file still present after clear: %v", err)
	}
	if cursor, err := store.Cursor(ctx); err != nil || cursor != "" {
		t.Fatalf("Cursor after clear = %q, %v, want empty, nil", cursor, err)
	}

	// Clearing twice is fine.
	if err := store.SetCursor(ctx, ""); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestCursorFileStoreOnDiskShape(t *testing.T) {
	store := NewCursorFileStore(t.TempDir())
	if err := store.SetCursor(context.Background(), "page-7"); err != nil {
		t.Fatalf("SetCursor: %v", err)
	}

	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read cursor file: %v", err)
	}

	var state cursorState
	if err := json.Unmarshal(data, &state); err != nil {
		t.Fatalf("cursor file is not valid JSON: %v", err)
	}
	if state.PageToken != "page-7" {
		t.Fatalf("pageToken = %q, want page-7", state.PageToken)
	}
	if state.UpdatedAt.IsZero() {
		t.Fatal("updatedAt not recorded")
	}
}
