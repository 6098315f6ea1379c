package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreRecordAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Time: base, ZoneID: "z1", ZoneName: "Kitchen", Command: "play", Result: "executed"},
		{Time: base.Add(time.Minute), ZoneID: "z2", ZoneName: "Garden", Command: "mute", Result: "invalid_target", Error: "command target invalid"},
		{Time: base.Add(2 * time.Minute), ZoneID: "z1", ZoneName: "Kitchen", Command: "dance", Result: "unsupported"},
	}
	for _, e := range entries {
		if err := store.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := store.List(ctx, "", 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(got))
	}
	if got[0].Command != "dance" || got[2].Command != "play" {
		t.Errorf("Expected most recent first, got %q ... %q", got[0].Command, got[2].Command)
	}
	if got[0].ID == "" {
		t.Error("Expected generated ID")
	}
	if got[1].Error != "command target invalid" {
		t.Errorf("Expected error message, got %q", got[1].Error)
	}
	if !got[2].Time.Equal(base) {
		t.Errorf("Expected time %v, got %v", base, got[2].Time)
	}

	kitchen, err := store.List(ctx, "z1", 10, 0)
	if err != nil {
		t.Fatalf("List zone: %v", err)
	}
	if len(kitchen) != 2 {
		t.Errorf("Expected 2 Kitchen entries, got %d", len(kitchen))
	}

	page, err := store.List(ctx, "", 1, 1)
	if err != nil {
		t.Fatalf("List page: %v", err)
	}
	if len(page) != 1 || page[0].Command != "mute" {
		t.Errorf("Expected second entry on page 2, got %+v", page)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected count 3, got %d", count)
	}
}

func TestStoreListEmpty(t *testing.T) {
	store := newTestStore(t)

	got, err := store.List(context.Background(), "", 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", got)
	}
}

func TestStorePrune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	store.Record(ctx, Entry{Time: now.Add(-48 * time.Hour), Command: "play", Result: "executed"})
	store.Record(ctx, Entry{Time: now, Command: "pause", Result: "executed"})

	n, err := store.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 pruned entry, got %d", n)
	}

	count, _ := store.Count(ctx)
	if count != 1 {
		t.Errorf("Expected 1 remaining entry, got %d", count)
	}
}

func TestStorePersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Record(ctx, Entry{Command: "next", Result: "executed"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	store.Close()

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 entry after reopen, got %d", count)
	}
}
