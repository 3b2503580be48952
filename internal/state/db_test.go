package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// tempDBPath returns a path to a temp database file.
func tempDBPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "test.db")
}

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestOpen(t *testing.T) {
	path := tempDBPath(t)
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("database file does not exist at %s", path)
	}
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "c", "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("parent directories were not created: %v", err)
	}
}

func TestDB_StoreAndGet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	value := map[string]any{"name": "planning", "kind": "broadcast"}
	opts := StoreOptions{Type: "channel", Tags: []string{"comms"}, Partition: "channels"}
	if err := db.Store(ctx, "ch-1", value, opts); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	raw, err := db.Get(ctx, "channels", "ch-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("stored value is not valid JSON: %v", err)
	}
	if got["name"] != "planning" {
		t.Errorf("stored name = %v, want planning", got["name"])
	}
}

func TestDB_Store_Replaces(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	opts := StoreOptions{Partition: "channels"}

	if err := db.Store(ctx, "ch-1", map[string]string{"v": "first"}, opts); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := db.Store(ctx, "ch-1", map[string]string{"v": "second"}, opts); err != nil {
		t.Fatalf("second Store failed: %v", err)
	}

	records, err := db.List(ctx, "channels")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("List returned %d records, want 1", len(records))
	}

	var got map[string]string
	if err := json.Unmarshal(records[0].Value, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["v"] != "second" {
		t.Errorf("value = %q, want %q", got["v"], "second")
	}
}

func TestDB_Store_EmptyKey(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Store(context.Background(), "", "value", StoreOptions{}); err == nil {
		t.Error("Store with empty key should fail")
	}
}

func TestDB_Get_Missing(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.Get(context.Background(), "channels", "nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Get for missing key = %v, want sql.ErrNoRows", err)
	}
}

func TestDB_CountByPartition(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i, partition := range []string{"channels", "channels", "messages"} {
		key := string(rune('a' + i))
		if err := db.Store(ctx, key, i, StoreOptions{Partition: partition}); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}

	counts, err := db.CountByPartition(ctx)
	if err != nil {
		t.Fatalf("CountByPartition failed: %v", err)
	}
	if counts["channels"] != 2 || counts["messages"] != 1 {
		t.Errorf("counts = %v, want channels:2 messages:1", counts)
	}
}

func TestDB_PurgeOlderThan(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.Store(ctx, "old", "v", StoreOptions{Partition: "messages"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	// Nothing is older than an hour yet.
	n, err := db.PurgeOlderThan(ctx, "messages", time.Hour)
	if err != nil {
		t.Fatalf("PurgeOlderThan failed: %v", err)
	}
	if n != 0 {
		t.Errorf("purged %d records, want 0", n)
	}

	// Everything is older than a negative cutoff in the future.
	n, err = db.PurgeOlderThan(ctx, "messages", -time.Hour)
	if err != nil {
		t.Fatalf("PurgeOlderThan failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d records, want 1", n)
	}
}

func TestMemStore_StoreAndGet(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if err := s.Store(ctx, "a1", map[string]string{"state": "active"}, StoreOptions{Partition: "lifecycle"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	raw := s.Get("lifecycle", "a1")
	if raw == nil {
		t.Fatal("Get returned nil for stored key")
	}

	var got map[string]string
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["state"] != "active" {
		t.Errorf("state = %q, want active", got["state"])
	}

	if s.Count("lifecycle") != 1 {
		t.Errorf("Count = %d, want 1", s.Count("lifecycle"))
	}
	if s.Count("other") != 0 {
		t.Errorf("Count(other) = %d, want 0", s.Count("other"))
	}
}

func TestMemStore_EmptyKey(t *testing.T) {
	s := NewMemStore()
	if err := s.Store(context.Background(), "", "v", StoreOptions{}); err == nil {
		t.Error("Store with empty key should fail")
	}
}
