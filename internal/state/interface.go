// Package state provides SQLite-based durable storage for the
// orchestration core. Channels, messages, lifecycle records, and hierarchy
// maps are all persisted through the MemoryStore contract.
package state

import (
	"context"
	"io"
)

// StoreOptions qualifies a stored value.
type StoreOptions struct {
	// Type names the entity kind (channel, message, lifecycle, ...).
	Type string
	// Tags are free-form labels for the collaborator's own indexing.
	Tags []string
	// Partition groups related keys (e.g. "messages", "archive").
	Partition string
}

// MemoryStore is the write contract the orchestration core requires of its
// persistence collaborator. The core keeps its own in-memory caches; read
// and query capability beyond that is the collaborator's concern.
type MemoryStore interface {
	io.Closer
	// Store persists value under key. Storing the same (partition, key)
	// twice replaces the earlier value.
	Store(ctx context.Context, key string, value any, opts StoreOptions) error
}

// Migrator handles database schema migrations.
// Separating this allows clients to depend only on migration functionality.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Compile-time verification that both implementations satisfy the contract.
var (
	_ MemoryStore = (*DB)(nil)
	_ Migrator    = (*DB)(nil)
	_ MemoryStore = (*MemStore)(nil)
)
