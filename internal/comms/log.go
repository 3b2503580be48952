package comms

import (
	"context"

	"github.com/agenthive/hive/internal/state"
	"github.com/agenthive/hive/pkg/models"
)

// Storage partitions used by the hub's durable log.
const (
	partitionChannels    = "channels"
	partitionMessages    = "messages"
	partitionHierarchies = "hierarchies"
)

// Log writes the hub's durable state through the memory store contract.
// The hub reads only from its own in-memory caches; the log is write-only.
// A nil Log is a safe no-op so the hub can run without persistence.
type Log struct {
	store state.MemoryStore
}

// NewLog creates a log backed by the given store.
func NewLog(store state.MemoryStore) *Log {
	if store == nil {
		return nil
	}
	return &Log{store: store}
}

// SaveChannel persists a channel record.
func (l *Log) SaveChannel(ctx context.Context, ch *models.Channel) error {
	if l == nil {
		return nil
	}
	return l.store.Store(ctx, ch.ID, ch, state.StoreOptions{
		Type:      "channel",
		Tags:      []string{string(ch.Kind)},
		Partition: partitionChannels,
	})
}

// SaveMessage persists a message record.
func (l *Log) SaveMessage(ctx context.Context, m *models.Message) error {
	if l == nil {
		return nil
	}
	return l.store.Store(ctx, m.ID, m, state.StoreOptions{
		Type:      "message",
		Tags:      []string{string(m.Type)},
		Partition: partitionMessages,
	})
}

// SaveHierarchy persists a hierarchy's direction-to-channel mapping.
func (l *Log) SaveHierarchy(ctx context.Context, hierarchyID string, mapping map[string]string) error {
	if l == nil {
		return nil
	}
	return l.store.Store(ctx, hierarchyID, mapping, state.StoreOptions{
		Type:      "hierarchy",
		Partition: partitionHierarchies,
	})
}
