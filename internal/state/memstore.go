package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemStore is an in-memory MemoryStore used by tests and by hosts that do
// not need durability.
type MemStore struct {
	mu      sync.RWMutex
	records map[string][]byte // "<partition>/<key>" -> JSON value
	types   map[string]string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

// Store persists value as JSON under (opts.Partition, key).
func (s *MemStore) Store(_ context.Context, key string, value any, opts StoreOptions) error {
	if key == "" {
		return fmt.Errorf("store: key must not be empty")
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value for %s: %w", key, err)
	}

	partition := opts.Partition
	if partition == "" {
		partition = "default"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[partition+"/"+key] = encoded
	s.types[partition+"/"+key] = opts.Type
	return nil
}

// Get returns the raw stored value, or nil if absent.
func (s *MemStore) Get(partition, key string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[partition+"/"+key]
}

// Count returns the number of stored records in a partition.
func (s *MemStore) Count(partition string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	prefix := partition + "/"
	for k := range s.records {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// Close releases nothing; it exists to satisfy MemoryStore.
func (s *MemStore) Close() error {
	return nil
}
