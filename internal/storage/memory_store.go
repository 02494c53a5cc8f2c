package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps records in process memory. It backs the "memory"
// backend and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
	writes  int
}

// NewMemoryStore creates an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]byte),
	}
}

// Get implements BlobStore.
func (m *MemoryStore) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if data, ok := m.records[id]; ok {
		return clone(data), nil
	}
	return nil, ErrNotFound
}

// Set implements BlobStore.
func (m *MemoryStore) Set(ctx context.Context, id string, value []byte) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[id] = cloneNonNil(value)
	m.writes++
	return nil
}

// SetIfAbsent implements BlobStore.
func (m *MemoryStore) SetIfAbsent(ctx context.Context, id string, value []byte) ([]byte, bool, error) {
	if err := ValidateID(id); err != nil {
		return nil, false, err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.records[id]; ok {
		return clone(existing), false, nil
	}
	m.records[id] = cloneNonNil(value)
	m.writes++
	return clone(value), true, nil
}

// Delete implements BlobStore.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, id)
	return nil
}

// Close implements BlobStore.
func (m *MemoryStore) Close() error {
	return nil
}

// IDs returns the stored ids in sorted order.
func (m *MemoryStore) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns a deep copy of every record.
func (m *MemoryStore) Snapshot() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]byte, len(m.records))
	for id, data := range m.records {
		out[id] = clone(data)
	}
	return out
}

// Writes counts successful Set and creating SetIfAbsent calls.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

func cloneNonNil(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
