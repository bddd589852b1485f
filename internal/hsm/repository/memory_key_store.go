// Package repository persists wrapped HSM key entries in memory, PostgreSQL or MySQL.
package repository

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/allisson/cardvault/internal/errors"
	hsmDomain "github.com/allisson/cardvault/internal/hsm/domain"
)

// MemoryKeyStore keeps key entries in process memory. Not durable.
type MemoryKeyStore struct {
	mu      sync.RWMutex
	entries map[string]*hsmDomain.KeyEntry
}

// NewMemoryKeyStore creates an empty in-memory key store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{entries: make(map[string]*hsmDomain.KeyEntry)}
}

// Create stores a copy of entry.
func (m *MemoryKeyStore) Create(_ context.Context, entry *hsmDomain.KeyEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[entry.KeyID]; ok {
		return apperrors.Wrap(apperrors.ErrConflict, "hsm key already exists")
	}
	m.entries[entry.KeyID] = cloneEntry(entry)
	return nil
}

// Get returns a copy of the entry for id.
func (m *MemoryKeyStore) Get(_ context.Context, id string) (*hsmDomain.KeyEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[id]
	if !ok {
		return nil, hsmDomain.ErrKeyNotFound
	}
	return cloneEntry(entry), nil
}

// List returns copies of all entries ordered by creation time.
func (m *MemoryKeyStore) List(_ context.Context) ([]*hsmDomain.KeyEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*hsmDomain.KeyEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, cloneEntry(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].KeyID < out[j].KeyID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func cloneEntry(e *hsmDomain.KeyEntry) *hsmDomain.KeyEntry {
	c := *e
	c.WrappedKey = append([]byte(nil), e.WrappedKey...)
	return &c
}
