// Package repository persists key lifecycle metadata in memory, PostgreSQL or MySQL.
package repository

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/allisson/cardvault/internal/errors"
	keysDomain "github.com/allisson/cardvault/internal/keys/domain"
)

// MemoryKeyRepository keeps key records in process memory. Not durable.
type MemoryKeyRepository struct {
	mu   sync.RWMutex
	keys map[string]*keysDomain.KeyRecord
}

// NewMemoryKeyRepository creates an empty in-memory key repository.
func NewMemoryKeyRepository() *MemoryKeyRepository {
	return &MemoryKeyRepository{keys: make(map[string]*keysDomain.KeyRecord)}
}

// Create stores a copy of key.
func (m *MemoryKeyRepository) Create(_ context.Context, key *keysDomain.KeyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.keys[key.ID]; ok {
		return apperrors.Wrap(apperrors.ErrConflict, "key already exists")
	}
	m.keys[key.ID] = cloneKey(key)
	return nil
}

// Update replaces the stored copy of key.
func (m *MemoryKeyRepository) Update(_ context.Context, key *keysDomain.KeyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.keys[key.ID]; !ok {
		return keysDomain.ErrKeyNotFound
	}
	m.keys[key.ID] = cloneKey(key)
	return nil
}

// UpdateIfStatus replaces the stored record only while its status is expected.
func (m *MemoryKeyRepository) UpdateIfStatus(
	_ context.Context,
	key *keysDomain.KeyRecord,
	expected keysDomain.Status,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.keys[key.ID]
	if !ok || stored.Status != expected {
		return keysDomain.ErrKeyStatusChanged
	}
	m.keys[key.ID] = cloneKey(key)
	return nil
}

// Get returns a copy of the record for id.
func (m *MemoryKeyRepository) Get(_ context.Context, id string) (*keysDomain.KeyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, ok := m.keys[id]
	if !ok {
		return nil, keysDomain.ErrKeyNotFound
	}
	return cloneKey(key), nil
}

// List returns copies of matching records ordered by purpose then version.
func (m *MemoryKeyRepository) List(
	_ context.Context,
	filter keysDomain.KeyFilter,
) ([]*keysDomain.KeyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*keysDomain.KeyRecord
	for _, key := range m.keys {
		if filter.Purpose != "" && key.Purpose != filter.Purpose {
			continue
		}
		if filter.Status != "" && key.Status != filter.Status {
			continue
		}
		out = append(out, cloneKey(key))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Purpose != out[j].Purpose {
			return out[i].Purpose < out[j].Purpose
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

func cloneKey(k *keysDomain.KeyRecord) *keysDomain.KeyRecord {
	c := *k
	if k.StatusReason != nil {
		reason := *k.StatusReason
		c.StatusReason = &reason
	}
	if k.LastRotatedAt != nil {
		at := *k.LastRotatedAt
		c.LastRotatedAt = &at
	}
	return &c
}
