// Package repository implements vault record and fingerprint index persistence in
// memory, PostgreSQL and MySQL.
package repository

import (
	"context"
	"sync"

	vaultDomain "github.com/allisson/cardvault/internal/vault/domain"
)

// MemoryRecordRepository keeps records in an arena of slots indexed by token. Freed
// slots are reused. Not durable.
type MemoryRecordRepository struct {
	mu    sync.RWMutex
	slots []*vaultDomain.VaultRecord
	index map[string]int
	free  []int
}

// NewMemoryRecordRepository creates an empty in-memory record repository.
func NewMemoryRecordRepository() *MemoryRecordRepository {
	return &MemoryRecordRepository{index: make(map[string]int)}
}

// Get returns a copy of the record for token.
func (m *MemoryRecordRepository) Get(_ context.Context, token string) (*vaultDomain.VaultRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	slot, ok := m.index[token]
	if !ok {
		return nil, vaultDomain.ErrCardNotFound
	}
	return m.slots[slot].Clone(), nil
}

// Create stores a copy of a record whose token is not in use yet.
func (m *MemoryRecordRepository) Create(_ context.Context, record *vaultDomain.VaultRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[record.Token]; ok {
		return vaultDomain.ErrDuplicateToken
	}
	m.insert(record.Clone())
	return nil
}

// Put stores a copy of record, reusing its slot when the token exists.
func (m *MemoryRecordRepository) Put(_ context.Context, record *vaultDomain.VaultRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := record.Clone()
	if slot, ok := m.index[record.Token]; ok {
		m.slots[slot] = stored
		return nil
	}
	m.insert(stored)
	return nil
}

// insert places stored in a free slot or a new one. The caller holds mu.
func (m *MemoryRecordRepository) insert(stored *vaultDomain.VaultRecord) {
	if n := len(m.free); n > 0 {
		slot := m.free[n-1]
		m.free = m.free[:n-1]
		m.slots[slot] = stored
		m.index[stored.Token] = slot
		return
	}

	m.slots = append(m.slots, stored)
	m.index[stored.Token] = len(m.slots) - 1
}

// Delete frees the slot for token.
func (m *MemoryRecordRepository) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.index[token]
	if !ok {
		return nil
	}
	m.slots[slot] = nil
	m.free = append(m.free, slot)
	delete(m.index, token)
	return nil
}

// ScanAll returns copies of every live record in slot order.
func (m *MemoryRecordRepository) ScanAll(_ context.Context) ([]*vaultDomain.VaultRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*vaultDomain.VaultRecord, 0, len(m.index))
	for _, record := range m.slots {
		if record != nil {
			out = append(out, record.Clone())
		}
	}
	return out, nil
}

// MemoryFingerprintRepository keeps the fingerprint index in a map. Not durable.
type MemoryFingerprintRepository struct {
	mu      sync.RWMutex
	entries map[string]vaultDomain.FingerprintEntry
}

// NewMemoryFingerprintRepository creates an empty in-memory fingerprint index.
func NewMemoryFingerprintRepository() *MemoryFingerprintRepository {
	return &MemoryFingerprintRepository{entries: make(map[string]vaultDomain.FingerprintEntry)}
}

// Get returns the entry for fingerprint.
func (m *MemoryFingerprintRepository) Get(
	_ context.Context,
	fingerprint string,
) (*vaultDomain.FingerprintEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[fingerprint]
	if !ok {
		return nil, vaultDomain.ErrCardNotFound
	}
	return &entry, nil
}

// Put inserts or replaces the entry.
func (m *MemoryFingerprintRepository) Put(_ context.Context, entry *vaultDomain.FingerprintEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Fingerprint] = *entry
	return nil
}

// Claim stores entry when the fingerprint is free or still points to replaceToken.
func (m *MemoryFingerprintRepository) Claim(
	_ context.Context,
	entry *vaultDomain.FingerprintEntry,
	replaceToken string,
) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.entries[entry.Fingerprint]; ok && current.Token != replaceToken {
		return false, nil
	}
	m.entries[entry.Fingerprint] = *entry
	return true, nil
}

// Delete removes the entry while it still points to token.
func (m *MemoryFingerprintRepository) Delete(_ context.Context, fingerprint, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[fingerprint]; ok && entry.Token == token {
		delete(m.entries, fingerprint)
	}
	return nil
}
