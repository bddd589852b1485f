// Package repository implements the append-only audit sink in memory, PostgreSQL and MySQL.
package repository

import (
	"context"
	"sync"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
)

// MemoryAuditRepository appends entries to a slice. Not durable.
type MemoryAuditRepository struct {
	mu      sync.RWMutex
	entries []*accessDomain.AuditEntry
}

// NewMemoryAuditRepository creates an empty in-memory audit repository.
func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

// Create appends a copy of entry.
func (m *MemoryAuditRepository) Create(_ context.Context, entry *accessDomain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, cloneEntry(entry))
	return nil
}

// List returns copies of matching entries in insertion order.
func (m *MemoryAuditRepository) List(
	_ context.Context,
	filter accessDomain.AuditFilter,
) ([]*accessDomain.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*accessDomain.AuditEntry
	skipped := 0
	for _, e := range m.entries {
		if !matches(e, filter) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
		out = append(out, cloneEntry(e))
	}
	return out, nil
}

func matches(e *accessDomain.AuditEntry, f accessDomain.AuditFilter) bool {
	switch {
	case f.SubjectID != "" && e.SubjectID != f.SubjectID:
		return false
	case f.Operation != "" && e.Operation != f.Operation:
		return false
	case f.Outcome != "" && e.Outcome != f.Outcome:
		return false
	case f.Token != "" && e.Token != f.Token:
		return false
	case f.From != nil && e.Timestamp.Before(*f.From):
		return false
	case f.To != nil && e.Timestamp.After(*f.To):
		return false
	}
	return true
}

func cloneEntry(e *accessDomain.AuditEntry) *accessDomain.AuditEntry {
	c := *e
	c.Signature = append([]byte(nil), e.Signature...)
	if e.SigningKeyID != nil {
		id := *e.SigningKeyID
		c.SigningKeyID = &id
	}
	return &c
}
