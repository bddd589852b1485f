package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
)

func newAuditEntry(subject string, op accessDomain.Operation, outcome accessDomain.Outcome, ts time.Time) *accessDomain.AuditEntry {
	return &accessDomain.AuditEntry{
		ID:        uuid.Must(uuid.NewV7()),
		Timestamp: ts,
		Operation: op,
		SubjectID: subject,
		Level:     accessDomain.LevelElevated,
		Token:     "tok_" + subject,
		Outcome:   outcome,
	}
}

func TestMemoryAuditRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAuditRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	keyID := "key-1"
	signed := newAuditEntry("alice", accessDomain.OpRetrieveCard, accessDomain.OutcomeAllowed, base)
	signed.Signature = []byte{1, 2, 3}
	signed.SigningKeyID = &keyID

	require.NoError(t, repo.Create(ctx, signed))
	require.NoError(t, repo.Create(ctx, newAuditEntry("bob", accessDomain.OpDeleteCard, accessDomain.OutcomeDenied, base.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, newAuditEntry("alice", accessDomain.OpStoreCard, accessDomain.OutcomeAllowed, base.Add(2*time.Minute))))

	t.Run("stores copies", func(t *testing.T) {
		signed.Signature[0] = 0xff
		entries, err := repo.List(ctx, accessDomain.AuditFilter{SubjectID: "alice", Limit: 1})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, []byte{1, 2, 3}, entries[0].Signature)
		assert.Equal(t, "key-1", *entries[0].SigningKeyID)
	})

	from := base.Add(time.Minute)
	to := base.Add(time.Minute)
	tests := []struct {
		name   string
		filter accessDomain.AuditFilter
		want   int
	}{
		{name: "all", filter: accessDomain.AuditFilter{}, want: 3},
		{name: "subject", filter: accessDomain.AuditFilter{SubjectID: "alice"}, want: 2},
		{name: "operation", filter: accessDomain.AuditFilter{Operation: accessDomain.OpDeleteCard}, want: 1},
		{name: "outcome", filter: accessDomain.AuditFilter{Outcome: accessDomain.OutcomeDenied}, want: 1},
		{name: "token", filter: accessDomain.AuditFilter{Token: "tok_bob"}, want: 1},
		{name: "inclusive window", filter: accessDomain.AuditFilter{From: &from, To: &to}, want: 1},
		{name: "from", filter: accessDomain.AuditFilter{From: &from}, want: 2},
		{name: "offset", filter: accessDomain.AuditFilter{Offset: 2}, want: 1},
		{name: "offset and limit", filter: accessDomain.AuditFilter{Offset: 1, Limit: 1}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, entries, tt.want)
		})
	}
}
