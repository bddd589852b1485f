package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
	apperrors "github.com/allisson/cardvault/internal/errors"
	hsmDomain "github.com/allisson/cardvault/internal/hsm/domain"
)

func newEntry(id string, createdAt time.Time) *hsmDomain.KeyEntry {
	return &hsmDomain.KeyEntry{
		KeyID:         id,
		Purpose:       "payment",
		Algorithm:     cryptoDomain.AESGCM,
		WrappedKey:    []byte("wrapped-" + id),
		WrappingKeyID: "master-1",
		CreatedAt:     createdAt,
	}
}

func TestMemoryKeyStore(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("create and get returns a copy", func(t *testing.T) {
		store := NewMemoryKeyStore()
		entry := newEntry("k1", now)
		require.NoError(t, store.Create(ctx, entry))

		got, err := store.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, entry, got)

		got.WrappedKey[0] = 'X'
		again, err := store.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, byte('w'), again.WrappedKey[0])
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		store := NewMemoryKeyStore()
		require.NoError(t, store.Create(ctx, newEntry("k1", now)))
		err := store.Create(ctx, newEntry("k1", now))
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("missing id", func(t *testing.T) {
		store := NewMemoryKeyStore()
		_, err := store.Get(ctx, "nope")
		assert.ErrorIs(t, err, hsmDomain.ErrKeyNotFound)
	})

	t.Run("list orders by creation time", func(t *testing.T) {
		store := NewMemoryKeyStore()
		require.NoError(t, store.Create(ctx, newEntry("late", now.Add(time.Minute))))
		require.NoError(t, store.Create(ctx, newEntry("early", now)))

		entries, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "early", entries[0].KeyID)
		assert.Equal(t, "late", entries[1].KeyID)
	})
}
