package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
	apperrors "github.com/allisson/cardvault/internal/errors"
	keysDomain "github.com/allisson/cardvault/internal/keys/domain"
)

func newKey(id string, purpose keysDomain.Purpose, status keysDomain.Status, version int) *keysDomain.KeyRecord {
	now := time.Now().UTC()
	return &keysDomain.KeyRecord{
		ID:             id,
		Purpose:        purpose,
		Status:         status,
		Algorithm:      cryptoDomain.AESGCM,
		Version:        version,
		RotationPeriod: 30 * 24 * time.Hour,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestMemoryKeyRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("create get update", func(t *testing.T) {
		repo := NewMemoryKeyRepository()
		key := newKey("k1", keysDomain.PurposePayment, keysDomain.StatusActive, 1)
		require.NoError(t, repo.Create(ctx, key))
		assert.ErrorIs(t, repo.Create(ctx, key), apperrors.ErrConflict)

		reason := "leaked"
		key.Status = keysDomain.StatusCompromised
		key.StatusReason = &reason
		require.NoError(t, repo.Update(ctx, key))

		reason = "mutated after update"
		got, err := repo.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, keysDomain.StatusCompromised, got.Status)
		assert.Equal(t, "leaked", *got.StatusReason)
	})

	t.Run("update if status", func(t *testing.T) {
		repo := NewMemoryKeyRepository()
		key := newKey("k1", keysDomain.PurposePayment, keysDomain.StatusActive, 1)
		require.NoError(t, repo.Create(ctx, key))

		key.Status = keysDomain.StatusRotating
		require.NoError(t, repo.UpdateIfStatus(ctx, key, keysDomain.StatusActive))
		assert.ErrorIs(t, repo.UpdateIfStatus(ctx, key, keysDomain.StatusActive), keysDomain.ErrKeyStatusChanged)
		assert.ErrorIs(t, repo.UpdateIfStatus(ctx, newKey("nope", keysDomain.PurposeData, keysDomain.StatusActive, 1),
			keysDomain.StatusActive), keysDomain.ErrKeyStatusChanged)

		got, err := repo.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, keysDomain.StatusRotating, got.Status)
	})

	t.Run("missing", func(t *testing.T) {
		repo := NewMemoryKeyRepository()
		_, err := repo.Get(ctx, "nope")
		assert.ErrorIs(t, err, keysDomain.ErrKeyNotFound)
		assert.ErrorIs(t, repo.Update(ctx, newKey("nope", keysDomain.PurposeData, keysDomain.StatusActive, 1)),
			keysDomain.ErrKeyNotFound)
	})

	t.Run("list filters and orders", func(t *testing.T) {
		repo := NewMemoryKeyRepository()
		require.NoError(t, repo.Create(ctx, newKey("p2", keysDomain.PurposePayment, keysDomain.StatusActive, 2)))
		require.NoError(t, repo.Create(ctx, newKey("p1", keysDomain.PurposePayment, keysDomain.StatusDeactivated, 1)))
		require.NoError(t, repo.Create(ctx, newKey("h1", keysDomain.PurposeHMAC, keysDomain.StatusActive, 1)))

		all, err := repo.List(ctx, keysDomain.KeyFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "h1", all[0].ID)
		assert.Equal(t, "p1", all[1].ID)
		assert.Equal(t, "p2", all[2].ID)

		payment, err := repo.List(ctx, keysDomain.KeyFilter{Purpose: keysDomain.PurposePayment})
		require.NoError(t, err)
		assert.Len(t, payment, 2)

		active, err := repo.List(ctx, keysDomain.KeyFilter{
			Purpose: keysDomain.PurposePayment,
			Status:  keysDomain.StatusActive,
		})
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "p2", active[0].ID)
	})
}
