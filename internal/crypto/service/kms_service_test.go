package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
)

// localKeeperURI returns a base64key:// URI backed by a fresh random key.
func localKeeperURI(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return "base64key://" + base64.URLEncoding.EncodeToString(key)
}

func TestKMSService_OpenKeeper(t *testing.T) {
	ctx := context.Background()
	kmsService := NewKMSService()

	t.Run("wraps and unwraps key material", func(t *testing.T) {
		keeper, err := kmsService.OpenKeeper(ctx, localKeeperURI(t))
		require.NoError(t, err)
		defer func() { assert.NoError(t, keeper.Close()) }()

		material := make([]byte, 32)
		_, err = rand.Read(material)
		require.NoError(t, err)

		wrapped, err := keeper.Encrypt(ctx, material)
		require.NoError(t, err)
		assert.NotEqual(t, material, wrapped)

		unwrapped, err := keeper.Decrypt(ctx, wrapped)
		require.NoError(t, err)
		assert.Equal(t, material, unwrapped)
	})

	t.Run("other keeper cannot unwrap", func(t *testing.T) {
		keeper1, err := kmsService.OpenKeeper(ctx, localKeeperURI(t))
		require.NoError(t, err)
		defer func() { assert.NoError(t, keeper1.Close()) }()

		keeper2, err := kmsService.OpenKeeper(ctx, localKeeperURI(t))
		require.NoError(t, err)
		defer func() { assert.NoError(t, keeper2.Close()) }()

		wrapped, err := keeper1.Encrypt(ctx, []byte("key material"))
		require.NoError(t, err)

		_, err = keeper2.Decrypt(ctx, wrapped)
		assert.Error(t, err)
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		for _, uri := range []string{"invalid://uri", "file:///etc/key", "", "::"} {
			keeper, err := kmsService.OpenKeeper(ctx, uri)
			assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKMSKeyURI, uri)
			assert.Nil(t, keeper)
		}
	})

	t.Run("supported scheme with bad key", func(t *testing.T) {
		keeper, err := kmsService.OpenKeeper(ctx, "base64key://not-base64!")
		assert.ErrorContains(t, err, "failed to open KMS keeper (base64key)")
		assert.NotErrorIs(t, err, cryptoDomain.ErrInvalidKMSKeyURI)
		assert.Nil(t, keeper)
	})
}
