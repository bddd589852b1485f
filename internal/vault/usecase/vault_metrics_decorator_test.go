package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	metricsMocks "github.com/allisson/cardvault/internal/metrics/mocks"
	vaultDomain "github.com/allisson/cardvault/internal/vault/domain"
)

func TestVaultUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()
	metrics := metricsMocks.NewBusinessMetrics("vault")
	uc := NewVaultUseCaseWithMetrics(newFixture(t).uc, metrics)

	result, err := uc.StoreCard(ctx, visaCard(), vaultDomain.StoreOptions{}, writer)
	require.NoError(t, err)

	_, err = uc.RetrieveCard(ctx, "missing", vaultDomain.RetrieveOptions{}, reader)
	require.Error(t, err)

	_, err = uc.RetrieveCard(ctx, result.Token, vaultDomain.RetrieveOptions{}, writer)
	require.Error(t, err)

	rotation, err := uc.RotateKeys(ctx, admin)
	require.NoError(t, err)
	require.Equal(t, 1, rotation.ReencryptedCount)

	_, err = uc.PurgeExpired(ctx, 0, true, admin)
	require.NoError(t, err)

	require.NoError(t, uc.DeleteCard(ctx, result.Token, vaultDomain.DeleteOptions{}, writer))

	metrics.AssertCalled(t, "RecordOperation", mock.Anything, "vault", "store_card", "success")
	metrics.AssertCalled(t, "RecordOperation", mock.Anything, "vault", "retrieve_card", "error")
	metrics.AssertCalled(t, "RecordOperation", mock.Anything, "vault", "retrieve_card", "denied")
	metrics.AssertCalled(t, "RecordOperation", mock.Anything, "vault", "rotate_keys", "success")
	metrics.AssertCalled(t, "RecordItems", mock.Anything, "vault", "rotate_keys", "reencrypted", 1)
	metrics.AssertNotCalled(t, "RecordItems", mock.Anything, "vault", "purge_expired", mock.Anything, mock.Anything)
	metrics.AssertCalled(t, "RecordOperation", mock.Anything, "vault", "delete_card", "success")
	metrics.AssertCalled(t, "RecordDuration", mock.Anything, "vault", "store_card", mock.Anything, "success")
}
