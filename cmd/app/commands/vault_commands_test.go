package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
	vaultDomain "github.com/allisson/cardvault/internal/vault/domain"
)

func TestOperatorContext(t *testing.T) {
	ac := OperatorContext("alice")
	assert.Equal(t, "alice", ac.SubjectID)
	assert.Equal(t, accessDomain.LevelAdmin, ac.Level)
	assert.Equal(t, maintenancePurpose, ac.Purpose)

	allowed, _ := accessDomain.Check(ac, accessDomain.OpRotateKeys)
	assert.True(t, allowed)
}

func TestRunRotateKeys(t *testing.T) {
	ctx := context.Background()
	ac := OperatorContext("cli")

	t.Run("completed-text", func(t *testing.T) {
		vault := &MockVault{}
		vault.On("RotateKeys", ctx, ac).Return(&vaultDomain.RotationResult{
			OldKeyID:         "old",
			NewKeyID:         "new",
			Total:            3,
			ReencryptedCount: 3,
			Completed:        true,
		}, nil)

		var out bytes.Buffer
		require.NoError(t, RunRotateKeys(ctx, vault, discardLogger(), &out, "cli", "text"))
		assert.Contains(t, out.String(), "Re-encrypted: 3")
		assert.Contains(t, out.String(), "Status: COMPLETED")
		vault.AssertExpectations(t)
	})

	t.Run("partial-failure-json", func(t *testing.T) {
		vault := &MockVault{}
		vault.On("RotateKeys", ctx, ac).Return(&vaultDomain.RotationResult{
			OldKeyID:         "old",
			NewKeyID:         "new",
			Total:            3,
			ReencryptedCount: 2,
			FailedCount:      1,
			FailedTokens:     []string{"tok_broken"},
		}, vaultDomain.ErrKeyRotationPartialFailure)

		var out bytes.Buffer
		err := RunRotateKeys(ctx, vault, discardLogger(), &out, "cli", "json")
		require.ErrorIs(t, err, vaultDomain.ErrKeyRotationPartialFailure)
		assert.Contains(t, err.Error(), "rerun to resume")

		var result map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		assert.Equal(t, float64(2), result["reencrypted_count"])
		assert.Equal(t, []any{"tok_broken"}, result["failed_tokens"])
		assert.Equal(t, false, result["completed"])
	})

	t.Run("failure", func(t *testing.T) {
		vault := &MockVault{}
		vault.On("RotateKeys", ctx, ac).Return(nil, errors.New("hsm unavailable"))

		var out bytes.Buffer
		err := RunRotateKeys(ctx, vault, discardLogger(), &out, "cli", "text")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to rotate keys")
		assert.Empty(t, out.String())
	})

	t.Run("invalid-format", func(t *testing.T) {
		err := RunRotateKeys(ctx, &MockVault{}, discardLogger(), &bytes.Buffer{}, "cli", "yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid format")
	})
}

func TestRunVaultStats(t *testing.T) {
	ctx := context.Background()
	stats := &vaultDomain.VaultStats{
		Total:   5,
		Active:  3,
		Expired: 1,
		Flagged: 1,
		ByKeyID: map[string]int{"key-b": 1, "key-a": 4},
	}

	t.Run("text", func(t *testing.T) {
		vault := &MockVault{}
		vault.On("GetVaultStats", ctx, OperatorContext("ops")).Return(stats, nil)

		var out bytes.Buffer
		require.NoError(t, RunVaultStats(ctx, vault, &out, "ops", "text"))
		assert.Contains(t, out.String(), "Active:   3")
		assert.Less(t, bytes.Index(out.Bytes(), []byte("key-a")), bytes.Index(out.Bytes(), []byte("key-b")))
	})

	t.Run("json", func(t *testing.T) {
		vault := &MockVault{}
		vault.On("GetVaultStats", ctx, OperatorContext("ops")).Return(stats, nil)

		var out bytes.Buffer
		require.NoError(t, RunVaultStats(ctx, vault, &out, "ops", "json"))

		var result map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		assert.Equal(t, float64(5), result["total"])
		assert.Equal(t, map[string]any{"key-a": float64(4), "key-b": float64(1)}, result["by_key_id"])
	})

	t.Run("denied", func(t *testing.T) {
		vault := &MockVault{}
		vault.On("GetVaultStats", ctx, OperatorContext("")).Return(nil, accessDomain.ErrAccessDenied)

		err := RunVaultStats(ctx, vault, &bytes.Buffer{}, "", "text")
		assert.ErrorIs(t, err, accessDomain.ErrAccessDenied)
	})
}

func TestRunPurgeExpiredCards(t *testing.T) {
	ctx := context.Background()
	ac := OperatorContext("cli")

	t.Run("dry-run", func(t *testing.T) {
		vault := &MockVault{}
		vault.On("PurgeExpired", ctx, 30*24*time.Hour, true, ac).Return(7, nil)

		var out bytes.Buffer
		require.NoError(t, RunPurgeExpiredCards(ctx, vault, discardLogger(), &out, 30, true, "cli", "text"))
		assert.Contains(t, out.String(), "Dry run: 7 expired card(s) would be deleted")
		vault.AssertExpectations(t)
	})

	t.Run("delete-json", func(t *testing.T) {
		vault := &MockVault{}
		vault.On("PurgeExpired", ctx, time.Duration(0), false, ac).Return(2, nil)

		var out bytes.Buffer
		require.NoError(t, RunPurgeExpiredCards(ctx, vault, discardLogger(), &out, 0, false, "cli", "json"))

		var result map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		assert.Equal(t, float64(2), result["count"])
		assert.Equal(t, false, result["dry_run"])
	})

	t.Run("negative-days", func(t *testing.T) {
		vault := &MockVault{}
		err := RunPurgeExpiredCards(ctx, vault, discardLogger(), &bytes.Buffer{}, -1, false, "cli", "text")
		require.Error(t, err)
		vault.AssertNotCalled(t, "PurgeExpired", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
