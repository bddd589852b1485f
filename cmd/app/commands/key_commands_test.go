package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
	hsmDomain "github.com/allisson/cardvault/internal/hsm/domain"
	keysDomain "github.com/allisson/cardvault/internal/keys/domain"
)

func TestRunCheckKeyRotation(t *testing.T) {
	ctx := context.Background()
	notices := []keysDomain.RotationNotice{{
		KeyID:          "key-1",
		Purpose:        keysDomain.PurposePayment,
		Version:        2,
		Age:            31 * 24 * time.Hour,
		RotationPeriod: 30 * 24 * time.Hour,
	}}

	t.Run("text", func(t *testing.T) {
		keys := &MockKeyManager{}
		keys.On("CheckRotationDue", ctx).Return(notices, nil)

		var out bytes.Buffer
		require.NoError(t, RunCheckKeyRotation(ctx, keys, discardLogger(), &out, "text"))
		assert.Contains(t, out.String(), "payment")
		assert.Contains(t, out.String(), "key-1")
	})

	t.Run("none-due", func(t *testing.T) {
		keys := &MockKeyManager{}
		keys.On("CheckRotationDue", ctx).Return([]keysDomain.RotationNotice{}, nil)

		var out bytes.Buffer
		require.NoError(t, RunCheckKeyRotation(ctx, keys, discardLogger(), &out, "text"))
		assert.Contains(t, out.String(), "No keys are due for rotation")
	})

	t.Run("json", func(t *testing.T) {
		keys := &MockKeyManager{}
		keys.On("CheckRotationDue", ctx).Return(notices, nil)

		var out bytes.Buffer
		require.NoError(t, RunCheckKeyRotation(ctx, keys, discardLogger(), &out, "json"))

		var result struct {
			Due []map[string]any `json:"due"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.Len(t, result.Due, 1)
		assert.Equal(t, "key-1", result.Due[0]["key_id"])
		assert.Equal(t, "720h0m0s", result.Due[0]["rotation_period"])
	})

	t.Run("error", func(t *testing.T) {
		keys := &MockKeyManager{}
		keys.On("CheckRotationDue", ctx).Return(nil, errors.New("store down"))

		err := RunCheckKeyRotation(ctx, keys, discardLogger(), &bytes.Buffer{}, "text")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to check key rotation")
	})
}

func TestRunListKeys(t *testing.T) {
	ctx := context.Background()
	reason := "suspected leak"
	rotated := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	records := []*keysDomain.KeyRecord{
		{
			ID:             "key-1",
			Purpose:        keysDomain.PurposePayment,
			Status:         keysDomain.StatusCompromised,
			Algorithm:      cryptoDomain.AESGCM,
			Version:        1,
			RotationPeriod: 30 * 24 * time.Hour,
			StatusReason:   &reason,
			CreatedAt:      time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			LastRotatedAt:  &rotated,
		},
		{
			ID:        "key-2",
			Purpose:   keysDomain.PurposePayment,
			Status:    keysDomain.StatusActive,
			Algorithm: cryptoDomain.AESGCM,
			Version:   2,
			CreatedAt: rotated,
		},
	}

	t.Run("text-with-filter", func(t *testing.T) {
		keys := &MockKeyManager{}
		filter := keysDomain.KeyFilter{Purpose: keysDomain.PurposePayment}
		keys.On("List", ctx, filter).Return(records, nil)

		var out bytes.Buffer
		require.NoError(t, RunListKeys(ctx, keys, &out, "payment", "", "text"))

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], "PURPOSE")
		assert.Contains(t, lines[1], "compromised")
		assert.Contains(t, lines[2], "active")
		keys.AssertExpectations(t)
	})

	t.Run("json", func(t *testing.T) {
		keys := &MockKeyManager{}
		keys.On("List", ctx, keysDomain.KeyFilter{Status: keysDomain.StatusCompromised}).Return(records[:1], nil)

		var out bytes.Buffer
		require.NoError(t, RunListKeys(ctx, keys, &out, "", "compromised", "json"))

		var result struct {
			Keys []map[string]any `json:"keys"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.Len(t, result.Keys, 1)
		assert.Equal(t, "suspected leak", result.Keys[0]["status_reason"])
		assert.Equal(t, "2026-09-01T00:00:00Z", result.Keys[0]["last_rotated_at"])
	})

	t.Run("invalid-purpose", func(t *testing.T) {
		keys := &MockKeyManager{}
		err := RunListKeys(ctx, keys, &bytes.Buffer{}, "bogus", "", "text")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid purpose")
		keys.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	})
}

func TestRunBackupAndRestoreHSMKeys(t *testing.T) {
	ctx := context.Background()
	backup := &hsmDomain.Backup{
		Provider:  "software",
		CreatedAt: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		Keys: []hsmDomain.KeyEntry{{
			KeyID:         "key-1",
			Purpose:       "payment",
			Algorithm:     cryptoDomain.AESGCM,
			WrappedKey:    []byte{1, 2, 3},
			WrappingKeyID: "master-1",
			CreatedAt:     time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		}},
	}

	source := &MockKeyBackupper{}
	source.On("BackupKeys", ctx).Return(backup, nil)

	var file bytes.Buffer
	require.NoError(t, RunBackupHSMKeys(ctx, source, discardLogger(), &file))
	assert.Contains(t, file.String(), `"wrapping_key_id": "master-1"`)

	target := &MockKeyBackupper{}
	target.On("RestoreKeys", ctx, backup).Return(1, nil)

	var out bytes.Buffer
	require.NoError(t, RunRestoreHSMKeys(ctx, target, discardLogger(), &file, &out))
	assert.Equal(t, "Restored 1 of 1 key(s)\n", out.String())
	target.AssertExpectations(t)

	t.Run("backup-error", func(t *testing.T) {
		failing := &MockKeyBackupper{}
		failing.On("BackupKeys", ctx).Return(nil, hsmDomain.ErrHSMUnavailable)

		err := RunBackupHSMKeys(ctx, failing, discardLogger(), &bytes.Buffer{})
		assert.ErrorIs(t, err, hsmDomain.ErrHSMUnavailable)
	})

	t.Run("malformed-backup", func(t *testing.T) {
		err := RunRestoreHSMKeys(ctx, &MockKeyBackupper{}, discardLogger(), strings.NewReader("{"), &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read backup")
	})
}
