package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	hsmDomain "github.com/allisson/cardvault/internal/hsm/domain"
)

// KeyBackupper exports and imports wrapped HSM keys.
type KeyBackupper interface {
	BackupKeys(ctx context.Context) (*hsmDomain.Backup, error)
	RestoreKeys(ctx context.Context, backup *hsmDomain.Backup) (int, error)
}

// RunBackupHSMKeys writes every HSM key, still wrapped by the provider, as JSON.
// The backup is only usable with the same master keys or KMS key.
func RunBackupHSMKeys(
	ctx context.Context,
	hsm KeyBackupper,
	logger *slog.Logger,
	writer io.Writer,
) error {
	backup, err := hsm.BackupKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to back up hsm keys: %w", err)
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}

	logger.Info("hsm keys backed up",
		slog.String("provider", backup.Provider),
		slog.Int("keys", len(backup.Keys)),
	)
	return nil
}

// RunRestoreHSMKeys reads a backup produced by RunBackupHSMKeys and imports the keys
// the HSM does not hold yet.
func RunRestoreHSMKeys(
	ctx context.Context,
	hsm KeyBackupper,
	logger *slog.Logger,
	reader io.Reader,
	writer io.Writer,
) error {
	var backup hsmDomain.Backup
	if err := json.NewDecoder(reader).Decode(&backup); err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}

	restored, err := hsm.RestoreKeys(ctx, &backup)
	if err != nil {
		return fmt.Errorf("failed to restore hsm keys: %w", err)
	}

	_, _ = fmt.Fprintf(writer, "Restored %d of %d key(s)\n", restored, len(backup.Keys))
	logger.Info("hsm keys restored",
		slog.Int("restored", restored),
		slog.Int("in_backup", len(backup.Keys)),
	)
	return nil
}
