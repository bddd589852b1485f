package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
	vaultDomain "github.com/allisson/cardvault/internal/vault/domain"
)

// KeyRotator rotates the payment key and re-encrypts the vault.
type KeyRotator interface {
	RotateKeys(ctx context.Context, ac accessDomain.Context) (*vaultDomain.RotationResult, error)
}

// RunRotateKeys rotates the payment key and re-encrypts every active card record
// under the new key. A partial failure prints the result, leaves the rotation pending
// for a rerun and returns an error.
func RunRotateKeys(
	ctx context.Context,
	rotator KeyRotator,
	logger *slog.Logger,
	writer io.Writer,
	subject string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("rotating payment key", slog.String("subject", subject))

	result, err := rotator.RotateKeys(ctx, OperatorContext(subject))
	if err != nil && !errors.Is(err, vaultDomain.ErrKeyRotationPartialFailure) {
		return fmt.Errorf("failed to rotate keys: %w", err)
	}

	if format == "json" {
		if jsonErr := writeJSON(writer, map[string]any{
			"old_key_id":        result.OldKeyID,
			"new_key_id":        result.NewKeyID,
			"total":             result.Total,
			"reencrypted_count": result.ReencryptedCount,
			"failed_count":      result.FailedCount,
			"skipped_count":     result.SkippedCount,
			"already_current":   result.AlreadyCurrentCount,
			"failed_tokens":     result.FailedTokens,
			"completed":         result.Completed,
		}); jsonErr != nil {
			return jsonErr
		}
	} else {
		outputRotationText(writer, result)
	}

	logger.Info("key rotation finished",
		slog.String("old_key_id", result.OldKeyID),
		slog.String("new_key_id", result.NewKeyID),
		slog.Int("reencrypted", result.ReencryptedCount),
		slog.Int("failed", result.FailedCount),
		slog.Bool("completed", result.Completed),
	)

	if err != nil {
		return fmt.Errorf("key rotation incomplete: %d record(s) failed, rerun to resume: %w", result.FailedCount, err)
	}
	return nil
}

func outputRotationText(writer io.Writer, result *vaultDomain.RotationResult) {
	_, _ = fmt.Fprintf(writer, "Payment Key Rotation\n")
	_, _ = fmt.Fprintf(writer, "====================\n\n")
	_, _ = fmt.Fprintf(writer, "Old Key:      %s\n", result.OldKeyID)
	_, _ = fmt.Fprintf(writer, "New Key:      %s\n", result.NewKeyID)
	_, _ = fmt.Fprintf(writer, "Records:      %d\n", result.Total)
	_, _ = fmt.Fprintf(writer, "Re-encrypted: %d\n", result.ReencryptedCount)
	_, _ = fmt.Fprintf(writer, "Skipped:      %d\n", result.SkippedCount)
	_, _ = fmt.Fprintf(writer, "Current:      %d\n", result.AlreadyCurrentCount)
	_, _ = fmt.Fprintf(writer, "Failed:       %d\n\n", result.FailedCount)

	if result.FailedCount > 0 {
		_, _ = fmt.Fprintf(writer, "Failed Tokens:\n")
		for _, token := range result.FailedTokens {
			_, _ = fmt.Fprintf(writer, "  - %s\n", token)
		}
		_, _ = fmt.Fprintf(writer, "\nStatus: INCOMPLETE (old key left rotating)\n")
		return
	}
	_, _ = fmt.Fprintf(writer, "Status: COMPLETED\n")
}
