package commands

import (
	"context"
	"fmt"
	"io"
	"slices"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
	vaultDomain "github.com/allisson/cardvault/internal/vault/domain"
)

// StatsReader reports vault record counts.
type StatsReader interface {
	GetVaultStats(ctx context.Context, ac accessDomain.Context) (*vaultDomain.VaultStats, error)
}

// RunVaultStats prints record counts by state and encryption key.
func RunVaultStats(
	ctx context.Context,
	reader StatsReader,
	writer io.Writer,
	subject string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	stats, err := reader.GetVaultStats(ctx, OperatorContext(subject))
	if err != nil {
		return fmt.Errorf("failed to get vault stats: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"total":     stats.Total,
			"active":    stats.Active,
			"expired":   stats.Expired,
			"flagged":   stats.Flagged,
			"by_key_id": stats.ByKeyID,
		})
	}

	_, _ = fmt.Fprintf(writer, "Vault Statistics\n")
	_, _ = fmt.Fprintf(writer, "================\n\n")
	_, _ = fmt.Fprintf(writer, "Total:    %d\n", stats.Total)
	_, _ = fmt.Fprintf(writer, "Active:   %d\n", stats.Active)
	_, _ = fmt.Fprintf(writer, "Expired:  %d\n", stats.Expired)
	_, _ = fmt.Fprintf(writer, "Flagged:  %d\n", stats.Flagged)

	if len(stats.ByKeyID) > 0 {
		_, _ = fmt.Fprintf(writer, "\nRecords by key:\n")
		keyIDs := make([]string, 0, len(stats.ByKeyID))
		for id := range stats.ByKeyID {
			keyIDs = append(keyIDs, id)
		}
		slices.Sort(keyIDs)
		for _, id := range keyIDs {
			_, _ = fmt.Fprintf(writer, "  %s: %d\n", id, stats.ByKeyID[id])
		}
	}
	return nil
}
