package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
)

// ExpiredPurger deletes records whose token expired long enough ago.
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context, olderThan time.Duration, dryRun bool, ac accessDomain.Context) (int, error)
}

// RunPurgeExpiredCards deletes card records whose token expired more than days ago.
// With dryRun it only reports how many records would be deleted.
func RunPurgeExpiredCards(
	ctx context.Context,
	purger ExpiredPurger,
	logger *slog.Logger,
	writer io.Writer,
	days int,
	dryRun bool,
	subject string,
	format string,
) error {
	if days < 0 {
		return fmt.Errorf("days must be zero or greater, got %d", days)
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("purging expired cards",
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)

	count, err := purger.PurgeExpired(ctx, time.Duration(days)*24*time.Hour, dryRun, OperatorContext(subject))
	if err != nil {
		return fmt.Errorf("failed to purge expired cards: %w", err)
	}

	if format == "json" {
		if err := writeJSON(writer, map[string]any{
			"count":   count,
			"dry_run": dryRun,
			"days":    days,
		}); err != nil {
			return err
		}
	} else if dryRun {
		_, _ = fmt.Fprintf(writer, "Dry run: %d expired card(s) would be deleted\n", count)
	} else {
		_, _ = fmt.Fprintf(writer, "Deleted %d expired card(s)\n", count)
	}

	logger.Info("purge completed", slog.Int("count", count), slog.Bool("dry_run", dryRun))
	return nil
}
