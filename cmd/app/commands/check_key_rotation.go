package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	keysDomain "github.com/allisson/cardvault/internal/keys/domain"
)

// RotationChecker finds active keys past their rotation period.
type RotationChecker interface {
	CheckRotationDue(ctx context.Context) ([]keysDomain.RotationNotice, error)
}

// RunCheckKeyRotation lists keys due for rotation. Each due key is also queued as a
// key.rotation_due outbox event that the server processes.
func RunCheckKeyRotation(
	ctx context.Context,
	checker RotationChecker,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	notices, err := checker.CheckRotationDue(ctx)
	if err != nil {
		return fmt.Errorf("failed to check key rotation: %w", err)
	}

	if format == "json" {
		items := make([]map[string]any, 0, len(notices))
		for _, n := range notices {
			items = append(items, map[string]any{
				"key_id":          n.KeyID,
				"purpose":         n.Purpose,
				"version":         n.Version,
				"age":             n.Age.String(),
				"rotation_period": n.RotationPeriod.String(),
			})
		}
		if err := writeJSON(writer, map[string]any{"due": items}); err != nil {
			return err
		}
	} else {
		if len(notices) == 0 {
			_, _ = fmt.Fprintln(writer, "No keys are due for rotation")
		}
		for _, n := range notices {
			_, _ = fmt.Fprintf(writer, "%-10s v%-3d %s (age %s, period %s)\n",
				n.Purpose, n.Version, n.KeyID, n.Age.Round(time.Second), n.RotationPeriod)
		}
	}

	logger.Info("key rotation check completed", slog.Int("due", len(notices)))
	return nil
}
