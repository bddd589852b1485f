package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	keysDomain "github.com/allisson/cardvault/internal/keys/domain"
)

// KeyLister lists key lifecycle records.
type KeyLister interface {
	List(ctx context.Context, filter keysDomain.KeyFilter) ([]*keysDomain.KeyRecord, error)
}

// RunListKeys prints key metadata, optionally filtered by purpose and status. Key
// material never leaves the HSM, so only metadata is shown.
func RunListKeys(
	ctx context.Context,
	lister KeyLister,
	writer io.Writer,
	purpose, status string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	filter := keysDomain.KeyFilter{Status: keysDomain.Status(status)}
	if purpose != "" {
		p, err := keysDomain.ParsePurpose(purpose)
		if err != nil {
			return fmt.Errorf("invalid purpose: %w", err)
		}
		filter.Purpose = p
	}

	keys, err := lister.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}

	if format == "json" {
		items := make([]map[string]any, 0, len(keys))
		for _, k := range keys {
			item := map[string]any{
				"id":              k.ID,
				"purpose":         k.Purpose,
				"status":          k.Status,
				"algorithm":       k.Algorithm,
				"version":         k.Version,
				"rotation_period": k.RotationPeriod.String(),
				"created_at":      k.CreatedAt.Format(time.RFC3339),
			}
			if k.StatusReason != nil {
				item["status_reason"] = *k.StatusReason
			}
			if k.LastRotatedAt != nil {
				item["last_rotated_at"] = k.LastRotatedAt.Format(time.RFC3339)
			}
			items = append(items, item)
		}
		return writeJSON(writer, map[string]any{"keys": items})
	}

	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tPURPOSE\tVERSION\tSTATUS\tALGORITHM\tCREATED")
	for _, k := range keys {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			k.ID, k.Purpose, k.Version, k.Status, k.Algorithm, k.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
