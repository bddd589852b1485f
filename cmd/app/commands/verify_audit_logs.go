package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
	apperrors "github.com/allisson/cardvault/internal/errors"
)

const dateTimeLayout = "2006-01-02 15:04:05"

// AuditVerifier recomputes audit entry signatures.
type AuditVerifier interface {
	Verify(ctx context.Context, filter accessDomain.AuditFilter) (*accessDomain.VerifyReport, error)
}

// VerifyAuditOptions selects the audit entries to verify. Dates are UTC and accept
// "YYYY-MM-DD" or "YYYY-MM-DD HH:MM:SS".
type VerifyAuditOptions struct {
	StartDate string
	EndDate   string
	SubjectID string
	Operation string
	Format    string
}

// RunVerifyAuditLogs recomputes the HMAC signature of every audit entry matching opts
// and fails when any entry does not verify.
func RunVerifyAuditLogs(
	ctx context.Context,
	verifier AuditVerifier,
	logger *slog.Logger,
	writer io.Writer,
	opts VerifyAuditOptions,
) error {
	filter, err := opts.filter()
	if err != nil {
		return err
	}
	if err := validateFormat(opts.Format); err != nil {
		return err
	}

	logger.Info("verifying audit logs",
		slog.Time("start_date", *filter.From),
		slog.Time("end_date", *filter.To),
		slog.String("subject_id", filter.SubjectID),
		slog.String("operation", string(filter.Operation)),
	)

	report, err := verifier.Verify(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to verify audit logs: %w", err)
	}

	if opts.Format == "json" {
		if err := writeJSON(writer, map[string]any{
			"total_checked":  report.Total,
			"valid_count":    report.Valid,
			"invalid_count":  report.Invalid,
			"unsigned_count": report.Unsigned,
			"invalid_logs":   report.InvalidIDs,
			"passed":         report.Invalid == 0,
		}); err != nil {
			return fmt.Errorf("failed to output JSON: %w", err)
		}
	} else if err := writeVerifyText(writer, report, *filter.From, *filter.To); err != nil {
		return err
	}

	logger.Info("verification completed",
		slog.Int("total_checked", report.Total),
		slog.Int("valid", report.Valid),
		slog.Int("invalid", report.Invalid),
		slog.Int("unsigned", report.Unsigned),
	)

	if report.Invalid > 0 {
		return fmt.Errorf("%w: %d invalid audit signature(s)", apperrors.ErrIntegrity, report.Invalid)
	}
	return nil
}

func (o VerifyAuditOptions) filter() (accessDomain.AuditFilter, error) {
	start, err := parseDate(o.StartDate)
	if err != nil {
		return accessDomain.AuditFilter{}, fmt.Errorf("invalid start date: %w", err)
	}
	end, err := parseDate(o.EndDate)
	if err != nil {
		return accessDomain.AuditFilter{}, fmt.Errorf("invalid end date: %w", err)
	}
	if !end.After(start) {
		return accessDomain.AuditFilter{}, fmt.Errorf("end date must be after start date")
	}

	filter := accessDomain.AuditFilter{SubjectID: o.SubjectID, From: &start, To: &end}
	if o.Operation != "" {
		op := accessDomain.Operation(o.Operation)
		if _, ok := accessDomain.RequiredLevel(op); !ok {
			return accessDomain.AuditFilter{}, fmt.Errorf("unknown operation: %s", o.Operation)
		}
		filter.Operation = op
	}
	return filter, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{dateTimeLayout, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("expected YYYY-MM-DD or YYYY-MM-DD HH:MM:SS, got %q", s)
}

func writeVerifyText(writer io.Writer, report *accessDomain.VerifyReport, start, end time.Time) error {
	_, _ = fmt.Fprintf(writer, "Audit Log Integrity Verification\n\n")

	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Time Range:\t%s to %s\n", start.Format(dateTimeLayout), end.Format(dateTimeLayout))
	_, _ = fmt.Fprintf(tw, "Total Checked:\t%d\n", report.Total)
	_, _ = fmt.Fprintf(tw, "Unsigned:\t%d\n", report.Unsigned)
	_, _ = fmt.Fprintf(tw, "Valid:\t%d\n", report.Valid)
	_, _ = fmt.Fprintf(tw, "Invalid:\t%d\n", report.Invalid)
	if err := tw.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(writer)

	switch {
	case report.Invalid > 0:
		_, _ = fmt.Fprintf(writer, "WARNING: %d log(s) failed integrity check!\n\nInvalid Log IDs:\n", report.Invalid)
		for _, id := range report.InvalidIDs {
			_, _ = fmt.Fprintf(writer, "  - %s\n", id)
		}
		_, _ = fmt.Fprintf(writer, "\nStatus: FAILED\n")
	case report.Total == 0:
		_, _ = fmt.Fprintf(writer, "Status: No logs found in specified time range\n")
	default:
		_, _ = fmt.Fprintf(writer, "Status: PASSED\n")
	}
	return nil
}
