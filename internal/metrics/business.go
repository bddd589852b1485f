package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	apperrors "github.com/allisson/cardvault/internal/errors"
)

// Status labels attached to business metrics.
const (
	StatusSuccess          = "success"
	StatusDenied           = "denied"
	StatusIntegrityFailure = "integrity_failure"
	StatusUnavailable      = "unavailable"
	StatusError            = "error"
)

// Status maps an operation result to its status label. Access denials, integrity
// failures and HSM outages get their own labels so they can be alerted on apart
// from ordinary errors.
func Status(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case apperrors.Is(err, apperrors.ErrForbidden), apperrors.Is(err, apperrors.ErrUnauthorized):
		return StatusDenied
	case apperrors.Is(err, apperrors.ErrIntegrity):
		return StatusIntegrityFailure
	case apperrors.Is(err, apperrors.ErrUnavailable):
		return StatusUnavailable
	default:
		return StatusError
	}
}

// BusinessMetrics records vault, key manager and HSM operations.
type BusinessMetrics interface {
	// RecordOperation counts one operation.
	// Domains: "vault", "keys", "hsm".
	// Operations: "store_card", "rotate_keys", "generate_key", ...
	RecordOperation(ctx context.Context, domain, operation, status string)

	// RecordDuration records how long an operation took, in seconds.
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)

	// RecordItems counts the records a batch operation touched, labeled by per-item
	// outcome (e.g. "reencrypted", "failed", "skipped", "purged").
	RecordItems(ctx context.Context, domain, operation, outcome string, count int)
}

type businessMetrics struct {
	operationCounter metric.Int64Counter
	durationHisto    metric.Float64Histogram
	itemCounter      metric.Int64Counter
}

// NewBusinessMetrics creates the business instruments on meterProvider, prefixing
// every metric name with namespace.
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)

	operationCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_operations_total", namespace),
		metric.WithDescription("Total number of business operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_operation_duration_seconds", namespace),
		metric.WithDescription("Duration of business operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	itemCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_batch_items_total", namespace),
		metric.WithDescription("Records processed by batch operations, by outcome"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch item counter: %w", err)
	}

	return &businessMetrics{
		operationCounter: operationCounter,
		durationHisto:    durationHisto,
		itemCounter:      itemCounter,
	}, nil
}

func (b *businessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	b.operationCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("domain", domain),
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

func (b *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	b.durationHisto.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("domain", domain),
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

func (b *businessMetrics) RecordItems(ctx context.Context, domain, operation, outcome string, count int) {
	if count <= 0 {
		return
	}
	b.itemCounter.Add(ctx, int64(count),
		metric.WithAttributes(
			attribute.String("domain", domain),
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		),
	)
}

// NoOpBusinessMetrics discards everything. Used when METRICS_ENABLED is false.
type NoOpBusinessMetrics struct{}

// NewNoOpBusinessMetrics returns a BusinessMetrics that records nothing.
func NewNoOpBusinessMetrics() BusinessMetrics {
	return &NoOpBusinessMetrics{}
}

func (n *NoOpBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
}

func (n *NoOpBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
}

func (n *NoOpBusinessMetrics) RecordItems(ctx context.Context, domain, operation, outcome string, count int) {
}
