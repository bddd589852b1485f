package service

import (
	"context"
	"time"

	hsmDomain "github.com/allisson/cardvault/internal/hsm/domain"
	"github.com/allisson/cardvault/internal/metrics"
)

// moduleWithMetrics decorates Module with metrics instrumentation.
type moduleWithMetrics struct {
	next    Module
	metrics metrics.BusinessMetrics
}

// NewModuleWithMetrics wraps a Module with metrics recording.
func NewModuleWithMetrics(module Module, m metrics.BusinessMetrics) Module {
	return &moduleWithMetrics{
		next:    module,
		metrics: m,
	}
}

func (h *moduleWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := metrics.Status(err)

	h.metrics.RecordOperation(ctx, "hsm", operation, status)
	h.metrics.RecordDuration(ctx, "hsm", operation, time.Since(start), status)
}

// Connect records metrics for connection attempts.
func (h *moduleWithMetrics) Connect(ctx context.Context) error {
	start := time.Now()
	err := h.next.Connect(ctx)
	h.record(ctx, "connect", start, err)
	return err
}

// Close delegates without recording.
func (h *moduleWithMetrics) Close(ctx context.Context) error {
	return h.next.Close(ctx)
}

// State delegates without recording.
func (h *moduleWithMetrics) State() hsmDomain.ConnectionState {
	return h.next.State()
}

// GenerateKey records metrics for key generation.
func (h *moduleWithMetrics) GenerateKey(
	ctx context.Context,
	purpose string,
	opts hsmDomain.GenerateKeyOptions,
) (string, error) {
	start := time.Now()
	keyID, err := h.next.GenerateKey(ctx, purpose, opts)
	h.record(ctx, "generate_key", start, err)
	return keyID, err
}

// Encrypt records metrics for encryption.
func (h *moduleWithMetrics) Encrypt(
	ctx context.Context,
	keyID string,
	plaintext, aad []byte,
) (*hsmDomain.Sealed, error) {
	start := time.Now()
	sealed, err := h.next.Encrypt(ctx, keyID, plaintext, aad)
	h.record(ctx, "encrypt", start, err)
	return sealed, err
}

// Decrypt records metrics for decryption.
func (h *moduleWithMetrics) Decrypt(
	ctx context.Context,
	keyID string,
	sealed *hsmDomain.Sealed,
	aad []byte,
) ([]byte, error) {
	start := time.Now()
	plaintext, err := h.next.Decrypt(ctx, keyID, sealed, aad)
	h.record(ctx, "decrypt", start, err)
	return plaintext, err
}

// Sign records metrics for signing.
func (h *moduleWithMetrics) Sign(ctx context.Context, keyID string, data []byte) ([]byte, error) {
	start := time.Now()
	sig, err := h.next.Sign(ctx, keyID, data)
	h.record(ctx, "sign", start, err)
	return sig, err
}

// BackupKeys records metrics for backups.
func (h *moduleWithMetrics) BackupKeys(ctx context.Context) (*hsmDomain.Backup, error) {
	start := time.Now()
	backup, err := h.next.BackupKeys(ctx)
	h.record(ctx, "backup_keys", start, err)
	return backup, err
}

// RestoreKeys records metrics for restores.
func (h *moduleWithMetrics) RestoreKeys(ctx context.Context, backup *hsmDomain.Backup) (int, error) {
	start := time.Now()
	n, err := h.next.RestoreKeys(ctx, backup)
	h.record(ctx, "restore_keys", start, err)
	return n, err
}

// Stats delegates without recording.
func (h *moduleWithMetrics) Stats() hsmDomain.Stats {
	return h.next.Stats()
}
