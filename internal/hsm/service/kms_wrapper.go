package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	cryptoService "github.com/allisson/cardvault/internal/crypto/service"
	apperrors "github.com/allisson/cardvault/internal/errors"
)

// ProviderKMS names the cloud KMS backend.
const ProviderKMS = "kms"

// KMSWrapper wraps key material with a remote KMS key through gocloud.dev/secrets.
// Opening the keeper is retried with exponential backoff bounded by the caller's context.
type KMSWrapper struct {
	kmsService    cryptoService.KMSService
	keyURI        string
	wrappingKeyID string
	maxElapsed    time.Duration
	logger        *slog.Logger

	mu     sync.RWMutex
	keeper cryptoService.Keeper
}

// NewKMSWrapper creates the KMS backend wrapper for keyURI.
func NewKMSWrapper(
	kmsService cryptoService.KMSService,
	keyURI string,
	maxElapsed time.Duration,
	logger *slog.Logger,
) *KMSWrapper {
	sum := sha256.Sum256([]byte(keyURI))
	return &KMSWrapper{
		kmsService:    kmsService,
		keyURI:        keyURI,
		wrappingKeyID: "kms-" + hex.EncodeToString(sum[:8]),
		maxElapsed:    maxElapsed,
		logger:        logger,
	}
}

// Provider returns "kms".
func (w *KMSWrapper) Provider() string {
	return ProviderKMS
}

// Open opens the keeper, retrying transient failures. A malformed key URI fails on
// the first attempt.
func (w *KMSWrapper) Open(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxElapsedTime = w.maxElapsed

	attempt := 0
	keeper, err := backoff.RetryWithData(func() (cryptoService.Keeper, error) {
		attempt++
		k, err := w.kmsService.OpenKeeper(ctx, w.keyURI)
		if err != nil {
			w.logger.Warn("kms keeper open failed",
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
		}
		if errors.Is(err, apperrors.ErrInvalidInput) {
			return nil, backoff.Permanent(err)
		}
		return k, err
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return fmt.Errorf("failed to open kms keeper after %d attempts: %w", attempt, err)
	}

	w.mu.Lock()
	w.keeper = keeper
	w.mu.Unlock()
	return nil
}

// Wrap encrypts material with the remote key.
func (w *KMSWrapper) Wrap(ctx context.Context, material []byte) ([]byte, string, error) {
	keeper, err := w.current()
	if err != nil {
		return nil, "", err
	}
	wrapped, err := keeper.Encrypt(ctx, material)
	if err != nil {
		return nil, "", fmt.Errorf("failed to wrap key material with kms: %w", err)
	}
	return wrapped, w.wrappingKeyID, nil
}

// Unwrap decrypts material with the remote key.
func (w *KMSWrapper) Unwrap(ctx context.Context, wrapped []byte, wrappingKeyID string) ([]byte, error) {
	if wrappingKeyID != w.wrappingKeyID {
		return nil, fmt.Errorf("unknown kms wrapping key %s", wrappingKeyID)
	}
	keeper, err := w.current()
	if err != nil {
		return nil, err
	}
	material, err := keeper.Decrypt(ctx, wrapped)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap key material with kms: %w", err)
	}
	return material, nil
}

// Close closes the keeper if it was opened.
func (w *KMSWrapper) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.keeper == nil {
		return nil
	}
	err := w.keeper.Close()
	w.keeper = nil
	return err
}

func (w *KMSWrapper) current() (cryptoService.Keeper, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.keeper == nil {
		return nil, fmt.Errorf("kms keeper is not open")
	}
	return w.keeper, nil
}
