package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
	cryptoService "github.com/allisson/cardvault/internal/crypto/service"
	"github.com/allisson/cardvault/internal/errors"
	hsmDomain "github.com/allisson/cardvault/internal/hsm/domain"
)

var signInfo = []byte("cardvault-sign-v1")

type cachedKey struct {
	material  []byte
	algorithm cryptoDomain.Algorithm
}

// module implements Module on top of a KeyWrapper and a KeyStore.
type module struct {
	wrapper     KeyWrapper
	store       KeyStore
	aeadManager cryptoService.AEADManager
	algorithm   cryptoDomain.Algorithm
	timeout     time.Duration
	logger      *slog.Logger

	state atomic.Int32

	mu    sync.RWMutex
	cache map[string]*cachedKey

	encryptions    atomic.Int64
	decryptions    atomic.Int64
	signs          atomic.Int64
	keyGenerations atomic.Int64
	failures       atomic.Int64
}

// NewModule creates a disconnected HSM module. algorithm is the default for new keys
// and timeout bounds every operation including Connect.
func NewModule(
	wrapper KeyWrapper,
	store KeyStore,
	aeadManager cryptoService.AEADManager,
	algorithm cryptoDomain.Algorithm,
	timeout time.Duration,
	logger *slog.Logger,
) Module {
	return &module{
		wrapper:     wrapper,
		store:       store,
		aeadManager: aeadManager,
		algorithm:   algorithm,
		timeout:     timeout,
		logger:      logger,
		cache:       make(map[string]*cachedKey),
	}
}

// Connect opens the wrapper session. Calling it on a connected module is a no-op.
func (m *module) Connect(ctx context.Context) error {
	if !m.state.CompareAndSwap(int32(hsmDomain.StateDisconnected), int32(hsmDomain.StateConnecting)) {
		if m.State() == hsmDomain.StateConnected {
			return nil
		}
		return hsmDomain.ErrAlreadyConnecting
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.wrapper.Open(ctx); err != nil {
		m.state.Store(int32(hsmDomain.StateDisconnected))
		m.logger.Error("hsm connect failed",
			slog.String("provider", m.wrapper.Provider()),
			slog.Any("error", err),
		)
		return fmt.Errorf("%w: %v", hsmDomain.ErrHSMUnavailable, err)
	}

	m.state.Store(int32(hsmDomain.StateConnected))
	m.logger.Info("hsm connected", slog.String("provider", m.wrapper.Provider()))
	return nil
}

// Close disconnects the module and zeroes cached key material.
func (m *module) Close(_ context.Context) error {
	m.state.Store(int32(hsmDomain.StateDisconnected))

	m.mu.Lock()
	for id, k := range m.cache {
		cryptoDomain.Zero(k.material)
		delete(m.cache, id)
	}
	m.mu.Unlock()

	return m.wrapper.Close()
}

// State returns the current connection state.
func (m *module) State() hsmDomain.ConnectionState {
	return hsmDomain.ConnectionState(m.state.Load())
}

// GenerateKey creates 32 random bytes, wraps them and persists the entry.
func (m *module) GenerateKey(
	ctx context.Context,
	purpose string,
	opts hsmDomain.GenerateKeyOptions,
) (string, error) {
	ctx, cancel, err := m.begin(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	algorithm := opts.Algorithm
	if algorithm == "" {
		algorithm = m.algorithm
	}
	if _, err := cryptoDomain.ParseAlgorithm(string(algorithm)); err != nil {
		return "", m.fail(ctx, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", m.fail(ctx, fmt.Errorf("failed to generate key id: %w", err))
	}

	material := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(material); err != nil {
		return "", m.fail(ctx, fmt.Errorf("failed to generate key material: %w", err))
	}
	defer cryptoDomain.Zero(material)

	wrapped, wrappingKeyID, err := m.wrapper.Wrap(ctx, material)
	if err != nil {
		return "", m.fail(ctx, err)
	}

	entry := &hsmDomain.KeyEntry{
		KeyID:         id.String(),
		Purpose:       purpose,
		Algorithm:     algorithm,
		WrappedKey:    wrapped,
		WrappingKeyID: wrappingKeyID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := m.store.Create(ctx, entry); err != nil {
		return "", m.fail(ctx, err)
	}

	m.remember(entry.KeyID, material, algorithm)
	m.keyGenerations.Add(1)
	return entry.KeyID, nil
}

// Encrypt seals plaintext with the key's AEAD algorithm.
func (m *module) Encrypt(
	ctx context.Context,
	keyID string,
	plaintext, aad []byte,
) (*hsmDomain.Sealed, error) {
	ctx, cancel, err := m.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	aead, err := m.cipher(ctx, keyID)
	if err != nil {
		return nil, m.fail(ctx, err)
	}

	ciphertext, nonce, tag, err := aead.Encrypt(plaintext, aad)
	if err != nil {
		return nil, m.fail(ctx, err)
	}

	m.encryptions.Add(1)
	return &hsmDomain.Sealed{Ciphertext: ciphertext, Nonce: nonce, Tag: tag}, nil
}

// Decrypt opens sealed. Any authentication failure becomes ErrAuthenticationFailed.
func (m *module) Decrypt(
	ctx context.Context,
	keyID string,
	sealed *hsmDomain.Sealed,
	aad []byte,
) ([]byte, error) {
	ctx, cancel, err := m.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	if sealed == nil {
		return nil, m.fail(ctx, hsmDomain.ErrAuthenticationFailed)
	}

	aead, err := m.cipher(ctx, keyID)
	if err != nil {
		return nil, m.fail(ctx, err)
	}

	plaintext, err := aead.Decrypt(sealed.Ciphertext, sealed.Nonce, sealed.Tag, aad)
	if err != nil {
		if errors.Is(err, cryptoDomain.ErrDecryptionFailed) {
			err = hsmDomain.ErrAuthenticationFailed
		}
		return nil, m.fail(ctx, err)
	}

	m.decryptions.Add(1)
	return plaintext, nil
}

// Sign computes HMAC-SHA256 over data with a subkey derived from the key material.
func (m *module) Sign(ctx context.Context, keyID string, data []byte) ([]byte, error) {
	ctx, cancel, err := m.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	material, _, err := m.material(ctx, keyID)
	if err != nil {
		return nil, m.fail(ctx, err)
	}
	defer cryptoDomain.Zero(material)

	subkey := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, material, nil, signInfo), subkey); err != nil {
		return nil, m.fail(ctx, fmt.Errorf("failed to derive signing key: %w", err))
	}
	defer cryptoDomain.Zero(subkey)

	mac := hmac.New(sha256.New, subkey)
	mac.Write(data)

	m.signs.Add(1)
	return mac.Sum(nil), nil
}

// BackupKeys exports every stored entry. Material stays wrapped.
func (m *module) BackupKeys(ctx context.Context) (*hsmDomain.Backup, error) {
	ctx, cancel, err := m.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	entries, err := m.store.List(ctx)
	if err != nil {
		return nil, m.fail(ctx, err)
	}

	backup := &hsmDomain.Backup{
		Provider:  m.wrapper.Provider(),
		CreatedAt: time.Now().UTC(),
		Keys:      make([]hsmDomain.KeyEntry, 0, len(entries)),
	}
	for _, e := range entries {
		backup.Keys = append(backup.Keys, *e)
	}
	return backup, nil
}

// RestoreKeys imports entries the current wrapper can unwrap. Existing IDs are skipped.
func (m *module) RestoreKeys(ctx context.Context, backup *hsmDomain.Backup) (int, error) {
	ctx, cancel, err := m.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	if backup == nil || backup.Provider != m.wrapper.Provider() {
		return 0, m.fail(ctx, hsmDomain.ErrBackupProviderMismatch)
	}

	restored := 0
	for i := range backup.Keys {
		entry := backup.Keys[i]

		if _, err := m.store.Get(ctx, entry.KeyID); err == nil {
			continue
		} else if !errors.Is(err, hsmDomain.ErrKeyNotFound) {
			return restored, m.fail(ctx, err)
		}

		material, err := m.wrapper.Unwrap(ctx, entry.WrappedKey, entry.WrappingKeyID)
		if err != nil {
			return restored, m.fail(ctx, fmt.Errorf("key %s cannot be unwrapped: %w", entry.KeyID, err))
		}
		cryptoDomain.Zero(material)

		if err := m.store.Create(ctx, &entry); err != nil {
			return restored, m.fail(ctx, err)
		}
		restored++
	}

	m.logger.Info("hsm keys restored",
		slog.Int("restored", restored),
		slog.Int("total", len(backup.Keys)),
	)
	return restored, nil
}

// Stats returns a snapshot of the operation counters.
func (m *module) Stats() hsmDomain.Stats {
	return hsmDomain.Stats{
		Encryptions:    m.encryptions.Load(),
		Decryptions:    m.decryptions.Load(),
		Signs:          m.signs.Load(),
		KeyGenerations: m.keyGenerations.Load(),
		Failures:       m.failures.Load(),
	}
}

func (m *module) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if m.State() != hsmDomain.StateConnected {
		m.failures.Add(1)
		return nil, nil, hsmDomain.ErrHSMUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	return ctx, cancel, nil
}

// fail counts a failure and maps deadline expiry to ErrHSMUnavailable.
func (m *module) fail(ctx context.Context, err error) error {
	m.failures.Add(1)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", hsmDomain.ErrHSMUnavailable, err)
	}
	return err
}

func (m *module) cipher(ctx context.Context, keyID string) (cryptoService.AEAD, error) {
	material, algorithm, err := m.material(ctx, keyID)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(material)
	return m.aeadManager.CreateCipher(material, algorithm)
}

// material returns a private copy of the key bytes. Callers zero it when done.
func (m *module) material(ctx context.Context, keyID string) ([]byte, cryptoDomain.Algorithm, error) {
	m.mu.RLock()
	cached, ok := m.cache[keyID]
	if ok {
		material := append([]byte(nil), cached.material...)
		algorithm := cached.algorithm
		m.mu.RUnlock()
		return material, algorithm, nil
	}
	m.mu.RUnlock()

	entry, err := m.store.Get(ctx, keyID)
	if err != nil {
		return nil, "", err
	}

	material, err := m.wrapper.Unwrap(ctx, entry.WrappedKey, entry.WrappingKeyID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to unwrap key %s: %w", keyID, err)
	}

	m.remember(keyID, material, entry.Algorithm)
	return material, entry.Algorithm, nil
}

func (m *module) remember(keyID string, material []byte, algorithm cryptoDomain.Algorithm) {
	if m.State() != hsmDomain.StateConnected {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cache[keyID]; ok {
		return
	}
	m.cache[keyID] = &cachedKey{
		material:  append([]byte(nil), material...),
		algorithm: algorithm,
	}
}
