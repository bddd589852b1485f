package service

import (
	"context"
	"fmt"

	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
	cryptoService "github.com/allisson/cardvault/internal/crypto/service"
)

// ProviderSoftware names the software simulator backend.
const ProviderSoftware = "software"

var wrapAAD = []byte("cardvault-key-wrap-v1")

// LocalWrapper wraps key material with AES-256-GCM under the active master key of a
// MasterKeyChain. Older master keys stay usable for unwrapping.
type LocalWrapper struct {
	chain       *cryptoDomain.MasterKeyChain
	aeadManager cryptoService.AEADManager
}

// NewLocalWrapper creates the software backend wrapper.
func NewLocalWrapper(
	chain *cryptoDomain.MasterKeyChain,
	aeadManager cryptoService.AEADManager,
) *LocalWrapper {
	return &LocalWrapper{chain: chain, aeadManager: aeadManager}
}

// Provider returns "software".
func (w *LocalWrapper) Provider() string {
	return ProviderSoftware
}

// Open checks that the active master key is loaded.
func (w *LocalWrapper) Open(ctx context.Context) error {
	if _, ok := w.chain.Active(); !ok {
		return cryptoDomain.ErrActiveMasterKeyNotFound
	}
	return ctx.Err()
}

// Wrap encrypts material as nonce || ciphertext || tag.
func (w *LocalWrapper) Wrap(_ context.Context, material []byte) ([]byte, string, error) {
	mk, ok := w.chain.Active()
	if !ok {
		return nil, "", cryptoDomain.ErrActiveMasterKeyNotFound
	}

	aead, err := w.aeadManager.CreateCipher(mk.Key, cryptoDomain.AESGCM)
	if err != nil {
		return nil, "", err
	}

	ciphertext, nonce, tag, err := aead.Encrypt(material, wrapAAD)
	if err != nil {
		return nil, "", fmt.Errorf("failed to wrap key material: %w", err)
	}

	wrapped := make([]byte, 0, len(nonce)+len(ciphertext)+len(tag))
	wrapped = append(wrapped, nonce...)
	wrapped = append(wrapped, ciphertext...)
	wrapped = append(wrapped, tag...)
	return wrapped, mk.ID, nil
}

// Unwrap reverses Wrap using the master key that produced the blob.
func (w *LocalWrapper) Unwrap(_ context.Context, wrapped []byte, wrappingKeyID string) ([]byte, error) {
	mk, ok := w.chain.Get(wrappingKeyID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", cryptoDomain.ErrMasterKeyNotFound, wrappingKeyID)
	}

	const nonceSize = 12
	if len(wrapped) < nonceSize+cryptoDomain.TagSize {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	aead, err := w.aeadManager.CreateCipher(mk.Key, cryptoDomain.AESGCM)
	if err != nil {
		return nil, err
	}

	nonce := wrapped[:nonceSize]
	ciphertext := wrapped[nonceSize : len(wrapped)-cryptoDomain.TagSize]
	tag := wrapped[len(wrapped)-cryptoDomain.TagSize:]
	return aead.Decrypt(ciphertext, nonce, tag, wrapAAD)
}

// Close is a no-op; the master key chain is owned by the caller.
func (w *LocalWrapper) Close() error {
	return nil
}
