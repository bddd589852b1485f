// Package service provides the AEAD ciphers and KMS keeper access used by the HSM
// backends. Nothing outside internal/hsm should touch raw key material through it.
package service

import (
	"context"

	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
)

// AEAD defines authenticated encryption with the tag kept apart from the ciphertext,
// so callers can persist ciphertext, nonce and tag as separate fields.
type AEAD interface {
	// Encrypt seals plaintext with optional AAD and a fresh random nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce, tag []byte, err error)

	// Decrypt opens ciphertext. Any mismatch of key, nonce, tag or AAD yields
	// cryptoDomain.ErrDecryptionFailed.
	Decrypt(ciphertext, nonce, tag, aad []byte) ([]byte, error)
}

// AEADManager defines the interface for creating AEAD cipher instances.
type AEADManager interface {
	// CreateCipher creates an AEAD cipher instance for the specified algorithm.
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// Keeper wraps and unwraps small secrets with a remote key. *secrets.Keeper from
// gocloud.dev implements it.
type Keeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// KMSService opens keepers for a KMS key URI.
type KMSService interface {
	// OpenKeeper opens a Keeper for the KMS provider named by the URI scheme.
	OpenKeeper(ctx context.Context, keyURI string) (Keeper, error)
}
