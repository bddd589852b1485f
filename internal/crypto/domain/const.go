// Package domain defines the cryptographic primitives shared by the HSM backends:
// supported AEAD algorithms, master key chains used to wrap key material at rest,
// and helpers for clearing sensitive bytes from memory.
package domain

// Algorithm represents the AEAD algorithm used for encryption.
//
// Both algorithms use 256-bit keys, 12-byte nonces and 16-byte authentication tags.
// Use AESGCM on CPUs with AES-NI and ChaCha20 elsewhere.
type Algorithm string

const (
	// AESGCM represents AES-256-GCM.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 represents ChaCha20-Poly1305.
	ChaCha20 Algorithm = "chacha20-poly1305"
)

const (
	// KeySize is the size in bytes of every symmetric key handled by the vault.
	KeySize = 32

	// TagSize is the size in bytes of the AEAD authentication tag for both algorithms.
	TagSize = 16
)

// ParseAlgorithm converts a configuration string into an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AESGCM:
		return AESGCM, nil
	case ChaCha20:
		return ChaCha20, nil
	default:
		return "", ErrUnsupportedAlgorithm
	}
}
