package service

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
)

// splitTagCipher adapts a stdlib cipher.AEAD so the authentication tag is returned
// separately from the ciphertext. Stateless and safe for concurrent use; each
// Encrypt draws a fresh nonce from crypto/rand.
type splitTagCipher struct {
	aead cipher.AEAD
}

func newSplitTagCipher(aead cipher.AEAD) *splitTagCipher {
	return &splitTagCipher{aead: aead}
}

// Encrypt seals plaintext and splits the trailing tag off the sealed output.
func (c *splitTagCipher) Encrypt(plaintext, aad []byte) (ciphertext, nonce, tag []byte, err error) {
	nonce = make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, plaintext, aad)
	cut := len(sealed) - c.aead.Overhead()

	ciphertext = make([]byte, cut)
	copy(ciphertext, sealed[:cut])
	tag = make([]byte, c.aead.Overhead())
	copy(tag, sealed[cut:])

	return ciphertext, nonce, tag, nil
}

// Decrypt rejoins ciphertext and tag and opens them.
func (c *splitTagCipher) Decrypt(ciphertext, nonce, tag, aad []byte) ([]byte, error) {
	if len(nonce) != c.aead.NonceSize() || len(tag) != c.aead.Overhead() {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return plaintext, nil
}
