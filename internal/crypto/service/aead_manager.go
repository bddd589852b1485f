package service

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
)

// aeadConstructors builds the stdlib AEAD for each supported algorithm from a
// 32-byte key.
var aeadConstructors = map[cryptoDomain.Algorithm]func(key []byte) (cipher.AEAD, error){
	cryptoDomain.AESGCM: func(key []byte) (cipher.AEAD, error) {
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	},
	cryptoDomain.ChaCha20: chacha20poly1305.New,
}

// AEADManagerService creates the split-tag ciphers used for key wrapping and card
// encryption.
type AEADManagerService struct{}

// NewAEADManager creates a new AEADManagerService.
func NewAEADManager() *AEADManagerService {
	return &AEADManagerService{}
}

// CreateCipher returns an AEAD for alg keyed with key. The key is used as-is and the
// caller keeps ownership of it.
func (am *AEADManagerService) CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error) {
	newAEAD, ok := aeadConstructors[alg]
	if !ok {
		return nil, fmt.Errorf("%w: %q", cryptoDomain.ErrUnsupportedAlgorithm, alg)
	}
	if len(key) != cryptoDomain.KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", cryptoDomain.ErrInvalidKeySize, len(key))
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s cipher: %w", alg, err)
	}
	return newSplitTagCipher(aead), nil
}
