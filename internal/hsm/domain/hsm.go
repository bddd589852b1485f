// Package domain defines the value types exchanged across the HSM boundary: sealed
// payloads, key generation options, backups, connection state and operation counters.
// Key material itself never appears in these types.
package domain

import (
	"time"

	cryptoDomain "github.com/allisson/cardvault/internal/crypto/domain"
)

// ConnectionState is the HSM connection state machine position.
type ConnectionState int32

const (
	// StateDisconnected rejects every operation with ErrHSMUnavailable.
	StateDisconnected ConnectionState = iota
	// StateConnecting is held while the backend opens its session.
	StateConnecting
	// StateConnected accepts operations.
	StateConnected
)

// String returns the lowercase state name.
func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Sealed is the output of an HSM encryption: ciphertext, nonce and AEAD tag.
type Sealed struct {
	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
}

// Clone returns a deep copy so callers can mutate the result freely.
func (s Sealed) Clone() Sealed {
	return Sealed{
		Ciphertext: append([]byte(nil), s.Ciphertext...),
		Nonce:      append([]byte(nil), s.Nonce...),
		Tag:        append([]byte(nil), s.Tag...),
	}
}

// GenerateKeyOptions customizes key generation.
type GenerateKeyOptions struct {
	// Algorithm used by Encrypt/Decrypt with the new key. Empty selects the module default.
	Algorithm cryptoDomain.Algorithm
}

// KeyEntry is a key held by the module in wrapped form. It is what the key store
// persists and what a Backup carries.
type KeyEntry struct {
	KeyID         string                 `json:"key_id"`
	Purpose       string                 `json:"purpose"`
	Algorithm     cryptoDomain.Algorithm `json:"algorithm"`
	WrappedKey    []byte                 `json:"wrapped_key"`
	WrappingKeyID string                 `json:"wrapping_key_id"`
	CreatedAt     time.Time              `json:"created_at"`
}

// Backup is a disaster-recovery export of wrapped key material. It can only be
// restored into a module whose wrapper can unwrap the entries.
type Backup struct {
	Provider  string     `json:"provider"`
	CreatedAt time.Time  `json:"created_at"`
	Keys      []KeyEntry `json:"keys"`
}

// Stats is a snapshot of per-kind operation counters.
type Stats struct {
	Encryptions    int64 `json:"encryptions"`
	Decryptions    int64 `json:"decryptions"`
	Signs          int64 `json:"signs"`
	KeyGenerations int64 `json:"key_generations"`
	Failures       int64 `json:"failures"`
}
