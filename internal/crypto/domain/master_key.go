package domain

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
)

// MasterKey is a 32-byte key used by the software HSM backend to wrap key material
// at rest. In production the KMS backend replaces it with a remote keeper.
type MasterKey struct {
	ID  string
	Key []byte
}

// MasterKeyChain holds every master key able to unwrap existing material, with one
// designated as active for new wrapping operations. Safe for concurrent use.
type MasterKeyChain struct {
	activeID string
	keys     sync.Map
}

// ActiveMasterKeyID returns the ID of the master key used for new wrapping operations.
func (m *MasterKeyChain) ActiveMasterKeyID() string {
	return m.activeID
}

// Active returns the active master key.
func (m *MasterKeyChain) Active() (*MasterKey, bool) {
	return m.Get(m.activeID)
}

// Get retrieves a master key by ID.
func (m *MasterKeyChain) Get(id string) (*MasterKey, bool) {
	if masterKey, ok := m.keys.Load(id); ok {
		return masterKey.(*MasterKey), ok
	}

	return nil, false
}

// Close zeroes every master key and empties the chain.
func (m *MasterKeyChain) Close() {
	m.keys.Range(func(_, value any) bool {
		if mk, ok := value.(*MasterKey); ok {
			Zero(mk.Key)
		}
		return true
	})
	m.activeID = ""
	m.keys.Clear()
}

// LoadMasterKeyChain parses master keys from their configuration form.
//
// raw is a comma-separated list of "id:base64key" entries and active names the entry
// used for new wrapping operations:
//
//	MASTER_KEYS="key1:YWJj...,key2:MTIz..."
//	ACTIVE_MASTER_KEY_ID="key2"
//
// Every key must decode to exactly 32 bytes. On error the partially built chain is
// closed so no key material lingers.
func LoadMasterKeyChain(raw, active string) (*MasterKeyChain, error) {
	if raw == "" {
		return nil, ErrMasterKeysNotSet
	}
	if active == "" {
		return nil, ErrActiveMasterKeyIDNotSet
	}

	mkc := &MasterKeyChain{activeID: active}

	for part := range strings.SplitSeq(raw, ",") {
		p := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(p) != 2 || p[0] == "" {
			mkc.Close()
			return nil, fmt.Errorf("%w: entry %q", ErrInvalidMasterKeysFormat, p[0])
		}
		id := p[0]
		decoded, err := base64.StdEncoding.DecodeString(p[1])
		if err != nil {
			mkc.Close()
			return nil, fmt.Errorf("%w for %s: %v", ErrInvalidMasterKeyBase64, id, err)
		}
		if len(decoded) != KeySize {
			Zero(decoded)
			mkc.Close()
			return nil, fmt.Errorf("%w: master key %s must be 32 bytes, got %d", ErrInvalidKeySize, id, len(decoded))
		}
		key := make([]byte, KeySize)
		copy(key, decoded)
		Zero(decoded)
		mkc.keys.Store(id, &MasterKey{ID: id, Key: key})
	}

	if _, ok := mkc.Get(active); !ok {
		mkc.Close()
		return nil, fmt.Errorf("%w: ACTIVE_MASTER_KEY_ID=%s", ErrActiveMasterKeyNotFound, active)
	}

	return mkc, nil
}

// GenerateMasterKey creates a random master key and returns it together with its
// "id:base64key" configuration entry.
func GenerateMasterKey(id string) (*MasterKey, string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, "", fmt.Errorf("failed to generate master key: %w", err)
	}
	entry := fmt.Sprintf("%s:%s", id, base64.StdEncoding.EncodeToString(key))
	return &MasterKey{ID: id, Key: key}, entry, nil
}
