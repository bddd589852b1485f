package domain

import (
	"time"
)

// EncryptedPayload is the AEAD output for a card payload.
type EncryptedPayload struct {
	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
}

// VaultRecord is one stored card. Only Brand, Last4 and ExpiryDisplay are derived
// from cleartext; PAN and CVV exist solely inside Payload.
type VaultRecord struct {
	Token              string
	Payload            EncryptedPayload
	IntegrityTag       []byte
	Brand              Brand
	Last4              string
	ExpiryDisplay      string
	Fingerprint        string
	EncryptionKeyID    string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ExpiresAt          time.Time
	LastAccessedAt     *time.Time
	IntegrityFlaggedAt *time.Time
}

// IsExpired reports whether the token is past ExpiresAt at now.
func (r *VaultRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IsFlagged reports whether a tamper check has failed for this record.
func (r *VaultRecord) IsFlagged() bool {
	return r.IntegrityFlaggedAt != nil
}

// Clone returns a deep copy of r.
func (r *VaultRecord) Clone() *VaultRecord {
	c := *r
	c.Payload = EncryptedPayload{
		Ciphertext: append([]byte(nil), r.Payload.Ciphertext...),
		Nonce:      append([]byte(nil), r.Payload.Nonce...),
		Tag:        append([]byte(nil), r.Payload.Tag...),
	}
	c.IntegrityTag = append([]byte(nil), r.IntegrityTag...)
	if r.LastAccessedAt != nil {
		t := *r.LastAccessedAt
		c.LastAccessedAt = &t
	}
	if r.IntegrityFlaggedAt != nil {
		t := *r.IntegrityFlaggedAt
		c.IntegrityFlaggedAt = &t
	}
	return &c
}

// FingerprintEntry maps a PAN fingerprint to its current token.
type FingerprintEntry struct {
	Fingerprint string
	Token       string
	CreatedAt   time.Time
}
