package service

import (
	"context"
	"crypto/hmac"
	"encoding/binary"
	"fmt"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
	hsmService "github.com/allisson/cardvault/internal/hsm/service"
	keysDomain "github.com/allisson/cardvault/internal/keys/domain"
)

type auditSigner struct {
	keys ActiveKeyProvider
	hsm  hsmService.Module
}

// NewAuditSigner creates an AuditSigner that signs with the active auth-purpose key.
// The HSM derives a dedicated MAC subkey, so the raw key is never used directly.
func NewAuditSigner(keys ActiveKeyProvider, hsm hsmService.Module) AuditSigner {
	return &auditSigner{keys: keys, hsm: hsm}
}

// canonicalize encodes every signed field of entry.
// Format: id || timestamp || level || operation || subject || purpose || token || outcome || reason
// with 4-byte big-endian length prefixes on the variable-length fields.
func canonicalize(entry *accessDomain.AuditEntry) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, entry.ID[:]...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(entry.Timestamp.UnixNano()))
	buf = binary.BigEndian.AppendUint32(buf, uint32(entry.Level))
	buf = appendLengthPrefixed(buf, string(entry.Operation))
	buf = appendLengthPrefixed(buf, entry.SubjectID)
	buf = appendLengthPrefixed(buf, entry.Purpose)
	buf = appendLengthPrefixed(buf, entry.Token)
	buf = appendLengthPrefixed(buf, string(entry.Outcome))
	buf = appendLengthPrefixed(buf, entry.Reason)
	return buf
}

func appendLengthPrefixed(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// Sign signs entry in place.
func (a *auditSigner) Sign(ctx context.Context, entry *accessDomain.AuditEntry) error {
	keyID, err := a.keys.GetActiveKey(ctx, keysDomain.PurposeAuth)
	if err != nil {
		return fmt.Errorf("failed to resolve audit signing key: %w", err)
	}

	signature, err := a.hsm.Sign(ctx, keyID, canonicalize(entry))
	if err != nil {
		return fmt.Errorf("failed to sign audit entry: %w", err)
	}

	entry.Signature = signature
	entry.SigningKeyID = &keyID
	return nil
}

// Verify checks entry against its stored signature.
func (a *auditSigner) Verify(ctx context.Context, entry *accessDomain.AuditEntry) error {
	if !entry.IsSigned() {
		return accessDomain.ErrSignatureInvalid
	}

	expected, err := a.hsm.Sign(ctx, *entry.SigningKeyID, canonicalize(entry))
	if err != nil {
		return fmt.Errorf("failed to compute expected signature: %w", err)
	}

	if !hmac.Equal(entry.Signature, expected) {
		return accessDomain.ErrSignatureInvalid
	}
	return nil
}
