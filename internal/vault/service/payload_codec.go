package service

import (
	"encoding/json"
	"fmt"

	vaultDomain "github.com/allisson/cardvault/internal/vault/domain"
)

// EncodePayload serializes card data for encryption. Callers must clear the result
// once it has been sealed.
func EncodePayload(card vaultDomain.CardData) ([]byte, error) {
	data, err := json.Marshal(card)
	if err != nil {
		return nil, fmt.Errorf("failed to encode card payload: %w", err)
	}
	return data, nil
}

// DecodePayload parses a decrypted payload.
func DecodePayload(data []byte) (*vaultDomain.CardData, error) {
	var card vaultDomain.CardData
	if err := json.Unmarshal(data, &card); err != nil {
		return nil, fmt.Errorf("failed to decode card payload: %w", err)
	}
	return &card, nil
}

// Fingerprint input is domain separated so a signature over a PAN can never be
// replayed as a signature over some other vault message.
const fingerprintPrefix = "cardvault-fingerprint-v1:"

// FingerprintInput returns the bytes signed to fingerprint pan.
func FingerprintInput(pan string) []byte {
	return []byte(fingerprintPrefix + pan)
}

// IntegrityInput binds the token to the plaintext payload for the integrity tag.
func IntegrityInput(token string, payload []byte) []byte {
	buf := make([]byte, 0, len(token)+len(payload)+1)
	buf = append(buf, token...)
	buf = append(buf, 0)
	return append(buf, payload...)
}
