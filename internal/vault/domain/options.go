package domain

import (
	"time"
)

// TokenFormat selects the token generator.
type TokenFormat string

const (
	TokenFormatUUID           TokenFormat = "uuid"
	TokenFormatNumeric        TokenFormat = "numeric"
	TokenFormatAlphanumeric   TokenFormat = "alphanumeric"
	TokenFormatLuhnPreserving TokenFormat = "luhn-preserving"
)

// Token length limits for the non-UUID formats.
const (
	MinTokenLength = 16
	MaxTokenLength = 64
)

// Validate checks if the format is known.
func (f TokenFormat) Validate() error {
	switch f {
	case TokenFormatUUID, TokenFormatNumeric, TokenFormatAlphanumeric, TokenFormatLuhnPreserving:
		return nil
	default:
		return ErrInvalidTokenFormat
	}
}

// StoreOptions tunes StoreCard.
type StoreOptions struct {
	// ForceNew issues a new token even if the card is already tokenized.
	ForceNew bool

	// TTL overrides the configured token lifetime when positive.
	TTL time.Duration
}

// StoreResult is returned by StoreCard. Existing is set when an active token for
// the same card was returned instead of a new one.
type StoreResult struct {
	Token          string
	Brand          Brand
	Last4          string
	ExpiryDisplay  string
	TokenExpiresAt time.Time
	Existing       bool
}

// RetrieveOptions tunes RetrieveCard.
type RetrieveOptions struct {
	// Reveal requests the full card data. It is honored only for callers that
	// declare a purpose.
	Reveal bool
}

// CardView is the result of RetrieveCard. Without reveal only the non-sensitive
// fields are populated.
type CardView struct {
	Token          string
	Brand          Brand
	Last4          string
	ExpiryDisplay  string
	TokenExpiresAt time.Time
	Revealed       bool
	Card           *CardData
}

// DeleteOptions tunes DeleteCard.
type DeleteOptions struct {
	// Reason is recorded in the audit entry.
	Reason string
}

// FindResult is returned by FindExistingCard.
type FindResult struct {
	Exists bool
	Token  string
}

// RotationResult reports a bulk re-encryption run.
type RotationResult struct {
	OldKeyID         string
	NewKeyID         string
	Total            int
	ReencryptedCount int
	FailedCount      int
	SkippedCount     int
	FailedTokens     []string
	Completed        bool

	// AlreadyCurrentCount counts records found under the new key: written after the
	// rotation began or moved by an earlier partial run.
	AlreadyCurrentCount int
}

// VaultStats summarizes the stored records.
type VaultStats struct {
	Total   int
	Active  int
	Expired int
	Flagged int
	ByKeyID map[string]int
}
