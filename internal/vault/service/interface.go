// Package service provides the vault's supporting services: token generators for the
// configurable token formats, the striped per-key locker and the card payload codec.
package service

// TokenGenerator issues tokens in one configured format.
type TokenGenerator interface {
	// Generate returns a fresh random token. Uniqueness against stored records is the
	// caller's concern.
	Generate() (string, error)

	// Validate reports whether token could have been issued by this generator.
	Validate(token string) error
}
