package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"

	appValidation "github.com/allisson/cardvault/internal/validation"
	vaultDomain "github.com/allisson/cardvault/internal/vault/domain"
)

const (
	digitAlphabet        = "0123456789"
	alphanumericAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// NewTokenGenerator returns the generator for format. length applies to every format
// except uuid, whose tokens are always 36 characters.
func NewTokenGenerator(format vaultDomain.TokenFormat, length int) (TokenGenerator, error) {
	if format == vaultDomain.TokenFormatUUID {
		return uuidGenerator{}, nil
	}
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if length < vaultDomain.MinTokenLength || length > vaultDomain.MaxTokenLength {
		return nil, fmt.Errorf("%w: %d is outside [%d, %d]",
			vaultDomain.ErrInvalidTokenLength, length, vaultDomain.MinTokenLength, vaultDomain.MaxTokenLength)
	}

	switch format {
	case vaultDomain.TokenFormatNumeric:
		return &charsetGenerator{alphabet: digitAlphabet, length: length}, nil
	case vaultDomain.TokenFormatLuhnPreserving:
		return &charsetGenerator{alphabet: digitAlphabet, length: length, luhn: true}, nil
	default:
		return &charsetGenerator{alphabet: alphanumericAlphabet, length: length}, nil
	}
}

// charsetGenerator draws tokens uniformly from alphabet. With luhn set the last digit
// is a Luhn check digit, so tokens pass card number field validation downstream.
type charsetGenerator struct {
	alphabet string
	length   int
	luhn     bool
}

func (g *charsetGenerator) Generate() (string, error) {
	n := g.length
	if g.luhn {
		n--
	}

	out := make([]byte, n, g.length)
	size := big.NewInt(int64(len(g.alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("failed to draw token character: %w", err)
		}
		out[i] = g.alphabet[idx.Int64()]
	}

	if g.luhn {
		out = append(out, appValidation.LuhnCheckDigit(string(out)))
	}
	return string(out), nil
}

func (g *charsetGenerator) Validate(token string) error {
	if len(token) != g.length {
		return fmt.Errorf("token must be %d characters", g.length)
	}
	if strings.Trim(token, g.alphabet) != "" {
		return fmt.Errorf("token contains characters outside the %d-character alphabet", len(g.alphabet))
	}
	if g.luhn && !appValidation.LuhnValid(token) {
		return fmt.Errorf("token failed Luhn validation")
	}
	return nil
}

// uuidGenerator issues UUIDv7 tokens, which sort by creation time.
type uuidGenerator struct{}

func (uuidGenerator) Generate() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate uuid token: %w", err)
	}
	return id.String(), nil
}

func (uuidGenerator) Validate(token string) error {
	if err := uuid.Validate(token); err != nil {
		return fmt.Errorf("invalid uuid token: %w", err)
	}
	return nil
}
