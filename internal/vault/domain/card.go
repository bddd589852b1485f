// Package domain defines the card tokenization vault models: card data and its
// validation rules, vault records, the fingerprint index and operation results.
package domain

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/jellydator/validation"

	appValidation "github.com/allisson/cardvault/internal/validation"
)

// Brand is a card network derived from the PAN prefix.
type Brand string

const (
	BrandVisa       Brand = "VISA"
	BrandMastercard Brand = "MASTERCARD"
	BrandAmex       Brand = "AMEX"
	BrandDiscover   Brand = "DISCOVER"
	BrandDiners     Brand = "DINERS"
	BrandJCB        Brand = "JCB"
	BrandUnionPay   Brand = "UNIONPAY"
)

type prefixRange struct {
	low, high string
}

type brandRule struct {
	brand     Brand
	prefixes  []prefixRange
	lengths   []int
	cvvLength int
}

// brandRules is checked in order; more specific ranges come first.
var brandRules = []brandRule{
	{
		brand:     BrandAmex,
		prefixes:  []prefixRange{{"34", "34"}, {"37", "37"}},
		lengths:   []int{15},
		cvvLength: 4,
	},
	{
		brand:     BrandDiners,
		prefixes:  []prefixRange{{"300", "305"}, {"36", "36"}, {"38", "39"}},
		lengths:   []int{14, 15, 16, 17, 18, 19},
		cvvLength: 3,
	},
	{
		brand:     BrandJCB,
		prefixes:  []prefixRange{{"3528", "3589"}},
		lengths:   []int{16, 17, 18, 19},
		cvvLength: 3,
	},
	{
		brand:     BrandVisa,
		prefixes:  []prefixRange{{"4", "4"}},
		lengths:   []int{13, 16, 19},
		cvvLength: 3,
	},
	{
		brand:     BrandMastercard,
		prefixes:  []prefixRange{{"51", "55"}, {"2221", "2720"}},
		lengths:   []int{16},
		cvvLength: 3,
	},
	{
		brand:     BrandDiscover,
		prefixes:  []prefixRange{{"6011", "6011"}, {"644", "649"}, {"65", "65"}},
		lengths:   []int{16, 17, 18, 19},
		cvvLength: 3,
	},
	{
		brand:     BrandUnionPay,
		prefixes:  []prefixRange{{"62", "62"}},
		lengths:   []int{16, 17, 18, 19},
		cvvLength: 3,
	},
}

func (r brandRule) matches(pan string) bool {
	for _, p := range r.prefixes {
		if len(pan) < len(p.low) {
			continue
		}
		prefix := pan[:len(p.low)]
		if prefix >= p.low && prefix <= p.high {
			return true
		}
	}
	return false
}

func (r brandRule) acceptsLength(n int) bool {
	for _, l := range r.lengths {
		if l == n {
			return true
		}
	}
	return false
}

// DetectBrand returns the brand for pan and its expected CVV length.
func DetectBrand(pan string) (Brand, int, bool) {
	r, ok := ruleFor(pan)
	return r.brand, r.cvvLength, ok
}

// CardData is the sensitive card payload. It only ever leaves the vault encrypted.
type CardData struct {
	PAN            string `json:"pan"`
	CVV            string `json:"cvv"`
	ExpiryMonth    int    `json:"expiry_month"`
	ExpiryYear     int    `json:"expiry_year"`
	CardholderName string `json:"cardholder_name,omitempty"`
}

// NormalizePAN strips the separators people commonly type into card numbers.
func NormalizePAN(pan string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, pan)
}

// Normalized returns a copy of c with the PAN normalized and the name trimmed.
func (c CardData) Normalized() CardData {
	c.PAN = NormalizePAN(c.PAN)
	c.CVV = strings.TrimSpace(c.CVV)
	c.CardholderName = strings.TrimSpace(c.CardholderName)
	return c
}

// Validate checks c against the PAN, brand, CVV and expiry rules. Error messages
// never contain card data. c must already be normalized.
func (c CardData) Validate(now time.Time) (Brand, error) {
	if err := ValidatePAN(c.PAN); err != nil {
		return "", err
	}

	rule, ok := ruleFor(c.PAN)
	if !ok {
		return "", ErrUnsupportedCardBrand
	}
	if !rule.acceptsLength(len(c.PAN)) {
		return "", fmt.Errorf("%w: invalid length for %s", ErrInvalidCardNumber, rule.brand)
	}

	if err := validation.Validate(c.CVV,
		validation.Required.Error("cvv is required"),
		appValidation.Digits,
		validation.Length(rule.cvvLength, rule.cvvLength).
			Error(fmt.Sprintf("cvv must be %d digits for %s", rule.cvvLength, rule.brand)),
	); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidCVV, err.Error())
	}

	if err := ValidateExpiry(c.ExpiryMonth, c.ExpiryYear, now); err != nil {
		return "", err
	}

	if err := validation.Validate(c.CardholderName,
		validation.Length(0, 128).Error("cardholder name must be at most 128 characters"),
	); err != nil {
		return "", appValidation.WrapValidationError(err)
	}

	return rule.brand, nil
}

// ValidatePAN checks the format and Luhn digit of a normalized PAN.
func ValidatePAN(pan string) error {
	if err := validation.Validate(pan,
		validation.Required.Error("card number is required"),
		appValidation.Digits,
		validation.Length(12, 19).Error("card number must be between 12 and 19 digits"),
		appValidation.Luhn,
	); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidCardNumber, err.Error())
	}
	return nil
}

func ruleFor(pan string) (brandRule, bool) {
	for _, r := range brandRules {
		if r.matches(pan) {
			return r, true
		}
	}
	return brandRule{}, false
}

// ValidateExpiry checks month and year and rejects cards that expired before the
// month of now. A card is valid through the last day of its expiry month.
func ValidateExpiry(month, year int, now time.Time) error {
	err := validation.Errors{
		"month": validation.Validate(month,
			validation.Required.Error("expiry month is required"),
			validation.Min(1).Error("expiry month must be between 1 and 12"),
			validation.Max(12).Error("expiry month must be between 1 and 12"),
		),
		"year": validation.Validate(year,
			validation.Required.Error("expiry year is required"),
			validation.Min(2000).Error("expiry year must have four digits"),
			validation.Max(2099).Error("expiry year must have four digits"),
		),
	}.Filter()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidCardExpiry, err.Error())
	}

	now = now.UTC()
	if year < now.Year() || (year == now.Year() && month < int(now.Month())) {
		return fmt.Errorf("%w: card has expired", ErrInvalidCardExpiry)
	}
	return nil
}

// Last4 returns the last four digits of pan.
func Last4(pan string) string {
	if len(pan) <= 4 {
		return pan
	}
	return pan[len(pan)-4:]
}

// ExpiryDisplay renders an expiry as MM/YY.
func ExpiryDisplay(month, year int) string {
	return fmt.Sprintf("%02d/%02d", month, year%100)
}
