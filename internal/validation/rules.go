// Package validation provides custom validation rules for the application.
package validation

import (
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/cardvault/internal/errors"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// Digits validates that a string contains only ASCII digits.
var Digits = validation.NewStringRuleWithError(
	IsDigits,
	validation.NewError("validation_digits", "must contain only digits"),
)

// Luhn validates the mod-10 check digit of a numeric string.
var Luhn = validation.NewStringRuleWithError(
	LuhnValid,
	validation.NewError("validation_luhn", "failed Luhn check"),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// IsDigits reports whether s is non-empty and made only of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// LuhnValid reports whether s is a digit string whose last digit is its Luhn check digit.
func LuhnValid(s string) bool {
	if len(s) < 2 || !IsDigits(s) {
		return false
	}
	sum := 0
	for i := 0; i < len(s); i++ {
		digit := int(s[len(s)-1-i] - '0')
		// Double every second digit from the right
		if i%2 == 1 {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
	}
	return sum%10 == 0
}

// LuhnCheckDigit returns the check digit that makes payload followed by it Luhn valid.
// payload must contain only digits.
func LuhnCheckDigit(payload string) byte {
	sum := 0
	for i := 0; i < len(payload); i++ {
		digit := int(payload[len(payload)-1-i] - '0')
		if i%2 == 0 {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
	}
	return byte('0' + (10-sum%10)%10)
}
