package service

import (
	"errors"
	"strings"
)

// Currencies offered on the chat keyboard, in display order.
var SupportedCurrencies = []string{"USD", "EUR", "PLN", "GBP"}

// ErrInvalidCurrencyCode indicates the code is not three latin letters.
var ErrInvalidCurrencyCode = errors.New("invalid currency code format")

// ErrUnsupportedCurrency is returned when a currency is not in the supported list.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// IsValidCurrencyCode checks whether a string is a valid 3-letter currency code.
func IsValidCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range strings.ToUpper(code) {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// NormalizeCurrency upper-cases a well-formed code. Stored currencies are free-form,
// so read paths accept any well-formed code, not just SupportedCurrencies.
func NormalizeCurrency(code string) (string, error) {
	code = strings.TrimSpace(code)
	if !IsValidCurrencyCode(code) {
		return "", ErrInvalidCurrencyCode
	}
	return strings.ToUpper(code), nil
}

// ParseSupportedCurrency maps free chat text such as "usd" to a keyboard currency.
func ParseSupportedCurrency(text string) (string, error) {
	code, err := NormalizeCurrency(text)
	if err != nil {
		return "", err
	}
	for _, c := range SupportedCurrencies {
		if c == code {
			return code, nil
		}
	}
	return "", ErrUnsupportedCurrency
}
