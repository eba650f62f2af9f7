package service

import (
	"errors"
	"testing"
)

func TestIsValidCurrencyCode(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"USD", true},
		{"PLN", true},
		{"usd", true},   // should accept lowercase and convert
		{"US", false},   // too short
		{"USDA", false}, // too long
		{"US1", false},  // contains number
		{"US$", false},  // contains special char
		{"", false},     // empty
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			result := IsValidCurrencyCode(tc.code)
			if result != tc.valid {
				t.Errorf("IsValidCurrencyCode(%q) = %v, want %v", tc.code, result, tc.valid)
			}
		})
	}
}

func TestParseSupportedCurrency(t *testing.T) {
	tests := []struct {
		text string
		want string
		err  error
	}{
		{"USD", "USD", nil},
		{" eur ", "EUR", nil},
		{"gbp", "GBP", nil},
		{"BTC", "", ErrUnsupportedCurrency},
		{"hello", "", ErrInvalidCurrencyCode},
		{"", "", ErrInvalidCurrencyCode},
	}

	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			got, err := ParseSupportedCurrency(tc.text)
			if !errors.Is(err, tc.err) {
				t.Errorf("ParseSupportedCurrency(%q) error = %v, want %v", tc.text, err, tc.err)
			}
			if got != tc.want {
				t.Errorf("ParseSupportedCurrency(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}
