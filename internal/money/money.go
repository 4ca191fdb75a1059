// Package money parses and formats decimal amounts stored as integer cents.
package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrAmountNegative = errors.New("amount must be greater than 0")
)

// ParseAmount converts a user-entered decimal string (like "42.50") to cents.
// At most two fraction digits are accepted; anything else is rejected rather
// than rounded.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}

	if strings.HasPrefix(s, "-") {
		return 0, ErrAmountNegative
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Prevent overflow: int64 max ~9.2e18 cents
	if units > 9e16 {
		return 0, fmt.Errorf("%w: too large", ErrInvalidAmount)
	}

	cents := units * 100
	if hasFrac {
		if len(frac) == 0 || len(frac) > 2 {
			return 0, ErrInvalidAmount
		}
		f, err := strconv.ParseInt(frac, 10, 64)
		if err != nil || f < 0 {
			return 0, ErrInvalidAmount
		}
		if len(frac) == 1 {
			f *= 10
		}
		cents += f
	}

	if cents <= 0 {
		return 0, ErrAmountNegative
	}
	return cents, nil
}

// FormatCents renders cents as a plain two-decimal string ("123.45").
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
