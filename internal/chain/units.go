package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrInvalidAmount is returned when a decimal amount cannot be converted to
// base units.
var ErrInvalidAmount = errors.New("invalid amount")

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// FormatUnits renders a base-unit value as a decimal with exactly places
// fractional digits, rounding half away from zero. A nil value renders as
// zero.
func FormatUnits(value *big.Int, decimals uint8, places int) string {
	if value == nil {
		value = new(big.Int)
	}
	return new(big.Rat).SetFrac(value, pow10(decimals)).FloatString(places)
}

// ParseUnits converts a decimal string such as "0.01" into base units with
// the given number of decimals. Negative amounts, signs, exponents and more
// fractional digits than decimals are rejected.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, amount)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, amount, decimals)
	}

	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	if digits == "" {
		digits = "0"
	}
	out, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return out, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
