package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatBigInt converts a raw integer amount to a human-readable decimal string,
// considering the given number of decimals.
// Example: amount=1234500000000000000, decimals=18 => "1.2345"
// The sign is kept apart from the magnitude so negative balances format as "-0.5", not "0.-5".
func FormatBigInt(amount *big.Int, decimals uint8) string {
	if amount == nil || amount.Sign() == 0 {
		return "0"
	}

	negative := amount.Sign() < 0
	digits := new(big.Int).Abs(amount).String()

	if decimals > 0 {
		d := int(decimals)
		if len(digits) <= d {
			digits = strings.Repeat("0", d-len(digits)+1) + digits
		}
		intPart, fracPart := digits[:len(digits)-d], strings.TrimRight(digits[len(digits)-d:], "0")
		digits = intPart
		if fracPart != "" {
			digits += "." + fracPart
		}
	}

	if negative {
		return "-" + digits
	}
	return digits
}

// ParseDecimalAmount converts a decimal string back to raw units: round(value * 10^decimals).
func ParseDecimalAmount(value string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("parse decimal amount %q: %w", value, err)
	}
	return d.Shift(int32(decimals)).Round(0).BigInt(), nil
}

// ToFloat converts a raw amount to float64 human units. Precision loss is confined to this final step.
func ToFloat(amount *big.Int, decimals uint8) float64 {
	if amount == nil {
		return 0
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).InexactFloat64()
}

// ParseBigInt parses a base-10 integer as returned by explorer APIs. Empty input is zero.
func ParseBigInt(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}

// ParseBigIntOrZero is ParseBigInt for fields where garbage is treated as zero.
func ParseBigIntOrZero(s string) *big.Int {
	v, err := ParseBigInt(s)
	if err != nil {
		return new(big.Int)
	}
	return v
}
