// Package units converts between human-readable decimal amounts ("0.0001")
// and integer base units.
package units

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Decimals used by both the sale currency and launched tokens.
const Decimals = 18

// Parse converts a decimal string into base units with the given precision.
func Parse(s string, decimals uint8) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %q", s)
	}

	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}

	v, overflow := uint256.FromBig(shifted.BigInt())
	if overflow {
		return nil, fmt.Errorf("amount %q overflows 256 bits", s)
	}
	return v, nil
}

// MustParse is Parse for constants; it panics on malformed input.
func MustParse(s string, decimals uint8) *uint256.Int {
	v, err := Parse(s, decimals)
	if err != nil {
		panic(err)
	}
	return v
}

// Ether parses s with the default 18 decimals.
func Ether(s string) *uint256.Int {
	return MustParse(s, Decimals)
}

// ToDecimal converts base units into a decimal value.
func ToDecimal(x *uint256.Int, decimals uint8) decimal.Decimal {
	if x == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(x.ToBig(), -int32(decimals))
}

// Format renders base units as a trimmed decimal string.
func Format(x *uint256.Int, decimals uint8) string {
	return ToDecimal(x, decimals).String()
}

// FormatFixed renders base units rounded to places decimals.
func FormatFixed(x *uint256.Int, decimals uint8, places int32) string {
	return ToDecimal(x, decimals).StringFixed(places)
}
