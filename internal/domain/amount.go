package domain

import (
	"fmt"
	"math/big"
)

// Amounts are wei-scale integers. They travel through the API and the
// database as decimal strings so no precision is lost on either side.

// ParseAmount converts a decimal string into a non-negative *big.Int.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("parse amount: empty string: %w", ErrArithmetic)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("parse amount %q: %w", s, ErrArithmetic)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("parse amount %q: negative: %w", s, ErrArithmetic)
	}
	return v, nil
}

// FormatAmount renders an amount as a decimal string; nil renders as "0".
func FormatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// ValidAmount reports whether v is a usable, non-negative amount.
func ValidAmount(v *big.Int) bool {
	return v != nil && v.Sign() >= 0
}
