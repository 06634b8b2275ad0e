// Package types holds the numeric value types of the engine: Money for
// prices and balances, Quantity for stock and line quantities.
package types

import "github.com/shopspring/decimal"

// Money is an exact decimal amount. Totals are rounded to cents with Round2.
type Money = decimal.Decimal

var hundred = decimal.NewFromInt(100)

// NewMoney creates Money from a float. Prefer MustMoney for literals.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// MustMoney parses a decimal literal and panics on error.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// Round2 rounds a monetary amount to cents, half away from zero.
func Round2(m Money) Money {
	return m.Round(2)
}

// Percent returns pct percent of m, unrounded.
func Percent(m, pct Money) Money {
	return m.Mul(pct).Div(hundred)
}
