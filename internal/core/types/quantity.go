package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// QuantityScale is the number of Quantity units in one whole unit.
const QuantityScale int64 = 10_000

const quantityExp = 4

// Quantity is a fixed-point quantity with 4 decimal places.
// Stock counters and line quantities are stored as scaled BIGINT so
// reserved/physical comparisons are exact integer comparisons.
type Quantity int64

// NewQuantity creates a Quantity of whole units.
func NewQuantity(units int64) Quantity {
	return Quantity(units * QuantityScale)
}

// ParseQuantity parses a decimal such as "12.5" or "1e3".
// Digits beyond the fourth decimal place are truncated.
func ParseQuantity(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	scaled := d.Shift(quantityExp).Truncate(0)
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("quantity %q out of range", s)
	}
	return Quantity(scaled.IntPart()), nil
}

// Int64Scaled returns the raw scaled value as stored in the database.
func (q Quantity) Int64Scaled() int64 { return int64(q) }

// Float64 is for log fields and error details only.
func (q Quantity) Float64() float64 { return float64(q) / float64(QuantityScale) }

func (q Quantity) IsZero() bool { return q == 0 }

func (q Quantity) IsPositive() bool { return q > 0 }

func (q Quantity) IsNegative() bool { return q < 0 }

func (q Quantity) Neg() Quantity { return -q }

// Decimal converts the quantity to a decimal for price arithmetic.
func (q Quantity) Decimal() decimal.Decimal {
	return decimal.New(int64(q), -quantityExp)
}

// String returns a decimal string with 4 fractional digits.
func (q Quantity) String() string {
	return q.Decimal().StringFixed(quantityExp)
}

// MarshalJSON encodes Quantity as a JSON number with 4 fractional digits.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string. null is zero.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = 0
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	parsed, err := ParseQuantity(raw)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
