package sales

import (
	"fmt"
	"strings"

	"stockflow/internal/core/types"
)

// DeliveryStatus is the collection progress of a line or a whole transaction.
// The zero value is invalid so an unset status never passes as NotTaken.
type DeliveryStatus uint8

const (
	StatusNotTaken DeliveryStatus = iota + 1
	StatusPartiallyTaken
	StatusTaken
)

// String returns the storage form: not_taken, partially_taken, taken.
func (s DeliveryStatus) String() string {
	switch s {
	case StatusNotTaken:
		return "not_taken"
	case StatusPartiallyTaken:
		return "partially_taken"
	case StatusTaken:
		return "taken"
	default:
		return fmt.Sprintf("DeliveryStatus(%d)", uint8(s))
	}
}

// Label returns the human readable form used on printed documents.
func (s DeliveryStatus) Label() string {
	switch s {
	case StatusNotTaken:
		return "Not Taken"
	case StatusPartiallyTaken:
		return "Partially Taken"
	case StatusTaken:
		return "Taken"
	default:
		return "Unknown"
	}
}

// Valid reports whether s is one of the three states.
func (s DeliveryStatus) Valid() bool {
	return s >= StatusNotTaken && s <= StatusTaken
}

// CanAdvanceTo reports whether moving from s to next keeps progress monotonic.
func (s DeliveryStatus) CanAdvanceTo(next DeliveryStatus) bool {
	return s.Valid() && next.Valid() && next >= s
}

// ParseDeliveryStatus accepts the storage form or the label, case-insensitively.
func ParseDeliveryStatus(v string) (DeliveryStatus, error) {
	norm := strings.ToLower(strings.TrimSpace(v))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch norm {
	case "not_taken":
		return StatusNotTaken, nil
	case "partially_taken":
		return StatusPartiallyTaken, nil
	case "taken":
		return StatusTaken, nil
	default:
		return 0, fmt.Errorf("invalid delivery status %q", v)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s DeliveryStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid delivery status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *DeliveryStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseDeliveryStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// LineStatus derives a line's status from its counters.
// A line is Taken once nothing is left to collect: delivered plus
// cancelled (returned before collection) covers the ordered quantity.
func LineStatus(quantity, delivered, cancelled types.Quantity) DeliveryStatus {
	switch {
	case delivered+cancelled >= quantity:
		return StatusTaken
	case delivered > 0:
		return StatusPartiallyTaken
	default:
		return StatusNotTaken
	}
}

// DeriveStatus derives the transaction status from its lines.
//
// Quotations never reserve and are always Taken. Otherwise the transaction is
// Taken when every line is, PartiallyTaken when any line has a collection and
// NotTaken in every other case.
func DeriveStatus(isQuotation bool, lines []Line) DeliveryStatus {
	if isQuotation {
		return StatusTaken
	}
	allTaken := len(lines) > 0
	anyDelivered := false
	for i := range lines {
		l := &lines[i]
		if LineStatus(l.Quantity, l.QuantityDelivered, l.QuantityCancelled) != StatusTaken {
			allTaken = false
		}
		if l.QuantityDelivered > 0 {
			anyDelivered = true
		}
	}
	switch {
	case allTaken:
		return StatusTaken
	case anyDelivered:
		return StatusPartiallyTaken
	default:
		return StatusNotTaken
	}
}
