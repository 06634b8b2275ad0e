package entity

import (
	"context"
	"time"

	"stockflow/internal/core/apperror"
)

// Document is the base type for numbered business documents:
// sales transactions, delivery records and sales returns.
type Document struct {
	BaseDocument

	// Number is allocated by the numerator inside the creating transaction.
	Number string `db:"number" json:"number"`

	// Date is the business date; it also selects the numbering period.
	Date time.Time `db:"date" json:"date"`

	Comment string `db:"comment" json:"comment,omitempty"`
}

// NewDocument creates a Document dated now.
func NewDocument(now time.Time) Document {
	return Document{
		BaseDocument: NewBaseDocument(now),
		Date:         now.UTC(),
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}
	return nil
}

// SetNumber assigns the allocated document number.
func (d *Document) SetNumber(number string) {
	d.Number = number
}
