// Package entity holds the fields shared by every persisted document.
package entity

import (
	"context"
	"time"

	"stockflow/internal/core/id"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	Validate(ctx context.Context) error
}

// BaseDocument carries identity and creation audit fields.
// Documents of this engine are immutable after creation apart from
// explicitly named progress fields, so there is no version or updated_at.
type BaseDocument struct {
	ID        id.ID     `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
}

// NewBaseDocument creates a BaseDocument with a fresh id stamped at now.
func NewBaseDocument(now time.Time) BaseDocument {
	return BaseDocument{
		ID:        id.New(),
		CreatedAt: now.UTC(),
	}
}
