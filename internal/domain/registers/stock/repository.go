package stock

import (
	"context"

	"stockflow/internal/core/id"
)

// Repository persists products and the adjustment journal.
// Implementations are bound to one open transaction.
type Repository interface {
	// GetProduct reads without locking. Returns PRODUCT_NOT_FOUND if absent.
	GetProduct(ctx context.Context, productID id.ID) (*Product, error)

	// GetProductForUpdate reads and locks the row until the transaction ends.
	GetProductForUpdate(ctx context.Context, productID id.ID) (*Product, error)

	// ApplyDelta adds d to the counters only if the result keeps
	// 0 <= reserved <= physical, and returns the updated row.
	// A refused update is a CONSISTENCY_VIOLATION.
	ApplyDelta(ctx context.Context, productID id.ID, d Delta) (*Product, error)

	CreateProduct(ctx context.Context, p *Product) error

	InsertAdjustment(ctx context.Context, a *Adjustment) error

	// ListAdjustments returns newest first.
	ListAdjustments(ctx context.Context, productID id.ID, limit int) ([]Adjustment, error)
}
