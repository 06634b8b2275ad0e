package sales

import (
	"context"

	"stockflow/internal/core/id"
)

// Repository persists sales transactions within the caller's transaction.
type Repository interface {
	// Create inserts the header and all lines.
	Create(ctx context.Context, t *Transaction) error

	// GetByID loads the header and lines. Returns TRANSACTION_NOT_FOUND if absent.
	GetByID(ctx context.Context, transactionID id.ID) (*Transaction, error)

	// GetForUpdate is GetByID with the header and lines locked.
	GetForUpdate(ctx context.Context, transactionID id.ID) (*Transaction, error)

	// UpdateLineProgress writes delivered/cancelled quantities and line status.
	UpdateLineProgress(ctx context.Context, lines []Line) error

	UpdateDeliveryStatus(ctx context.Context, transactionID id.ID, status DeliveryStatus) error

	// Delete removes the header and lines.
	Delete(ctx context.Context, transactionID id.ID) error
}
