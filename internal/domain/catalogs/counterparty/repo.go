package counterparty

import (
	"context"

	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
)

// Repository defines the interface for Counterparty persistence.
type Repository interface {
	// GetByID returns COUNTERPARTY_NOT_FOUND if absent.
	GetByID(ctx context.Context, counterpartyID id.ID) (*Counterparty, error)

	Create(ctx context.Context, c *Counterparty) error

	// AdjustBalance adds delta to the receivable balance in one statement.
	AdjustBalance(ctx context.Context, counterpartyID id.ID, delta types.Money) error

	// AdjustCredit adds delta to the store-credit balance in one statement.
	AdjustCredit(ctx context.Context, counterpartyID id.ID, delta types.Money) error
}
