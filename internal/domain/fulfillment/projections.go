package fulfillment

import (
	"context"
	"fmt"

	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/audit"
	"stockflow/internal/domain/documents/delivery"
	"stockflow/internal/domain/documents/sales"
	"stockflow/internal/domain/documents/salesreturn"
	"stockflow/internal/domain/registers/stock"
	"stockflow/internal/domain/uow"
)

// ProductAvailability returns the product with its counters; Available() is physical minus reserved.
func (e *Engine) ProductAvailability(ctx context.Context, u uow.UnitOfWork, productID id.ID) (*stock.Product, error) {
	return u.Stock().GetProduct(ctx, productID)
}

// GetTransaction returns a transaction with its lines; Line.Remaining() is the undelivered quantity.
func (e *Engine) GetTransaction(ctx context.Context, u uow.UnitOfWork, transactionID id.ID) (*sales.Transaction, error) {
	return u.Sales().GetByID(ctx, transactionID)
}

// ListDeliveries returns the delivery records of a transaction, oldest first.
func (e *Engine) ListDeliveries(ctx context.Context, u uow.UnitOfWork, transactionID id.ID) ([]delivery.Record, error) {
	if _, err := u.Sales().GetByID(ctx, transactionID); err != nil {
		return nil, err
	}
	return u.Deliveries().ListByTransaction(ctx, transactionID)
}

// GetReturn returns a sales return with its lines.
func (e *Engine) GetReturn(ctx context.Context, u uow.UnitOfWork, returnID id.ID) (*salesreturn.Record, error) {
	return u.Returns().GetByID(ctx, returnID)
}

// AdjustStock applies a manual physical stock correction and audits it.
func (e *Engine) AdjustStock(ctx context.Context, u uow.UnitOfWork, productID id.ID, delta types.Quantity, note string) (*stock.Product, *stock.Adjustment, error) {
	p, adj, err := e.ledger.AdjustManually(ctx, u.Stock(), productID, delta, note, audit.Actor(ctx, ""))
	if err != nil {
		return nil, nil, err
	}
	if err := u.Audit().LogChange(ctx, "product", productID, audit.ActionAdjust, map[string]any{
		"delta":    delta,
		"physical": p.PhysicalStock,
		"reserved": p.ReservedStock,
		"note":     note,
	}); err != nil {
		return nil, nil, fmt.Errorf("audit adjustment: %w", err)
	}
	if err := e.checkReorder(ctx, u, p); err != nil {
		return nil, nil, err
	}
	return p, adj, nil
}
