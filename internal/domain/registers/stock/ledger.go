package stock

import (
	"context"
	"fmt"
	"time"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/guard"
	"stockflow/pkg/logger"
)

// Ledger implements the stock primitives.
//
// Every primitive takes the Repository of the caller's transaction, locks the
// product row, checks the guard and applies one conditional update. The
// caller owns commit and rollback.
type Ledger struct {
	guard *guard.Guard
	rule  *ReorderRule
	now   func() time.Time
}

// NewLedger creates a Ledger. rule may be nil to disable reorder checks.
func NewLedger(g *guard.Guard, rule *ReorderRule) *Ledger {
	return &Ledger{
		guard: g,
		rule:  rule,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Available returns physical minus reserved stock for productID.
func (l *Ledger) Available(ctx context.Context, repo Repository, productID id.ID) (types.Quantity, error) {
	p, err := repo.GetProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	return p.Available(), nil
}

// Reserve promises qty units of productID to a sale.
// Fails with INSUFFICIENT_STOCK when available < qty.
func (l *Ledger) Reserve(ctx context.Context, repo Repository, productID id.ID, qty types.Quantity) (*Product, error) {
	if err := requirePositive(qty); err != nil {
		return nil, err
	}
	p, err := repo.GetProductForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := l.guard.RequireAvailable(productID.String(), p.PhysicalStock, p.ReservedStock, qty); err != nil {
		return nil, err
	}
	return l.apply(ctx, repo, p, Delta{Reserved: qty})
}

// ReleaseAndConsume hands over qty reserved units: both counters drop by qty.
// A reservation shortfall is handled by the guard policy.
func (l *Ledger) ReleaseAndConsume(ctx context.Context, repo Repository, productID id.ID, qty types.Quantity) (*Product, error) {
	if err := requirePositive(qty); err != nil {
		return nil, err
	}
	p, err := repo.GetProductForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}
	release, err := l.guard.RequireReservation(ctx, productID.String(), p.ReservedStock, qty)
	if err != nil {
		return nil, err
	}
	return l.apply(ctx, repo, p, Delta{Physical: -qty, Reserved: -release})
}

// ReleaseOnly cancels up to qty reserved units. Physical stock is untouched.
// It never fails on a shortfall; the guard reports it.
func (l *Ledger) ReleaseOnly(ctx context.Context, repo Repository, productID id.ID, qty types.Quantity) (*Product, error) {
	if err := requirePositive(qty); err != nil {
		return nil, err
	}
	p, err := repo.GetProductForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}
	release := l.guard.ClampRelease(ctx, productID.String(), p.ReservedStock, qty)
	if release == 0 {
		return p, nil
	}
	return l.apply(ctx, repo, p, Delta{Reserved: -release})
}

// Restock puts qty units back into physical stock.
func (l *Ledger) Restock(ctx context.Context, repo Repository, productID id.ID, qty types.Quantity) (*Product, error) {
	if err := requirePositive(qty); err != nil {
		return nil, err
	}
	p, err := repo.GetProductForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}
	return l.apply(ctx, repo, p, Delta{Physical: qty})
}

// AdjustManually changes physical stock by a signed delta outside the sales flow
// and journals it. Reserved stock must remain covered.
func (l *Ledger) AdjustManually(ctx context.Context, repo Repository, productID id.ID, delta types.Quantity, note, createdBy string) (*Product, *Adjustment, error) {
	if delta == 0 {
		return nil, nil, apperror.NewValidation("adjustment delta must not be zero")
	}
	p, err := repo.GetProductForUpdate(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if p.PhysicalStock+delta < p.ReservedStock {
		return nil, nil, apperror.NewInsufficientStock(productID.String(), (-delta).Float64(), p.Available().Float64()).
			WithDetail("reason", "adjustment would leave reserved stock uncovered")
	}

	updated, err := l.apply(ctx, repo, p, Delta{Physical: delta})
	if err != nil {
		return nil, nil, err
	}

	adj := &Adjustment{
		ID:        id.New(),
		ProductID: productID,
		Quantity:  delta,
		Reason:    ReasonManual,
		Note:      note,
		CreatedBy: createdBy,
		CreatedAt: l.now(),
	}
	if err := repo.InsertAdjustment(ctx, adj); err != nil {
		return nil, nil, fmt.Errorf("insert adjustment: %w", err)
	}

	logger.Info(ctx, "stock adjusted manually",
		"product_id", productID,
		"delta", delta.String(),
		"physical", updated.PhysicalStock.String(),
	)
	return updated, adj, nil
}

// RecordAdjustment journals a traceability marker without touching counters.
func (l *Ledger) RecordAdjustment(ctx context.Context, repo Repository, a *Adjustment) error {
	if id.IsNil(a.ID) {
		a.ID = id.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = l.now()
	}
	if err := repo.InsertAdjustment(ctx, a); err != nil {
		return fmt.Errorf("insert adjustment: %w", err)
	}
	return nil
}

// NeedsReorder evaluates the reorder rule for p. Without a rule it is always false.
func (l *Ledger) NeedsReorder(p *Product) (bool, error) {
	if l.rule == nil {
		return false, nil
	}
	return l.rule.Triggered(p)
}

func (l *Ledger) apply(ctx context.Context, repo Repository, p *Product, d Delta) (*Product, error) {
	if err := l.guard.RequireStockInvariant(ctx, p.ID.String(), p.PhysicalStock+d.Physical, p.ReservedStock+d.Reserved); err != nil {
		return nil, err
	}
	updated, err := repo.ApplyDelta(ctx, p.ID, d)
	if err != nil {
		return nil, err
	}
	logger.Debug(ctx, "stock delta applied",
		"product_id", p.ID,
		"physical_delta", d.Physical.String(),
		"reserved_delta", d.Reserved.String(),
	)
	return updated, nil
}

func requirePositive(qty types.Quantity) error {
	if !qty.IsPositive() {
		return apperror.NewValidation("quantity must be positive").WithDetail("quantity", qty.Float64())
	}
	return nil
}
