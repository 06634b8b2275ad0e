package fulfillment

import (
	"context"
	"fmt"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/domain/audit"
	"stockflow/internal/domain/catalogs/counterparty"
	"stockflow/internal/domain/registers/stock"
	"stockflow/internal/domain/uow"
	"stockflow/pkg/logger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultHistoryLimit
	case limit > maxHistoryLimit:
		return maxHistoryLimit
	}
	return limit
}

// CreateProduct registers a product with its opening physical stock.
func (e *Engine) CreateProduct(ctx context.Context, u uow.UnitOfWork, p *stock.Product) error {
	if id.IsNil(p.ID) {
		p.ID = id.New()
	}
	p.ReservedStock = 0
	p.UpdatedAt = e.cfg.Now()
	if err := p.Validate(ctx); err != nil {
		return err
	}
	if err := u.Stock().CreateProduct(ctx, p); err != nil {
		return err
	}
	if err := u.Audit().LogChange(ctx, "product", p.ID, audit.ActionCreate, map[string]any{
		"code":          p.Code,
		"name":          p.Name,
		"physical":      p.PhysicalStock,
		"reorder_level": p.ReorderLevel,
	}); err != nil {
		return fmt.Errorf("audit product: %w", err)
	}
	logger.Info(ctx, "product created", "product_id", p.ID, "code", p.Code)
	return nil
}

// CreateCounterparty registers a counterparty with zero balances.
func (e *Engine) CreateCounterparty(ctx context.Context, u uow.UnitOfWork, c *counterparty.Counterparty) error {
	if id.IsNil(c.ID) {
		c.ID = id.New()
	}
	if c.Kind == "" {
		c.Kind = counterparty.KindCustomer
	}
	if !c.Balance.IsZero() || !c.CreditBalance.IsZero() {
		return apperror.NewValidation("new counterparties start with zero balances")
	}
	c.CreatedAt = e.cfg.Now()
	if err := c.Validate(ctx); err != nil {
		return err
	}
	if err := u.Counterparties().Create(ctx, c); err != nil {
		return err
	}
	logger.Info(ctx, "counterparty created", "counterparty_id", c.ID, "code", c.Code)
	return nil
}

// GetCounterparty returns a counterparty with its balances.
func (e *Engine) GetCounterparty(ctx context.Context, u uow.UnitOfWork, counterpartyID id.ID) (*counterparty.Counterparty, error) {
	return u.Counterparties().GetByID(ctx, counterpartyID)
}

// ListAdjustments returns the adjustment journal of a product, newest first.
func (e *Engine) ListAdjustments(ctx context.Context, u uow.UnitOfWork, productID id.ID, limit int) ([]stock.Adjustment, error) {
	if _, err := u.Stock().GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return u.Stock().ListAdjustments(ctx, productID, clampLimit(limit))
}

// AuditHistory returns recorded changes of one entity, newest first.
func (e *Engine) AuditHistory(ctx context.Context, u uow.UnitOfWork, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	if entityType == "" {
		return nil, apperror.NewValidation("entity type is required")
	}
	return u.Audit().History(ctx, entityType, entityID, clampLimit(limit))
}
