// Package fulfillment implements stock reservation and delivery fulfillment:
// issuing and deleting sales transactions, recording deliveries and
// processing returns.
//
// Engine methods take the UnitOfWork of an already open transaction and
// never commit themselves. Service wraps each of them in its own unit.
package fulfillment

import (
	"context"
	"fmt"
	"time"

	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/events"
	"stockflow/internal/domain/guard"
	"stockflow/internal/domain/registers/stock"
	"stockflow/internal/domain/uow"
	"stockflow/pkg/logger"
	"stockflow/pkg/numerator"
)

// Config holds engine settings.
type Config struct {
	// BaseCurrency is the reporting currency of balances and the financial ledger.
	BaseCurrency string

	InvoicePrefix   string
	QuotationPrefix string
	DeliveryPrefix  string
	ReturnPrefix    string

	// Now is the clock; nil means time.Now in UTC.
	Now func() time.Time
}

// DefaultConfig returns USD with INV/QUO/DLV/RET numbering.
func DefaultConfig() Config {
	return Config{
		BaseCurrency:    "USD",
		InvoicePrefix:   "INV",
		QuotationPrefix: "QUO",
		DeliveryPrefix:  "DLV",
		ReturnPrefix:    "RET",
	}
}

// Engine runs the fulfillment operations against a caller-supplied unit of work.
type Engine struct {
	ledger    *stock.Ledger
	guard     *guard.Guard
	numerator *numerator.Service
	cfg       Config
}

// NewEngine creates an Engine.
func NewEngine(ledger *stock.Ledger, g *guard.Guard, num *numerator.Service, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.BaseCurrency == "" {
		cfg.BaseCurrency = def.BaseCurrency
	}
	if cfg.InvoicePrefix == "" {
		cfg.InvoicePrefix = def.InvoicePrefix
	}
	if cfg.QuotationPrefix == "" {
		cfg.QuotationPrefix = def.QuotationPrefix
	}
	if cfg.DeliveryPrefix == "" {
		cfg.DeliveryPrefix = def.DeliveryPrefix
	}
	if cfg.ReturnPrefix == "" {
		cfg.ReturnPrefix = def.ReturnPrefix
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		ledger:    ledger,
		guard:     g,
		numerator: num,
		cfg:       cfg,
	}
}

// BaseCurrency returns the configured reporting currency.
func (e *Engine) BaseCurrency() string { return e.cfg.BaseCurrency }

func (e *Engine) nextNumber(ctx context.Context, u uow.UnitOfWork, prefix string, date time.Time) (string, error) {
	num, err := e.numerator.GetNextNumber(ctx, u.Sequences(), numerator.DefaultConfig(prefix), date)
	if err != nil {
		return "", fmt.Errorf("allocate %s number: %w", prefix, err)
	}
	return num, nil
}

// checkReorder publishes ReorderLevelReached when the rule holds for p.
// A rule evaluation error is logged and does not fail the operation.
func (e *Engine) checkReorder(ctx context.Context, u uow.UnitOfWork, p *stock.Product) error {
	hit, err := e.ledger.NeedsReorder(p)
	if err != nil {
		logger.Warn(ctx, "reorder rule failed", "product_id", p.ID, "error", err)
		return nil
	}
	if !hit {
		return nil
	}
	return u.Events().Publish(ctx, events.Event{
		AggregateType: events.AggregateProduct,
		AggregateID:   p.ID,
		Type:          events.ReorderLevelReached,
		Payload: map[string]any{
			"product_id":    p.ID,
			"code":          p.Code,
			"physical":      p.PhysicalStock,
			"reserved":      p.ReservedStock,
			"available":     p.Available(),
			"reorder_level": p.ReorderLevel,
		},
	})
}

// productQty accumulates quantities per product and yields them in lock order.
type productQty struct {
	order []id.ID
	qty   map[id.ID]types.Quantity
}

func newProductQty() *productQty {
	return &productQty{qty: make(map[id.ID]types.Quantity)}
}

func (p *productQty) add(productID id.ID, q types.Quantity) {
	if _, ok := p.qty[productID]; !ok {
		p.order = append(p.order, productID)
	}
	p.qty[productID] += q
}

// sorted returns product ids in ascending order.
func (p *productQty) sorted() []id.ID {
	return id.SortedUnique(p.order)
}
