// Package stock is the stock ledger: per-product physical and reserved counters
// and the only code allowed to change them.
package stock

import (
	"context"
	"strings"
	"time"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
)

// Product holds the stock counters of one product.
// Invariant: 0 <= ReservedStock <= PhysicalStock.
type Product struct {
	ID            id.ID          `db:"id" json:"id"`
	Code          string         `db:"code" json:"code"`
	Name          string         `db:"name" json:"name"`
	PhysicalStock types.Quantity `db:"physical_stock" json:"physicalStock"`
	ReservedStock types.Quantity `db:"reserved_stock" json:"reservedStock"`
	ReorderLevel  types.Quantity `db:"reorder_level" json:"reorderLevel"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updatedAt"`
}

// Available is physical minus reserved stock.
func (p *Product) Available() types.Quantity {
	return p.PhysicalStock - p.ReservedStock
}

// Validate implements entity.Validatable.
func (p *Product) Validate(ctx context.Context) error {
	if strings.TrimSpace(p.Code) == "" {
		return apperror.NewValidation("code is required").WithDetail("field", "code")
	}
	if strings.TrimSpace(p.Name) == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if p.PhysicalStock.IsNegative() || p.ReorderLevel.IsNegative() {
		return apperror.NewValidation("stock levels must not be negative")
	}
	if p.ReservedStock != 0 {
		return apperror.NewValidation("new products start without reservations")
	}
	return nil
}

// Delta is a signed change applied to both counters in one statement.
type Delta struct {
	Physical types.Quantity
	Reserved types.Quantity
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return d.Physical == 0 && d.Reserved == 0
}

// AdjustmentReason classifies rows of the stock adjustment journal.
type AdjustmentReason string

const (
	ReasonManual         AdjustmentReason = "manual"
	ReasonReturnRestock  AdjustmentReason = "return_restock"
	ReasonReturnWriteOff AdjustmentReason = "return_write_off"
	ReasonReturnRelease  AdjustmentReason = "return_release"
)

// Adjustment is one journal row. For manual corrections Quantity is the applied
// physical delta. Return rows are traceability markers written next to the
// ledger counters: positive when restocked, negative when written off, and
// the released quantity for goods that were never collected.
type Adjustment struct {
	ID          id.ID            `db:"id" json:"id"`
	ProductID   id.ID            `db:"product_id" json:"productId"`
	Quantity    types.Quantity   `db:"quantity" json:"quantity"`
	Reason      AdjustmentReason `db:"reason" json:"reason"`
	ReferenceID *id.ID           `db:"reference_id" json:"referenceId,omitempty"`
	Note        string           `db:"note" json:"note,omitempty"`
	CreatedBy   string           `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
}
