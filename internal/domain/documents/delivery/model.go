// Package delivery provides the immutable delivery record: one collection
// of reserved goods against a sales transaction.
package delivery

import (
	"context"
	"time"

	"stockflow/internal/core/entity"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
)

// Record is append-only. It is never updated or deleted.
type Record struct {
	entity.Document

	TransactionID id.ID     `db:"transaction_id" json:"transactionId"`
	DeliveredAt   time.Time `db:"delivered_at" json:"deliveredAt"`
	DeliveredBy   string    `db:"delivered_by" json:"deliveredBy"`
	ReceivedBy    string    `db:"received_by" json:"receivedBy,omitempty"`
	Vehicle       string    `db:"vehicle" json:"vehicle,omitempty"`
	Notes         string    `db:"notes" json:"notes,omitempty"`

	TotalValue types.Money `db:"total_value" json:"totalValue"`

	Items []Item `db:"-" json:"items"`
}

// Item is the collected quantity of one sales line.
type Item struct {
	ID          id.ID          `db:"id" json:"id"`
	RecordID    id.ID          `db:"record_id" json:"recordId"`
	LineID      id.ID          `db:"line_id" json:"lineId"`
	ProductID   id.ID          `db:"product_id" json:"productId"`
	ProductName string         `db:"product_name" json:"productName"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	UnitPrice   types.Money    `db:"unit_price" json:"unitPrice"`
	// Value is the pro-rated share of the line total, so discount and tax carry over.
	Value types.Money `db:"value" json:"value"`
}

// Metadata is the caller-supplied context of a delivery.
type Metadata struct {
	DeliveredBy string
	ReceivedBy  string
	Vehicle     string
	Notes       string
	DeliveredAt time.Time
}

// ProRatedValue returns lineTotal * qty / lineQty rounded to cents.
func ProRatedValue(lineTotal types.Money, lineQty, qty types.Quantity) types.Money {
	if lineQty <= 0 {
		return types.Zero()
	}
	if qty == lineQty {
		return lineTotal
	}
	return types.Round2(lineTotal.Mul(qty.Decimal()).Div(lineQty.Decimal()))
}

// Repository appends and reads delivery records.
type Repository interface {
	// Append inserts the record and its items.
	Append(ctx context.Context, r *Record) error

	// ListByTransaction returns records oldest first, with items.
	ListByTransaction(ctx context.Context, transactionID id.ID) ([]Record, error)
}
