// Package sales provides the sales transaction document: invoices and
// quotations with per-line delivery progress.
package sales

import (
	"context"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/entity"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
)

// Transaction is an invoice or a non-binding quotation.
// After creation only line progress and DeliveryStatus change.
type Transaction struct {
	entity.Document

	CounterpartyID id.ID `db:"counterparty_id" json:"counterpartyId"`
	IsQuotation    bool  `db:"is_quotation" json:"isQuotation"`

	Currency     string      `db:"currency" json:"currency"`
	ExchangeRate types.Money `db:"exchange_rate" json:"exchangeRate"`

	Subtotal      types.Money `db:"subtotal" json:"subtotal"`
	DiscountTotal types.Money `db:"discount_total" json:"discountTotal"`
	TaxTotal      types.Money `db:"tax_total" json:"taxTotal"`
	Total         types.Money `db:"total" json:"total"`
	// BaseTotal is Total converted to the base currency.
	BaseTotal types.Money `db:"base_total" json:"baseTotal"`

	// PaidAmount was settled at issuance, in transaction currency.
	PaidAmount    types.Money `db:"paid_amount" json:"paidAmount"`
	PaymentMethod string      `db:"payment_method" json:"paymentMethod,omitempty"`

	DeliveryStatus DeliveryStatus `db:"-" json:"deliveryStatus"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one ordered product.
// Invariant: 0 <= QuantityDelivered and QuantityDelivered+QuantityCancelled <= Quantity.
type Line struct {
	ID            id.ID  `db:"id" json:"id"`
	TransactionID id.ID  `db:"transaction_id" json:"transactionId"`
	LineNo        int    `db:"line_no" json:"lineNo"`
	ProductID     id.ID  `db:"product_id" json:"productId"`
	ProductName   string `db:"product_name" json:"productName"`

	Quantity          types.Quantity `db:"quantity" json:"quantity"`
	QuantityDelivered types.Quantity `db:"quantity_delivered" json:"quantityDelivered"`
	// QuantityCancelled was returned before it was collected; its reservation is released.
	QuantityCancelled types.Quantity `db:"quantity_cancelled" json:"quantityCancelled"`

	UnitPrice       types.Money `db:"unit_price" json:"unitPrice"`
	DiscountPercent types.Money `db:"discount_percent" json:"discountPercent"`
	TaxPercent      types.Money `db:"tax_percent" json:"taxPercent"`

	Subtotal       types.Money `db:"subtotal" json:"subtotal"`
	DiscountAmount types.Money `db:"discount_amount" json:"discountAmount"`
	TaxAmount      types.Money `db:"tax_amount" json:"taxAmount"`
	Total          types.Money `db:"total" json:"total"`

	DeliveryStatus DeliveryStatus `db:"-" json:"deliveryStatus"`
}

// Remaining is the quantity still reserved for collection.
func (l *Line) Remaining() types.Quantity {
	return l.Quantity - l.QuantityDelivered - l.QuantityCancelled
}

// RecomputeStatus refreshes the line status from its counters.
func (l *Line) RecomputeStatus() {
	l.DeliveryStatus = LineStatus(l.Quantity, l.QuantityDelivered, l.QuantityCancelled)
}

// Line finds a line by id.
func (t *Transaction) Line(lineID id.ID) (*Line, bool) {
	for i := range t.Lines {
		if t.Lines[i].ID == lineID {
			return &t.Lines[i], true
		}
	}
	return nil, false
}

// RecomputeStatus refreshes every line status and the derived transaction status.
func (t *Transaction) RecomputeStatus() DeliveryStatus {
	for i := range t.Lines {
		t.Lines[i].RecomputeStatus()
	}
	t.DeliveryStatus = DeriveStatus(t.IsQuotation, t.Lines)
	return t.DeliveryStatus
}

// Outstanding is the unpaid part of the total in transaction currency.
func (t *Transaction) Outstanding() types.Money {
	return t.Total.Sub(t.PaidAmount)
}

// Validate implements entity.Validatable.
func (t *Transaction) Validate(ctx context.Context) error {
	if err := t.Document.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(t.CounterpartyID) {
		return apperror.NewValidation("counterparty is required").
			WithDetail("field", "counterpartyId")
	}
	if len(t.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}
	for i, l := range t.Lines {
		if id.IsNil(l.ProductID) {
			return apperror.NewValidation("product is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}
	if t.PaidAmount.IsNegative() {
		return apperror.NewValidation("paid amount must not be negative").
			WithDetail("field", "paidAmount")
	}
	if t.PaidAmount.GreaterThan(t.Total) {
		return apperror.NewValidation("paid amount exceeds total").
			WithDetail("field", "paidAmount")
	}
	return nil
}
