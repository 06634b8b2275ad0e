// Package salesreturn provides the sales return document.
package salesreturn

import (
	"context"
	"fmt"
	"strings"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/entity"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
)

// Condition is the declared state of returned goods.
type Condition string

const (
	ConditionGood      Condition = "good"
	ConditionDamaged   Condition = "damaged"
	ConditionDefective Condition = "defective"
)

// ParseCondition parses a condition name case-insensitively.
func ParseCondition(s string) (Condition, error) {
	c := Condition(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case ConditionGood, ConditionDamaged, ConditionDefective:
		return c, nil
	default:
		return "", fmt.Errorf("invalid condition %q", s)
	}
}

// RefundMethod is how the return is settled.
type RefundMethod string

const (
	RefundCash         RefundMethod = "cash"
	RefundStoreCredit  RefundMethod = "store_credit"
	RefundBankTransfer RefundMethod = "bank_transfer"
	RefundOther        RefundMethod = "other"
)

// Valid reports whether m is a known method.
func (m RefundMethod) Valid() bool {
	switch m {
	case RefundCash, RefundStoreCredit, RefundBankTransfer, RefundOther:
		return true
	}
	return false
}

// RefundStatus is settlement progress. It does not affect stock.
type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundRefunded  RefundStatus = "refunded"
	RefundCancelled RefundStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s RefundStatus) Valid() bool {
	switch s {
	case RefundPending, RefundRefunded, RefundCancelled:
		return true
	}
	return false
}

// Record is a return header. Apart from RefundStatus it is immutable.
type Record struct {
	entity.Document

	TransactionID  id.ID `db:"transaction_id" json:"transactionId"`
	CounterpartyID id.ID `db:"counterparty_id" json:"counterpartyId"`

	Currency     string      `db:"currency" json:"currency"`
	ExchangeRate types.Money `db:"exchange_rate" json:"exchangeRate"`

	Subtotal      types.Money `db:"subtotal" json:"subtotal"`
	DiscountTotal types.Money `db:"discount_total" json:"discountTotal"`
	TaxTotal      types.Money `db:"tax_total" json:"taxTotal"`
	Total         types.Money `db:"total" json:"total"`
	BaseTotal     types.Money `db:"base_total" json:"baseTotal"`

	RefundMethod RefundMethod `db:"refund_method" json:"refundMethod"`
	RefundStatus RefundStatus `db:"refund_status" json:"refundStatus"`
	Reason       string       `db:"reason" json:"reason,omitempty"`

	Lines []Line `db:"-" json:"lines"`
}

// Line returns part of one sales line.
type Line struct {
	ID          id.ID  `db:"id" json:"id"`
	ReturnID    id.ID  `db:"return_id" json:"returnId"`
	LineNo      int    `db:"line_no" json:"lineNo"`
	SalesLineID id.ID  `db:"sales_line_id" json:"salesLineId"`
	ProductID   id.ID  `db:"product_id" json:"productId"`
	ProductName string `db:"product_name" json:"productName"`

	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	Condition Condition      `db:"condition" json:"condition"`
	Restock   bool           `db:"restock" json:"restock"`

	UnitPrice       types.Money `db:"unit_price" json:"unitPrice"`
	DiscountPercent types.Money `db:"discount_percent" json:"discountPercent"`
	TaxPercent      types.Money `db:"tax_percent" json:"taxPercent"`
	Subtotal        types.Money `db:"subtotal" json:"subtotal"`
	DiscountAmount  types.Money `db:"discount_amount" json:"discountAmount"`
	TaxAmount       types.Money `db:"tax_amount" json:"taxAmount"`
	Total           types.Money `db:"total" json:"total"`

	// Released is the part applied to the still-reserved quantity of the sales line.
	Released types.Quantity `db:"released" json:"released"`
	// Restocked is the part that re-entered physical stock.
	Restocked types.Quantity `db:"restocked" json:"restocked"`
}

// EffectiveRestock reports whether the goods may re-enter physical stock.
// The flag only counts for goods in good condition.
func (l *Line) EffectiveRestock() bool {
	return l.Restock && l.Condition == ConditionGood
}

// Validate implements entity.Validatable.
func (r *Record) Validate(ctx context.Context) error {
	if err := r.Document.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(r.TransactionID) {
		return apperror.NewValidation("transaction is required").WithDetail("field", "transactionId")
	}
	if !r.RefundMethod.Valid() {
		return apperror.NewValidation("invalid refund method").WithDetail("refundMethod", r.RefundMethod)
	}
	if len(r.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}
	return nil
}

// Repository persists returns within the caller's transaction.
type Repository interface {
	Create(ctx context.Context, r *Record) error

	// GetByID returns RETURN_NOT_FOUND if absent.
	GetByID(ctx context.Context, returnID id.ID) (*Record, error)

	// ReturnedBySalesLine sums returned quantities per sales line of a transaction.
	ReturnedBySalesLine(ctx context.Context, transactionID id.ID) (map[id.ID]types.Quantity, error)

	CountByTransaction(ctx context.Context, transactionID id.ID) (int, error)

	UpdateRefundStatus(ctx context.Context, returnID id.ID, status RefundStatus) error
}
