package dto

import (
	"fmt"
	"time"

	"stockflow/internal/core/types"
	"stockflow/internal/domain/documents/delivery"
	"stockflow/internal/domain/documents/sales"
	"stockflow/internal/domain/fulfillment"
)

// --- Request DTOs ---

// CreateSalesRequest issues an invoice or quotation.
type CreateSalesRequest struct {
	CounterpartyID string      `json:"counterpartyId" binding:"required,uuid"`
	IsQuotation    bool        `json:"isQuotation"`
	Currency       string      `json:"currency" binding:"omitempty,len=3"`
	ExchangeRate   types.Money `json:"exchangeRate"`
	Date           *time.Time  `json:"date"`
	Comment        string      `json:"comment" binding:"max=1000"`
	PaidAmount     types.Money `json:"paidAmount"`
	PaymentMethod  string      `json:"paymentMethod" binding:"max=50"`

	Lines []SalesLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// SalesLineRequest is one ordered product.
type SalesLineRequest struct {
	ProductID       string         `json:"productId" binding:"required,uuid"`
	Quantity        types.Quantity `json:"quantity" binding:"required,gt=0"`
	UnitPrice       types.Money    `json:"unitPrice"`
	DiscountPercent types.Money    `json:"discountPercent"`
	TaxPercent      types.Money    `json:"taxPercent"`
}

// ToInput converts the request to an issuance input.
func (r *CreateSalesRequest) ToInput() (fulfillment.IssueInput, error) {
	counterpartyID, err := ParseID("counterpartyId", r.CounterpartyID)
	if err != nil {
		return fulfillment.IssueInput{}, err
	}

	in := fulfillment.IssueInput{
		CounterpartyID: counterpartyID,
		IsQuotation:    r.IsQuotation,
		Currency:       r.Currency,
		ExchangeRate:   r.ExchangeRate,
		Date:           dateOrZero(r.Date),
		Comment:        r.Comment,
		PaidAmount:     r.PaidAmount,
		PaymentMethod:  r.PaymentMethod,
		Lines:          make([]fulfillment.IssueLine, 0, len(r.Lines)),
	}
	for i, l := range r.Lines {
		productID, err := ParseID(fmt.Sprintf("lines[%d].productId", i), l.ProductID)
		if err != nil {
			return fulfillment.IssueInput{}, err
		}
		in.Lines = append(in.Lines, fulfillment.IssueLine{
			ProductID:       productID,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			DiscountPercent: l.DiscountPercent,
			TaxPercent:      l.TaxPercent,
		})
	}
	return in, nil
}

// MarkAsTakenRequest records one collection against a transaction.
type MarkAsTakenRequest struct {
	Items []DeliveryItemRequest `json:"items" binding:"required,min=1,dive"`

	DeliveredBy string     `json:"deliveredBy" binding:"max=200"`
	ReceivedBy  string     `json:"receivedBy" binding:"max=200"`
	Vehicle     string     `json:"vehicle" binding:"max=100"`
	Notes       string     `json:"notes" binding:"max=1000"`
	DeliveredAt *time.Time `json:"deliveredAt"`
}

// DeliveryItemRequest is the collected quantity of one line.
type DeliveryItemRequest struct {
	LineID   string         `json:"lineId" binding:"required,uuid"`
	Quantity types.Quantity `json:"quantity" binding:"required,gt=0"`
}

// ToItems converts the request items.
func (r *MarkAsTakenRequest) ToItems() ([]fulfillment.DeliveryItem, error) {
	items := make([]fulfillment.DeliveryItem, 0, len(r.Items))
	for i, it := range r.Items {
		lineID, err := ParseID(fmt.Sprintf("items[%d].lineId", i), it.LineID)
		if err != nil {
			return nil, err
		}
		items = append(items, fulfillment.DeliveryItem{LineID: lineID, Quantity: it.Quantity})
	}
	return items, nil
}

// Metadata returns the delivery metadata.
func (r *MarkAsTakenRequest) Metadata() delivery.Metadata {
	return delivery.Metadata{
		DeliveredBy: r.DeliveredBy,
		ReceivedBy:  r.ReceivedBy,
		Vehicle:     r.Vehicle,
		Notes:       r.Notes,
		DeliveredAt: dateOrZero(r.DeliveredAt),
	}
}

// --- Response DTOs ---

// SalesResponse is a transaction with per-line remaining quantities.
type SalesResponse struct {
	*sales.Transaction
	Outstanding types.Money         `json:"outstanding"`
	Lines       []SalesLineResponse `json:"lines"`
}

// SalesLineResponse adds the quantity still reserved for collection.
type SalesLineResponse struct {
	sales.Line
	QuantityRemaining types.Quantity `json:"quantityRemaining"`
}

// FromTransaction converts a transaction to its response.
func FromTransaction(t *sales.Transaction) SalesResponse {
	resp := SalesResponse{
		Transaction: t,
		Outstanding: t.Outstanding(),
		Lines:       make([]SalesLineResponse, 0, len(t.Lines)),
	}
	for _, l := range t.Lines {
		resp.Lines = append(resp.Lines, SalesLineResponse{Line: l, QuantityRemaining: l.Remaining()})
	}
	return resp
}

// DeliveryResponse is a recorded delivery and the resulting transaction status.
type DeliveryResponse struct {
	*delivery.Record
	TransactionStatus sales.DeliveryStatus `json:"transactionStatus"`
}

// FromDeliveryResult converts a delivery result.
func FromDeliveryResult(r *fulfillment.DeliveryResult) DeliveryResponse {
	return DeliveryResponse{Record: r.Record, TransactionStatus: r.Status}
}

// DeliveryListResponse lists the delivery records of one transaction.
type DeliveryListResponse struct {
	TransactionID string            `json:"transactionId"`
	Items         []delivery.Record `json:"items"`
}
