package dto

import (
	"fmt"
	"time"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/documents/salesreturn"
	"stockflow/internal/domain/fulfillment"
)

// CreateReturnRequest records a sales return.
type CreateReturnRequest struct {
	TransactionID  string      `json:"transactionId" binding:"required,uuid"`
	CounterpartyID string      `json:"counterpartyId" binding:"required,uuid"`
	Currency       string      `json:"currency" binding:"omitempty,len=3"`
	ExchangeRate   types.Money `json:"exchangeRate"`
	RefundMethod   string      `json:"refundMethod" binding:"required,oneof=cash store_credit bank_transfer other"`
	Reason         string      `json:"reason" binding:"max=1000"`
	Date           *time.Time  `json:"date"`

	Lines []ReturnLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ReturnLineRequest returns part of one sales line.
type ReturnLineRequest struct {
	SalesLineID     string         `json:"salesLineId" binding:"required,uuid"`
	Quantity        types.Quantity `json:"quantity" binding:"required,gt=0"`
	UnitPrice       types.Money    `json:"unitPrice"`
	DiscountPercent types.Money    `json:"discountPercent"`
	TaxPercent      types.Money    `json:"taxPercent"`
	Condition       string         `json:"condition" binding:"required"`
	Restock         bool           `json:"restock"`
}

// ToInput converts the request to a return input.
func (r *CreateReturnRequest) ToInput() (fulfillment.ReturnInput, error) {
	transactionID, err := ParseID("transactionId", r.TransactionID)
	if err != nil {
		return fulfillment.ReturnInput{}, err
	}
	counterpartyID, err := ParseID("counterpartyId", r.CounterpartyID)
	if err != nil {
		return fulfillment.ReturnInput{}, err
	}

	in := fulfillment.ReturnInput{
		TransactionID:  transactionID,
		CounterpartyID: counterpartyID,
		Currency:       r.Currency,
		ExchangeRate:   r.ExchangeRate,
		RefundMethod:   salesreturn.RefundMethod(r.RefundMethod),
		Reason:         r.Reason,
		Date:           dateOrZero(r.Date),
		Lines:          make([]fulfillment.ReturnLineInput, 0, len(r.Lines)),
	}
	for i, l := range r.Lines {
		lineID, err := ParseID(fmt.Sprintf("lines[%d].salesLineId", i), l.SalesLineID)
		if err != nil {
			return fulfillment.ReturnInput{}, err
		}
		cond, err := salesreturn.ParseCondition(l.Condition)
		if err != nil {
			return fulfillment.ReturnInput{}, apperror.NewValidation(err.Error()).
				WithDetail("field", fmt.Sprintf("lines[%d].condition", i))
		}
		in.Lines = append(in.Lines, fulfillment.ReturnLineInput{
			SalesLineID:     lineID,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			DiscountPercent: l.DiscountPercent,
			TaxPercent:      l.TaxPercent,
			Condition:       cond,
			Restock:         l.Restock,
		})
	}
	return in, nil
}

// SetRefundStatusRequest moves a return's refund status.
type SetRefundStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending refunded cancelled"`
}

// RefundStatus returns the requested status.
func (r *SetRefundStatusRequest) RefundStatus() salesreturn.RefundStatus {
	return salesreturn.RefundStatus(r.Status)
}
