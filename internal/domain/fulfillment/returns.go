package fulfillment

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/entity"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/audit"
	"stockflow/internal/domain/documents/sales"
	"stockflow/internal/domain/documents/salesreturn"
	"stockflow/internal/domain/events"
	"stockflow/internal/domain/registers/finance"
	"stockflow/internal/domain/registers/stock"
	"stockflow/internal/domain/uow"
	"stockflow/pkg/logger"
)

// ReturnInput describes a return against one sales transaction.
type ReturnInput struct {
	TransactionID id.ID
	// CounterpartyID defaults to the transaction's counterparty and must match it.
	CounterpartyID id.ID
	// Currency and ExchangeRate default to the transaction's.
	Currency     string
	ExchangeRate types.Money
	RefundMethod salesreturn.RefundMethod
	Reason       string
	Date         time.Time
	Lines        []ReturnLineInput
}

// ReturnLineInput returns part of one sales line.
type ReturnLineInput struct {
	SalesLineID     id.ID
	Quantity        types.Quantity
	UnitPrice       types.Money
	DiscountPercent types.Money
	TaxPercent      types.Money
	Condition       salesreturn.Condition
	Restock         bool
}

func (e *Engine) validateReturn(in *ReturnInput) error {
	if id.IsNil(in.TransactionID) {
		return apperror.NewValidation("transaction is required").WithDetail("field", "transactionId")
	}
	if len(in.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}
	if in.RefundMethod == "" {
		in.RefundMethod = salesreturn.RefundCash
	}
	if !in.RefundMethod.Valid() {
		return apperror.NewValidation("invalid refund method").WithDetail("refundMethod", in.RefundMethod)
	}
	// Conditions are normalised below; the caller's slice stays untouched.
	in.Lines = slices.Clone(in.Lines)
	seen := make(map[id.ID]struct{}, len(in.Lines))
	for i, l := range in.Lines {
		c, err := salesreturn.ParseCondition(string(l.Condition))
		if err != nil {
			return apperror.NewValidation("invalid condition").WithDetail("lineNo", i+1)
		}
		in.Lines[i].Condition = c
		if err := sales.ValidatePricing(i+1, l.Quantity, l.UnitPrice, l.DiscountPercent, l.TaxPercent); err != nil {
			return err
		}
		if _, dup := seen[l.SalesLineID]; dup {
			return apperror.NewValidation("sales line listed more than once").
				WithDetail("sales_line_id", l.SalesLineID.String())
		}
		seen[l.SalesLineID] = struct{}{}
	}
	return nil
}

// CreateReturn reverses part of a sale inside u.
//
// Returned quantity is first matched against goods the customer already
// collected; that part re-enters physical stock when the line is restockable
// (restock flag and good condition) and is written off otherwise. Any excess
// cancels the still-reserved part of the sales line and releases its
// reservation. Every line leaves a marker in the adjustment journal. Store
// credit refunds increase the counterparty's credit balance by the return total.
func (e *Engine) CreateReturn(ctx context.Context, u uow.UnitOfWork, in ReturnInput) (*salesreturn.Record, error) {
	if err := e.validateReturn(&in); err != nil {
		return nil, err
	}

	t, err := u.Sales().GetForUpdate(ctx, in.TransactionID)
	if err != nil {
		return nil, err
	}
	if t.IsQuotation {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "Quotations cannot be returned").
			WithDetail("transaction_id", t.ID.String())
	}

	if id.IsNil(in.CounterpartyID) {
		in.CounterpartyID = t.CounterpartyID
	}
	if in.CounterpartyID != t.CounterpartyID {
		return nil, apperror.NewValidation("counterparty does not match the transaction").
			WithDetail("counterparty_id", in.CounterpartyID.String())
	}
	if _, err := u.Counterparties().GetByID(ctx, in.CounterpartyID); err != nil {
		return nil, err
	}

	if in.Currency == "" {
		in.Currency, in.ExchangeRate = t.Currency, t.ExchangeRate
	}
	in.Currency = strings.ToUpper(in.Currency)
	if strings.EqualFold(in.Currency, e.cfg.BaseCurrency) {
		in.ExchangeRate = types.NewMoney(1)
	}
	if err := sales.ValidateCurrency(in.Currency, e.cfg.BaseCurrency, in.ExchangeRate); err != nil {
		return nil, err
	}

	returned, err := u.Returns().ReturnedBySalesLine(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("sum returned quantities: %w", err)
	}

	now := e.cfg.Now()
	rec := &salesreturn.Record{
		Document:       entity.NewDocument(now),
		TransactionID:  t.ID,
		CounterpartyID: in.CounterpartyID,
		Currency:       in.Currency,
		ExchangeRate:   in.ExchangeRate,
		RefundMethod:   in.RefundMethod,
		RefundStatus:   salesreturn.RefundPending,
		Reason:         in.Reason,
	}
	if !in.Date.IsZero() {
		rec.Date = in.Date.UTC()
	}
	audit.EnrichCreatedBy(ctx, &rec.BaseDocument)

	salesLines := make([]*sales.Line, len(in.Lines))
	amounts := make([]sales.LineAmounts, 0, len(in.Lines))
	for i, rl := range in.Lines {
		sl, ok := t.Line(rl.SalesLineID)
		if !ok {
			return nil, apperror.NewLineNotFound(rl.SalesLineID.String()).
				WithDetail("transaction_id", t.ID.String())
		}
		already := returned[sl.ID]
		if err := e.guard.RequireReturnable(sl.ID.String(), sl.Quantity, already, rl.Quantity); err != nil {
			return nil, err
		}

		// Released parts of earlier returns are exactly QuantityCancelled, so the
		// rest of what was returned came out of delivered goods.
		collected := max(sl.QuantityDelivered-(already-sl.QuantityCancelled), 0)
		fromCollected := min(rl.Quantity, collected)

		a := sales.ComputeLine(rl.Quantity, rl.UnitPrice, rl.DiscountPercent, rl.TaxPercent)
		amounts = append(amounts, a)
		salesLines[i] = sl
		rec.Lines = append(rec.Lines, salesreturn.Line{
			ID:              id.New(),
			ReturnID:        rec.ID,
			LineNo:          i + 1,
			SalesLineID:     sl.ID,
			ProductID:       sl.ProductID,
			ProductName:     sl.ProductName,
			Quantity:        rl.Quantity,
			Condition:       rl.Condition,
			Restock:         rl.Restock,
			UnitPrice:       rl.UnitPrice,
			DiscountPercent: rl.DiscountPercent,
			TaxPercent:      rl.TaxPercent,
			Subtotal:        a.Subtotal,
			DiscountAmount:  a.Discount,
			TaxAmount:       a.Tax,
			Total:           a.Total,
			Released:        rl.Quantity - fromCollected,
		})
	}

	totals := sales.SumTotals(amounts)
	rec.Subtotal = totals.Subtotal
	rec.DiscountTotal = totals.Discount
	rec.TaxTotal = totals.Tax
	rec.Total = totals.Total
	rec.BaseTotal = sales.ToBase(totals.Total, rec.Currency, e.cfg.BaseCurrency, rec.ExchangeRate)

	if err := rec.Validate(ctx); err != nil {
		return nil, err
	}

	number, err := e.nextNumber(ctx, u, e.cfg.ReturnPrefix, rec.Date)
	if err != nil {
		return nil, err
	}
	rec.SetNumber(number)

	changed, err := e.applyReturnStock(ctx, u, rec, salesLines)
	if err != nil {
		return nil, err
	}

	if err := u.Returns().Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create sales return: %w", err)
	}

	if len(changed) > 0 {
		if err := u.Sales().UpdateLineProgress(ctx, changed); err != nil {
			return nil, fmt.Errorf("update line progress: %w", err)
		}
		prev := t.DeliveryStatus
		next := t.RecomputeStatus()
		if !prev.CanAdvanceTo(next) {
			return nil, apperror.NewConsistencyViolation("delivery status would regress").
				WithDetail("from", prev.String()).
				WithDetail("to", next.String())
		}
		if next != prev {
			if err := u.Sales().UpdateDeliveryStatus(ctx, t.ID, next); err != nil {
				return nil, fmt.Errorf("update delivery status: %w", err)
			}
		}
	}

	if rec.RefundMethod == salesreturn.RefundStoreCredit && rec.BaseTotal.IsPositive() {
		if err := u.Counterparties().AdjustCredit(ctx, rec.CounterpartyID, rec.BaseTotal); err != nil {
			return nil, fmt.Errorf("adjust store credit: %w", err)
		}
		if err := u.Finance().Append(ctx, &finance.Entry{
			ID:             id.New(),
			CounterpartyID: rec.CounterpartyID,
			SourceType:     finance.SourceSalesReturn,
			SourceID:       rec.ID,
			Kind:           finance.KindStoreCredit,
			Method:         string(rec.RefundMethod),
			Amount:         rec.BaseTotal,
			CreatedAt:      rec.CreatedAt,
			CreatedBy:      rec.CreatedBy,
		}); err != nil {
			return nil, fmt.Errorf("append store credit entry: %w", err)
		}
	}

	if err := u.Events().Publish(ctx, events.Event{
		AggregateType: events.AggregateSalesReturn,
		AggregateID:   rec.ID,
		Type:          events.ReturnCreated,
		Payload: map[string]any{
			"number":         rec.Number,
			"transaction_id": rec.TransactionID,
			"refund_method":  rec.RefundMethod,
			"total":          rec.Total,
		},
	}); err != nil {
		return nil, fmt.Errorf("publish return event: %w", err)
	}

	logger.Info(ctx, "sales return created",
		"return_id", rec.ID,
		"number", rec.Number,
		"transaction_id", t.ID,
		"lines", len(rec.Lines),
		"refund_method", string(rec.RefundMethod),
	)
	return rec, nil
}

// applyReturnStock moves stock for every return line and journals it.
// It returns the sales lines whose cancelled quantity grew.
// Only collected goods are restocked; uncollected quantity never left stock and is released instead.
func (e *Engine) applyReturnStock(ctx context.Context, u uow.UnitOfWork, rec *salesreturn.Record, salesLines []*sales.Line) ([]sales.Line, error) {
	// Lock order: product id, then line order within a product.
	order := newProductQty()
	byProduct := make(map[id.ID][]int)
	for i := range rec.Lines {
		pid := rec.Lines[i].ProductID
		order.add(pid, 0)
		byProduct[pid] = append(byProduct[pid], i)
	}

	var changed []sales.Line
	for _, productID := range order.sorted() {
		for _, i := range byProduct[productID] {
			rl := &rec.Lines[i]
			sl := salesLines[i]
			ref := rec.ID
			fromCollected := rl.Quantity - rl.Released

			if rl.Released > 0 {
				if _, err := e.ledger.ReleaseOnly(ctx, u.Stock(), productID, rl.Released); err != nil {
					return nil, err
				}
				sl.QuantityCancelled += rl.Released
				if err := e.guard.RequireLineInvariant(ctx, sl.ID.String(), sl.Quantity, sl.QuantityDelivered, sl.QuantityCancelled); err != nil {
					return nil, err
				}
				sl.RecomputeStatus()
				changed = append(changed, *sl)

				if err := e.ledger.RecordAdjustment(ctx, u.Stock(), &stock.Adjustment{
					ProductID:   productID,
					Quantity:    rl.Released,
					Reason:      stock.ReasonReturnRelease,
					ReferenceID: &ref,
					Note:        rec.Number,
					CreatedBy:   rec.CreatedBy,
				}); err != nil {
					return nil, err
				}
			}

			if fromCollected <= 0 {
				continue
			}
			marker := &stock.Adjustment{
				ProductID:   productID,
				ReferenceID: &ref,
				Note:        rec.Number,
				CreatedBy:   rec.CreatedBy,
			}
			if rl.EffectiveRestock() {
				if _, err := e.ledger.Restock(ctx, u.Stock(), productID, fromCollected); err != nil {
					return nil, err
				}
				rl.Restocked = fromCollected
				marker.Quantity = fromCollected
				marker.Reason = stock.ReasonReturnRestock
			} else {
				marker.Quantity = fromCollected.Neg()
				marker.Reason = stock.ReasonReturnWriteOff
			}
			if err := e.ledger.RecordAdjustment(ctx, u.Stock(), marker); err != nil {
				return nil, err
			}
		}
	}
	return changed, nil
}

// SetRefundStatus moves a pending return to refunded or cancelled inside u.
func (e *Engine) SetRefundStatus(ctx context.Context, u uow.UnitOfWork, returnID id.ID, status salesreturn.RefundStatus) (*salesreturn.Record, error) {
	if !status.Valid() {
		return nil, apperror.NewValidation("invalid refund status").WithDetail("refundStatus", status)
	}
	rec, err := u.Returns().GetByID(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if rec.RefundStatus == status {
		return rec, nil
	}
	if rec.RefundStatus != salesreturn.RefundPending {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "Refund status is final").
			WithDetail("from", rec.RefundStatus).
			WithDetail("to", status)
	}
	if err := u.Returns().UpdateRefundStatus(ctx, rec.ID, status); err != nil {
		return nil, fmt.Errorf("update refund status: %w", err)
	}
	rec.RefundStatus = status

	logger.Info(ctx, "refund status updated", "return_id", rec.ID, "status", string(status))
	return rec, nil
}
