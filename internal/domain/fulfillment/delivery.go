package fulfillment

import (
	"context"
	"fmt"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/entity"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/audit"
	"stockflow/internal/domain/documents/delivery"
	"stockflow/internal/domain/documents/sales"
	"stockflow/internal/domain/events"
	"stockflow/internal/domain/uow"
	"stockflow/pkg/logger"
)

// DeliveryItem asks to hand over qty of one sales line.
type DeliveryItem struct {
	LineID   id.ID
	Quantity types.Quantity
}

// DeliveryResult is the appended record and the transaction status after it.
type DeliveryResult struct {
	Record *delivery.Record
	Status sales.DeliveryStatus
}

// MarkAsTaken records a collection of reserved goods inside u.
//
// Every requested line must have enough remaining quantity; one bad line
// rejects the whole call. Reserved and physical stock both drop by the
// delivered quantity, the lines advance and the transaction status is derived
// again from all of its lines.
func (e *Engine) MarkAsTaken(ctx context.Context, u uow.UnitOfWork, transactionID id.ID, items []DeliveryItem, meta delivery.Metadata) (*DeliveryResult, error) {
	if len(items) == 0 {
		return nil, apperror.NewValidation("at least one item is required").WithDetail("field", "items")
	}
	seen := make(map[id.ID]struct{}, len(items))
	for i, it := range items {
		if !it.Quantity.IsPositive() {
			return nil, apperror.NewValidation("quantity must be positive").WithDetail("itemNo", i+1)
		}
		if _, dup := seen[it.LineID]; dup {
			return nil, apperror.NewValidation("line listed more than once").
				WithDetail("line_id", it.LineID.String())
		}
		seen[it.LineID] = struct{}{}
	}

	t, err := u.Sales().GetForUpdate(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	prev := t.DeliveryStatus
	switch prev {
	case sales.StatusNotTaken, sales.StatusPartiallyTaken:
	case sales.StatusTaken:
		return nil, apperror.NewAlreadyFulfilled(t.ID.String())
	default:
		return nil, apperror.NewConsistencyViolation("transaction has no valid delivery status").
			WithDetail("transaction_id", t.ID.String())
	}

	lines := make([]*sales.Line, len(items))
	consume := newProductQty()
	for i, it := range items {
		l, ok := t.Line(it.LineID)
		if !ok {
			return nil, apperror.NewLineNotFound(it.LineID.String()).
				WithDetail("transaction_id", t.ID.String())
		}
		if err := e.guard.RequireRemaining(l.ID.String(), l.Quantity, l.QuantityDelivered, l.QuantityCancelled, it.Quantity); err != nil {
			return nil, err
		}
		lines[i] = l
		consume.add(l.ProductID, it.Quantity)
	}

	for _, productID := range consume.sorted() {
		p, err := e.ledger.ReleaseAndConsume(ctx, u.Stock(), productID, consume.qty[productID])
		if err != nil {
			return nil, err
		}
		if err := e.checkReorder(ctx, u, p); err != nil {
			return nil, err
		}
	}

	now := e.cfg.Now()
	rec := &delivery.Record{
		Document:      entity.NewDocument(now),
		TransactionID: t.ID,
		DeliveredAt:   now,
		DeliveredBy:   audit.Actor(ctx, meta.DeliveredBy),
		ReceivedBy:    meta.ReceivedBy,
		Vehicle:       meta.Vehicle,
		Notes:         meta.Notes,
		TotalValue:    types.Zero(),
	}
	if !meta.DeliveredAt.IsZero() {
		rec.DeliveredAt = meta.DeliveredAt.UTC()
	}
	audit.EnrichCreatedBy(ctx, &rec.BaseDocument)

	changed := make([]sales.Line, 0, len(items))
	for i, it := range items {
		l := lines[i]
		l.QuantityDelivered += it.Quantity
		if err := e.guard.RequireLineInvariant(ctx, l.ID.String(), l.Quantity, l.QuantityDelivered, l.QuantityCancelled); err != nil {
			return nil, err
		}
		l.RecomputeStatus()
		changed = append(changed, *l)

		value := delivery.ProRatedValue(l.Total, l.Quantity, it.Quantity)
		rec.Items = append(rec.Items, delivery.Item{
			ID:          id.New(),
			RecordID:    rec.ID,
			LineID:      l.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   l.UnitPrice,
			Value:       value,
		})
		rec.TotalValue = rec.TotalValue.Add(value)
	}

	number, err := e.nextNumber(ctx, u, e.cfg.DeliveryPrefix, now)
	if err != nil {
		return nil, err
	}
	rec.SetNumber(number)

	if err := u.Deliveries().Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("append delivery record: %w", err)
	}
	if err := u.Sales().UpdateLineProgress(ctx, changed); err != nil {
		return nil, fmt.Errorf("update line progress: %w", err)
	}

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

	if err := u.Events().Publish(ctx, events.Event{
		AggregateType: events.AggregateSalesTransaction,
		AggregateID:   t.ID,
		Type:          events.DeliveryRecorded,
		Payload: map[string]any{
			"delivery_id":     rec.ID,
			"number":          rec.Number,
			"delivery_status": next,
			"total_value":     rec.TotalValue,
		},
	}); err != nil {
		return nil, fmt.Errorf("publish delivery event: %w", err)
	}

	logger.Info(ctx, "delivery recorded",
		"transaction_id", t.ID,
		"delivery", rec.Number,
		"items", len(rec.Items),
		"status", next.String(),
	)
	return &DeliveryResult{Record: rec, Status: next}, nil
}
