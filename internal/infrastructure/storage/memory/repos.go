package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"time"

	"stockflow/internal/core/apperror"
	appctx "stockflow/internal/core/context"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/audit"
	"stockflow/internal/domain/catalogs/counterparty"
	"stockflow/internal/domain/documents/delivery"
	"stockflow/internal/domain/documents/sales"
	"stockflow/internal/domain/documents/salesreturn"
	"stockflow/internal/domain/events"
	"stockflow/internal/domain/registers/finance"
	"stockflow/internal/domain/registers/stock"
)

// --- stock ---

type stockRepo struct{ st *state }

func (r stockRepo) GetProduct(_ context.Context, productID id.ID) (*stock.Product, error) {
	p, ok := r.st.products[productID]
	if !ok {
		return nil, apperror.NewProductNotFound(productID.String())
	}
	return &p, nil
}

// GetProductForUpdate needs no row lock: the store mutex already serializes units.
func (r stockRepo) GetProductForUpdate(ctx context.Context, productID id.ID) (*stock.Product, error) {
	return r.GetProduct(ctx, productID)
}

func (r stockRepo) ApplyDelta(_ context.Context, productID id.ID, d stock.Delta) (*stock.Product, error) {
	p, ok := r.st.products[productID]
	if !ok {
		return nil, apperror.NewProductNotFound(productID.String())
	}
	physical := p.PhysicalStock + d.Physical
	reserved := p.ReservedStock + d.Reserved
	if reserved < 0 || physical < reserved {
		return nil, apperror.NewConsistencyViolation("stock update refused").
			WithDetail("product_id", productID.String()).
			WithDetail("physical", physical.Float64()).
			WithDetail("reserved", reserved.Float64())
	}
	p.PhysicalStock = physical
	p.ReservedStock = reserved
	p.UpdatedAt = time.Now().UTC()
	r.st.products[productID] = p
	return &p, nil
}

func (r stockRepo) CreateProduct(_ context.Context, p *stock.Product) error {
	for _, existing := range r.st.products {
		if existing.Code == p.Code {
			return apperror.NewConflict("product code already exists").WithDetail("code", p.Code)
		}
	}
	if id.IsNil(p.ID) {
		p.ID = id.New()
	}
	r.st.products[p.ID] = *p
	return nil
}

func (r stockRepo) InsertAdjustment(_ context.Context, a *stock.Adjustment) error {
	r.st.adjustments = append(r.st.adjustments, *a)
	return nil
}

func (r stockRepo) ListAdjustments(_ context.Context, productID id.ID, limit int) ([]stock.Adjustment, error) {
	var out []stock.Adjustment
	for i := len(r.st.adjustments) - 1; i >= 0; i-- {
		a := r.st.adjustments[i]
		if a.ProductID != productID {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// --- counterparties ---

type counterpartyRepo struct{ st *state }

func (r counterpartyRepo) GetByID(_ context.Context, counterpartyID id.ID) (*counterparty.Counterparty, error) {
	c, ok := r.st.counterparties[counterpartyID]
	if !ok {
		return nil, apperror.NewCounterpartyNotFound(counterpartyID.String())
	}
	return &c, nil
}

func (r counterpartyRepo) Create(_ context.Context, c *counterparty.Counterparty) error {
	if id.IsNil(c.ID) {
		c.ID = id.New()
	}
	r.st.counterparties[c.ID] = *c
	return nil
}

func (r counterpartyRepo) AdjustBalance(_ context.Context, counterpartyID id.ID, delta types.Money) error {
	c, ok := r.st.counterparties[counterpartyID]
	if !ok {
		return apperror.NewCounterpartyNotFound(counterpartyID.String())
	}
	c.Balance = c.Balance.Add(delta)
	r.st.counterparties[counterpartyID] = c
	return nil
}

func (r counterpartyRepo) AdjustCredit(_ context.Context, counterpartyID id.ID, delta types.Money) error {
	c, ok := r.st.counterparties[counterpartyID]
	if !ok {
		return apperror.NewCounterpartyNotFound(counterpartyID.String())
	}
	c.CreditBalance = c.CreditBalance.Add(delta)
	r.st.counterparties[counterpartyID] = c
	return nil
}

// --- sales ---

type salesRepo struct{ st *state }

func (r salesRepo) Create(_ context.Context, t *sales.Transaction) error {
	if _, ok := r.st.transactions[t.ID]; ok {
		return apperror.NewConflict("sales transaction already exists").WithDetail("id", t.ID.String())
	}
	for _, existing := range r.st.transactions {
		if existing.Number == t.Number {
			return apperror.NewConflict("document number already used").WithDetail("number", t.Number)
		}
	}
	r.st.transactions[t.ID] = copyTransaction(*t)
	return nil
}

func (r salesRepo) GetByID(_ context.Context, transactionID id.ID) (*sales.Transaction, error) {
	t, ok := r.st.transactions[transactionID]
	if !ok {
		return nil, apperror.NewTransactionNotFound(transactionID.String())
	}
	t = copyTransaction(t)
	t.RecomputeStatus()
	return &t, nil
}

func (r salesRepo) GetForUpdate(ctx context.Context, transactionID id.ID) (*sales.Transaction, error) {
	return r.GetByID(ctx, transactionID)
}

func (r salesRepo) UpdateLineProgress(_ context.Context, lines []sales.Line) error {
	for _, l := range lines {
		t, ok := r.st.transactions[l.TransactionID]
		if !ok {
			return apperror.NewTransactionNotFound(l.TransactionID.String())
		}
		i := slices.IndexFunc(t.Lines, func(x sales.Line) bool { return x.ID == l.ID })
		if i < 0 {
			return apperror.NewLineNotFound(l.ID.String())
		}
		t.Lines[i].QuantityDelivered = l.QuantityDelivered
		t.Lines[i].QuantityCancelled = l.QuantityCancelled
		t.Lines[i].DeliveryStatus = l.DeliveryStatus
	}
	return nil
}

func (r salesRepo) UpdateDeliveryStatus(_ context.Context, transactionID id.ID, status sales.DeliveryStatus) error {
	t, ok := r.st.transactions[transactionID]
	if !ok {
		return apperror.NewTransactionNotFound(transactionID.String())
	}
	t.DeliveryStatus = status
	r.st.transactions[transactionID] = t
	return nil
}

func (r salesRepo) Delete(_ context.Context, transactionID id.ID) error {
	if _, ok := r.st.transactions[transactionID]; !ok {
		return apperror.NewTransactionNotFound(transactionID.String())
	}
	delete(r.st.transactions, transactionID)
	return nil
}

// --- deliveries ---

type deliveryRepo struct{ st *state }

func (r deliveryRepo) Append(_ context.Context, rec *delivery.Record) error {
	r.st.deliveries = append(r.st.deliveries, copyDelivery(*rec))
	return nil
}

func (r deliveryRepo) ListByTransaction(_ context.Context, transactionID id.ID) ([]delivery.Record, error) {
	var out []delivery.Record
	for _, rec := range r.st.deliveries {
		if rec.TransactionID == transactionID {
			out = append(out, copyDelivery(rec))
		}
	}
	return out, nil
}

// --- returns ---

type returnRepo struct{ st *state }

func (r returnRepo) Create(_ context.Context, rec *salesreturn.Record) error {
	if _, ok := r.st.returns[rec.ID]; ok {
		return apperror.NewConflict("sales return already exists").WithDetail("id", rec.ID.String())
	}
	r.st.returns[rec.ID] = copyReturn(*rec)
	return nil
}

func (r returnRepo) GetByID(_ context.Context, returnID id.ID) (*salesreturn.Record, error) {
	rec, ok := r.st.returns[returnID]
	if !ok {
		return nil, apperror.NewReturnNotFound(returnID.String())
	}
	rec = copyReturn(rec)
	return &rec, nil
}

func (r returnRepo) ReturnedBySalesLine(_ context.Context, transactionID id.ID) (map[id.ID]types.Quantity, error) {
	out := make(map[id.ID]types.Quantity)
	for _, rec := range r.st.returns {
		if rec.TransactionID != transactionID {
			continue
		}
		for _, l := range rec.Lines {
			out[l.SalesLineID] += l.Quantity
		}
	}
	return out, nil
}

func (r returnRepo) CountByTransaction(_ context.Context, transactionID id.ID) (int, error) {
	n := 0
	for _, rec := range r.st.returns {
		if rec.TransactionID == transactionID {
			n++
		}
	}
	return n, nil
}

func (r returnRepo) UpdateRefundStatus(_ context.Context, returnID id.ID, status salesreturn.RefundStatus) error {
	rec, ok := r.st.returns[returnID]
	if !ok {
		return apperror.NewReturnNotFound(returnID.String())
	}
	rec.RefundStatus = status
	r.st.returns[returnID] = rec
	return nil
}

// --- finance ---

type financeRepo struct{ st *state }

func (r financeRepo) Append(_ context.Context, e *finance.Entry) error {
	if id.IsNil(e.ID) {
		e.ID = id.New()
	}
	r.st.finance = append(r.st.finance, *e)
	return nil
}

func (r financeRepo) DeleteBySource(_ context.Context, source finance.SourceType, sourceID id.ID) (int64, error) {
	before := len(r.st.finance)
	r.st.finance = slices.DeleteFunc(r.st.finance, func(e finance.Entry) bool {
		return e.SourceType == source && e.SourceID == sourceID
	})
	return int64(before - len(r.st.finance)), nil
}

func (r financeRepo) ListBySource(_ context.Context, source finance.SourceType, sourceID id.ID) ([]finance.Entry, error) {
	var out []finance.Entry
	for _, e := range r.st.finance {
		if e.SourceType == source && e.SourceID == sourceID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- sequences, events, audit ---

type sequenceRepo struct{ st *state }

func (r sequenceRepo) Advance(_ context.Context, key string, n int64) (int64, error) {
	r.st.sequences[key] += n
	return r.st.sequences[key], nil
}

type eventPublisher struct{ st *state }

func (p eventPublisher) Publish(_ context.Context, evts ...events.Event) error {
	p.st.events = append(p.st.events, evts...)
	return nil
}

type auditLog struct{ st *state }

func (l auditLog) LogChange(ctx context.Context, entityType string, entityID id.ID, action audit.Action, changes map[string]any) error {
	raw, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	l.st.audit = append(l.st.audit, audit.Entry{
		ID:         id.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		UserID:     appctx.GetUserID(ctx),
		Changes:    raw,
		CreatedAt:  time.Now().UTC(),
	})
	return nil
}

func (l auditLog) History(_ context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	var out []audit.Entry
	for i := len(l.st.audit) - 1; i >= 0; i-- {
		e := l.st.audit[i]
		if e.EntityType != entityType || e.EntityID != entityID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
