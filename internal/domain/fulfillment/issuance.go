package fulfillment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/entity"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/audit"
	"stockflow/internal/domain/documents/sales"
	"stockflow/internal/domain/events"
	"stockflow/internal/domain/registers/finance"
	"stockflow/internal/domain/registers/stock"
	"stockflow/internal/domain/uow"
	"stockflow/pkg/logger"
)

// IssueInput describes a new invoice or quotation.
type IssueInput struct {
	CounterpartyID id.ID
	IsQuotation    bool
	Currency       string
	ExchangeRate   types.Money
	// Date defaults to now and selects the numbering day.
	Date    time.Time
	Comment string

	// PaidAmount is settled immediately, in transaction currency.
	PaidAmount    types.Money
	PaymentMethod string

	Lines []IssueLine
}

// IssueLine is one ordered product.
type IssueLine struct {
	ProductID       id.ID
	Quantity        types.Quantity
	UnitPrice       types.Money
	DiscountPercent types.Money
	TaxPercent      types.Money
}

func (e *Engine) validateIssue(in *IssueInput) error {
	if id.IsNil(in.CounterpartyID) {
		return apperror.NewValidation("counterparty is required").WithDetail("field", "counterpartyId")
	}
	if len(in.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}
	if in.Currency == "" {
		in.Currency = e.cfg.BaseCurrency
	}
	in.Currency = strings.ToUpper(in.Currency)
	if strings.EqualFold(in.Currency, e.cfg.BaseCurrency) {
		in.ExchangeRate = types.NewMoney(1)
	}
	if err := sales.ValidateCurrency(in.Currency, e.cfg.BaseCurrency, in.ExchangeRate); err != nil {
		return err
	}
	for i, l := range in.Lines {
		if id.IsNil(l.ProductID) {
			return apperror.NewValidation("product is required").WithDetail("lineNo", i+1)
		}
		if err := sales.ValidatePricing(i+1, l.Quantity, l.UnitPrice, l.DiscountPercent, l.TaxPercent); err != nil {
			return err
		}
	}
	if in.PaidAmount.IsNegative() {
		return apperror.NewValidation("paid amount must not be negative").WithDetail("field", "paidAmount")
	}
	if in.IsQuotation && in.PaidAmount.IsPositive() {
		return apperror.NewValidation("quotations cannot carry a payment").WithDetail("field", "paidAmount")
	}
	return nil
}

// IssueTransaction creates an invoice or quotation inside u.
//
// For invoices every line is checked against available stock before anything
// is written; one short line fails the whole issuance. Stock is then reserved,
// the counterparty balance grows by the unpaid part and a payment entry is
// appended when something was paid. Quotations reserve nothing and touch no
// balances.
func (e *Engine) IssueTransaction(ctx context.Context, u uow.UnitOfWork, in IssueInput) (*sales.Transaction, error) {
	if err := e.validateIssue(&in); err != nil {
		return nil, err
	}

	cp, err := u.Counterparties().GetByID(ctx, in.CounterpartyID)
	if err != nil {
		return nil, err
	}

	demand := newProductQty()
	for _, l := range in.Lines {
		demand.add(l.ProductID, l.Quantity)
	}

	// Lock products in id order and check availability of the summed demand.
	products := make(map[id.ID]*stock.Product, len(demand.qty))
	for _, productID := range demand.sorted() {
		var p *stock.Product
		if in.IsQuotation {
			p, err = u.Stock().GetProduct(ctx, productID)
		} else {
			p, err = u.Stock().GetProductForUpdate(ctx, productID)
		}
		if err != nil {
			return nil, err
		}
		if !in.IsQuotation {
			if err := e.guard.RequireAvailable(productID.String(), p.PhysicalStock, p.ReservedStock, demand.qty[productID]); err != nil {
				return nil, err
			}
		}
		products[productID] = p
	}

	now := e.cfg.Now()
	t := &sales.Transaction{
		Document:       entity.NewDocument(now),
		CounterpartyID: cp.ID,
		IsQuotation:    in.IsQuotation,
		Currency:       in.Currency,
		ExchangeRate:   in.ExchangeRate,
		PaidAmount:     in.PaidAmount,
		PaymentMethod:  in.PaymentMethod,
	}
	if !in.Date.IsZero() {
		t.Date = in.Date.UTC()
	}
	t.Comment = in.Comment
	audit.EnrichCreatedBy(ctx, &t.BaseDocument)

	amounts := make([]sales.LineAmounts, 0, len(in.Lines))
	for i, l := range in.Lines {
		a := sales.ComputeLine(l.Quantity, l.UnitPrice, l.DiscountPercent, l.TaxPercent)
		amounts = append(amounts, a)
		t.Lines = append(t.Lines, sales.Line{
			ID:              id.New(),
			TransactionID:   t.ID,
			LineNo:          i + 1,
			ProductID:       l.ProductID,
			ProductName:     products[l.ProductID].Name,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			DiscountPercent: l.DiscountPercent,
			TaxPercent:      l.TaxPercent,
			Subtotal:        a.Subtotal,
			DiscountAmount:  a.Discount,
			TaxAmount:       a.Tax,
			Total:           a.Total,
		})
	}
	totals := sales.SumTotals(amounts)
	t.Subtotal = totals.Subtotal
	t.DiscountTotal = totals.Discount
	t.TaxTotal = totals.Tax
	t.Total = totals.Total
	t.BaseTotal = sales.ToBase(totals.Total, t.Currency, e.cfg.BaseCurrency, t.ExchangeRate)
	t.RecomputeStatus()

	if err := t.Validate(ctx); err != nil {
		return nil, err
	}

	prefix := e.cfg.InvoicePrefix
	if t.IsQuotation {
		prefix = e.cfg.QuotationPrefix
	}
	number, err := e.nextNumber(ctx, u, prefix, t.Date)
	if err != nil {
		return nil, err
	}
	t.SetNumber(number)

	if err := u.Sales().Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create sales transaction: %w", err)
	}

	if !t.IsQuotation {
		if err := e.reserveAndBill(ctx, u, t, demand); err != nil {
			return nil, err
		}
	}

	if err := u.Events().Publish(ctx, events.Event{
		AggregateType: events.AggregateSalesTransaction,
		AggregateID:   t.ID,
		Type:          events.SalesTransactionIssued,
		Payload: map[string]any{
			"number":          t.Number,
			"counterparty_id": t.CounterpartyID,
			"is_quotation":    t.IsQuotation,
			"total":           t.Total,
			"base_total":      t.BaseTotal,
		},
	}); err != nil {
		return nil, fmt.Errorf("publish issued event: %w", err)
	}

	logger.Info(ctx, "sales transaction issued",
		"transaction_id", t.ID,
		"number", t.Number,
		"quotation", t.IsQuotation,
		"lines", len(t.Lines),
		"total", t.Total.String(),
	)
	return t, nil
}

func (e *Engine) reserveAndBill(ctx context.Context, u uow.UnitOfWork, t *sales.Transaction, demand *productQty) error {
	for _, productID := range demand.sorted() {
		p, err := e.ledger.Reserve(ctx, u.Stock(), productID, demand.qty[productID])
		if err != nil {
			return err
		}
		if err := e.checkReorder(ctx, u, p); err != nil {
			return err
		}
	}

	if t.PaidAmount.IsPositive() {
		entry := &finance.Entry{
			ID:             id.New(),
			CounterpartyID: t.CounterpartyID,
			SourceType:     finance.SourceSalesTransaction,
			SourceID:       t.ID,
			Kind:           finance.KindPayment,
			Method:         t.PaymentMethod,
			Amount:         sales.ToBase(t.PaidAmount, t.Currency, e.cfg.BaseCurrency, t.ExchangeRate),
			CreatedAt:      t.CreatedAt,
			CreatedBy:      t.CreatedBy,
		}
		if err := u.Finance().Append(ctx, entry); err != nil {
			return fmt.Errorf("append payment entry: %w", err)
		}
	}

	if outstanding := e.baseOutstanding(t); !outstanding.IsZero() {
		if err := u.Counterparties().AdjustBalance(ctx, t.CounterpartyID, outstanding); err != nil {
			return fmt.Errorf("adjust counterparty balance: %w", err)
		}
	}
	return nil
}

// baseOutstanding is total minus paid, in base currency.
func (e *Engine) baseOutstanding(t *sales.Transaction) types.Money {
	return sales.ToBase(t.Outstanding(), t.Currency, e.cfg.BaseCurrency, t.ExchangeRate)
}

// DeleteTransaction voids a transaction inside u.
//
// Outstanding reservations are released and already delivered quantities are
// put back into physical stock. The counterparty balance is reversed by the
// unpaid part and the transaction's ledger entries are removed. Delivery
// records stay as the trail of what was handed over. Transactions with
// returns cannot be deleted.
func (e *Engine) DeleteTransaction(ctx context.Context, u uow.UnitOfWork, transactionID id.ID) error {
	t, err := u.Sales().GetForUpdate(ctx, transactionID)
	if err != nil {
		return err
	}

	returns, err := u.Returns().CountByTransaction(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("count returns: %w", err)
	}
	if returns > 0 {
		return apperror.NewBusinessRule(apperror.CodeHasReturns, "Transaction has returns and cannot be deleted").
			WithDetail("transaction_id", t.ID.String()).
			WithDetail("returns", returns)
	}

	if !t.IsQuotation {
		reserved := newProductQty()
		delivered := newProductQty()
		for i := range t.Lines {
			l := &t.Lines[i]
			if rem := l.Remaining(); rem > 0 {
				reserved.add(l.ProductID, rem)
			}
			if l.QuantityDelivered > 0 {
				delivered.add(l.ProductID, l.QuantityDelivered)
			}
		}

		all := newProductQty()
		for pid := range reserved.qty {
			all.add(pid, 0)
		}
		for pid := range delivered.qty {
			all.add(pid, 0)
		}
		for _, productID := range all.sorted() {
			if q := reserved.qty[productID]; q > 0 {
				if _, err := e.ledger.ReleaseOnly(ctx, u.Stock(), productID, q); err != nil {
					return err
				}
			}
			if q := delivered.qty[productID]; q > 0 {
				if _, err := e.ledger.Restock(ctx, u.Stock(), productID, q); err != nil {
					return err
				}
			}
		}

		if outstanding := e.baseOutstanding(t); !outstanding.IsZero() {
			if err := u.Counterparties().AdjustBalance(ctx, t.CounterpartyID, outstanding.Neg()); err != nil {
				return fmt.Errorf("reverse counterparty balance: %w", err)
			}
		}
	}

	if _, err := u.Finance().DeleteBySource(ctx, finance.SourceSalesTransaction, t.ID); err != nil {
		return fmt.Errorf("delete ledger entries: %w", err)
	}

	if err := u.Audit().LogChange(ctx, "sales_transaction", t.ID, audit.ActionDelete, map[string]any{
		"snapshot": t,
	}); err != nil {
		return fmt.Errorf("audit delete: %w", err)
	}

	if err := u.Sales().Delete(ctx, t.ID); err != nil {
		return fmt.Errorf("delete sales transaction: %w", err)
	}

	if err := u.Events().Publish(ctx, events.Event{
		AggregateType: events.AggregateSalesTransaction,
		AggregateID:   t.ID,
		Type:          events.SalesTransactionDeleted,
		Payload: map[string]any{
			"number":          t.Number,
			"counterparty_id": t.CounterpartyID,
			"delivery_status": t.DeliveryStatus,
		},
	}); err != nil {
		return fmt.Errorf("publish deleted event: %w", err)
	}

	logger.Info(ctx, "sales transaction deleted",
		"transaction_id", t.ID,
		"number", t.Number,
		"status", t.DeliveryStatus.String(),
	)
	return nil
}
