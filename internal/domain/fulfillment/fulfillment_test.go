package fulfillment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
	"stockflow/internal/domain/fulfillment"
	"stockflow/internal/domain/guard"
	"stockflow/internal/domain/registers/finance"
	"stockflow/internal/domain/registers/stock"
	"stockflow/internal/infrastructure/storage/memory"
	"stockflow/pkg/numerator"
)

var fixedNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

type countingReporter struct {
	mu    sync.Mutex
	kinds []string
}

func (r *countingReporter) Report(_ context.Context, v guard.Violation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, v.Kind)
}

type fixture struct {
	store    *memory.Store
	svc      *fulfillment.Service
	guard    *guard.Guard
	reporter *countingReporter
	customer id.ID
	ctx      context.Context
}

func newFixture(t *testing.T, policy guard.Policy) *fixture {
	t.Helper()

	rule, err := stock.NewReorderRule("")
	require.NoError(t, err)

	rep := &countingReporter{}
	g := guard.New(policy, rep)
	cfg := fulfillment.DefaultConfig()
	cfg.Now = func() time.Time { return fixedNow }
	engine := fulfillment.NewEngine(stock.NewLedger(g, rule), g, numerator.New(), cfg)

	store := memory.New()
	c := counterparty.New("C-001", "Acme Retail")
	store.SeedCounterparty(*c)

	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "clerk-1", Name: "Clerk"})
	return &fixture{
		store:    store,
		svc:      fulfillment.NewService(store, engine),
		guard:    g,
		reporter: rep,
		customer: c.ID,
		ctx:      ctx,
	}
}

func (f *fixture) product(t *testing.T, code string, physical int64) id.ID {
	t.Helper()
	p := stock.Product{
		ID:            id.New(),
		Code:          code,
		Name:          "Product " + code,
		PhysicalStock: types.NewQuantity(physical),
	}
	f.store.SeedProduct(p)
	return p.ID
}

func (f *fixture) stockOf(t *testing.T, productID id.ID) (physical, reserved types.Quantity) {
	t.Helper()
	p, ok := f.store.Product(productID)
	require.True(t, ok)
	return p.PhysicalStock, p.ReservedStock
}

func (f *fixture) issue(t *testing.T, lines ...fulfillment.IssueLine) *sales.Transaction {
	t.Helper()
	tx, err := f.svc.IssueTransaction(f.ctx, fulfillment.IssueInput{
		CounterpartyID: f.customer,
		Lines:          lines,
	})
	require.NoError(t, err)
	return tx
}

func line(productID id.ID, qty int64, price float64) fulfillment.IssueLine {
	return fulfillment.IssueLine{
		ProductID: productID,
		Quantity:  types.NewQuantity(qty),
		UnitPrice: types.NewMoney(price),
	}
}

func take(lineID id.ID, qty int64) fulfillment.DeliveryItem {
	return fulfillment.DeliveryItem{LineID: lineID, Quantity: types.NewQuantity(qty)}
}

func eventTypes(evts []events.Event) []string {
	out := make([]string, 0, len(evts))
	for _, e := range evts {
		out = append(out, e.Type)
	}
	return out
}

func TestIssueAndDeliver_InStages(t *testing.T) {
	f := newFixture(t, guard.PolicyStrict)
	p := f.product(t, "P-1", 100)

	tx := f.issue(t, line(p, 30, 2))
	assert.Equal(t, "INV-20260315-0001", tx.Number)
	assert.Equal(t, sales.StatusNotTaken, tx.DeliveryStatus)

	physical, reserved := f.stockOf(t, p)
	assert.Equal(t, types.NewQuantity(100), physical)
	assert.Equal(t, types.NewQuantity(30), reserved)

	res, err := f.svc.MarkAsTaken(f.ctx, tx.ID, []fulfillment.DeliveryItem{take(tx.Lines[0].ID, 10)}, delivery.Metadata{ReceivedBy: "J. Doe"})
	require.NoError(t, err)
	assert.Equal(t, sales.StatusPartiallyTaken, res.Status)
	assert.Equal(t, "DLV-20260315-0001", res.Record.Number)
	assert.Equal(t, "clerk-1", res.Record.DeliveredBy)
	assert.True(t, res.Record.TotalValue.Equal(types.NewMoney(20)))

	physical, reserved = f.stockOf(t, p)
	assert.Equal(t, types.NewQuantity(90), physical)
	assert.Equal(t, types.NewQuantity(20), reserved)

	res, err = f.svc.MarkAsTaken(f.ctx, tx.ID, []fulfillment.DeliveryItem{take(tx.Lines[0].ID, 20)}, delivery.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, sales.StatusTaken, res.Status)

	physical, reserved = f.stockOf(t, p)
	assert.Equal(t, types.NewQuantity(70), physical)
	assert.Equal(t, types.Quantity(0), reserved)

	_, err = f.svc.MarkAsTaken(f.ctx, tx.ID, []fulfillment.DeliveryItem{take(tx.Lines[0].ID, 1)}, delivery.Metadata{})
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyFulfilled))

	got, err := f.svc.GetTransaction(f.ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(30), got.Lines[0].QuantityDelivered)
	assert.Equal(t, types.Quantity(0), got.Lines[0].Remaining())

	records, err := f.svc.ListDeliveries(f.ctx, tx.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	assert.Equal(t, []string{
		events.SalesTransactionIssued,
		events.DeliveryRecorded,
		events.DeliveryRecorded,
	}, eventTypes(f.store.Events()))
}

func TestIssue_InsufficientStockChangesNothing(t *testing.T) {
	f := newFixture(t, guard.PolicyStrict)
	p := f.product(t, "P-1", 100)
	other := f.product(t, "P-2", 100)
	f.issue(t, line(p, 60, 1))
	before := len(f.store.Events())

	_, err := f.svc.IssueTransaction(f.ctx, fulfillment.IssueInput{
		CounterpartyID: f.customer,
		Lines:          []fulfillment.IssueLine{line(other, 5, 1), line(p, 50, 1)},
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, 40.0, appErr.Details["available"])

	_, reserved := f.stockOf(t, p)
	assert.Equal(t, types.NewQuantity(60), reserved)
	_, reserved = f.stockOf(t, other)
	assert.Equal(t, types.Quantity(0), reserved)
	assert.Equal(t, 1, f.store.TransactionCount())
	assert.Len(t, f.store.Events(), before)
}

func TestIssue_SumsDemandPerProduct(t *testing.T) {
	f := newFixture(t, guard.PolicyStrict)
	p := f.product(t, "P-1", 10)

	_, err := f.svc.IssueTransaction(f.ctx, fulfillment.IssueInput{
		CounterpartyID: f.customer,
		Lines:          []fulfillment.IssueLine{line(p, 6, 1), line(p, 6, 1)},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	tx := f.issue(t, line(p, 5, 1), line(p, 5, 1))
	assert.Len(t, tx.Lines, 2)
	_, reserved := f.stockOf(t, p)
	assert.Equal(t, types.NewQuantity(10), reserved)
}

func TestIssue_Validation(t *testing.T) {
	f := newFixture(t, guard.PolicyStrict)
	p := f.product(t, "P-1", 10)

	cases := map[string]fulfillment.IssueInput{
		"no lines":         {CounterpartyID: f.customer},
		"no counterparty":  {Lines: []fulfillment.IssueLine{line(p, 1, 1)}},
		"zero quantity":    {CounterpartyID: f.customer, Lines: []fulfillment.IssueLine{line(p, 0, 1)}},
		"paid over total":  {CounterpartyID: f.customer, PaidAmount: types.NewMoney(11), Lines: []fulfillment.IssueLine{line(p, 1, 10)}},
		"foreign no rate":  {CounterpartyID: f.customer, Currency: "EUR", Lines: []fulfillment.IssueLine{line(p, 1, 1)}},
		"negative payment": {CounterpartyID: f.customer, PaidAmount: types.NewMoney(-1), Lines: []fulfillment.IssueLine{line(p, 1, 1)}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.IssueTransaction(f.ctx, in)
			require.Error(t, err)
			assert.Equal(t, 400, apperror.GetHTTPStatus(err))
		})
	}

	_, err := f.svc.IssueTransaction(f.ctx, fulfillment.IssueInput{CounterpartyID: id.New(), Lines: []fulfillment.IssueLine{line(p, 1, 1)}})
	assert.True(t, apperror.HasCode(err, apperror.CodeCounterpartyNotFound))

	_, err = f.svc.IssueTransaction(f.ctx, fulfillment.IssueInput{CounterpartyID: f.customer, Lines: []fulfillment.IssueLine{line(id.New(), 1, 1)}})
	assert.True(t, apperror.HasCode(err, apperror.CodeProductNotFound))

	assert.Equal(t, 0, f.store.TransactionCount())
}

func TestIssue_PaymentAndBalance(t *testing.T) {
	f := newFixture(t, guard.PolicyStrict)
	p := f.product(t, "P-1", 10)

	tx, err := f.svc.IssueTransaction(f.ctx, fulfillment.IssueInput{
		CounterpartyID: f.customer,
		Currency:       "eur",
		ExchangeRate:   types.NewMoney(2),
		PaidAmount:     types.NewMoney(40),
		PaymentMethod:  "cash",
		Lines:          []fulfillment.IssueLine{line(p, 5, 20)},
	})
	require.NoError(t, err)
	assert.Equal(t, "EUR", tx.Currency)
	assert.True(t, tx.Total.Equal(types.NewMoney(100)))
	assert.True(t, tx.BaseTotal.Equal(types.NewMoney(200)))

	c, _ := f.store.Counterparty(f.customer)
	assert.True(t, c.Balance.Equal(types.NewMoney(120)), c.Balance.String())

	entries := f.store.FinanceEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, finance.KindPayment, entries[0].Kind)
	assert.Equal(t, "cash", entries[0].Method)
	assert.True(t, entries[0].Amount.Equal(types.NewMoney(80)))
}

func TestMarkAsTaken_OverDeliveryRejectsWholeCall(t *testing.T) {
	f := newFixture(t, guard.PolicyStrict)
	a := f.product(t, "P-A", 50)
	b := f.product(t, "P-B", 50)
	tx := f.issue(t, line(a, 10, 1), line(b, 5, 1))

	_, err := f.svc.MarkAsTaken(f.ctx, tx.ID, []fulfillment.DeliveryItem{
		take(tx.Lines[0].ID, 10),
		take(tx.Lines[1].ID, 6),
	}, delivery.Metadata{})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeOverDelivery, appErr.Code)
	assert.Equal(t, 5.0, appErr.Details["remaining"])

	physical, reserved := f.stockOf(t, a)
	assert.Equal(t, types.NewQuantity(50), physical)
	assert.Equal(t, types.NewQuantity(10), reserved)

	got, err := f.svc.GetTransaction(f.ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(0), got.Lines[0].QuantityDelivered)
	assert.Equal(t, sales.StatusNotTaken, got.DeliveryStatus)
}

func TestMarkAsTaken_InputErrors(t *testing.T) {
	f := newFixture(t, guard.PolicyStrict)
	p := f.product(t, "P-1", 50)
	tx := f.issue(t, line(p, 10, 1))

	_, err := f.svc.MarkAsTaken(f.ctx, tx.ID, nil, delivery.Metadata{})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.MarkAsTaken(f.ctx, tx.ID, []fulfillment.DeliveryItem{take(tx.Lines[0].ID, 1), take(tx.Lines[0].ID, 1)}, delivery.Metadata{})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.MarkAsTaken(f.ctx, tx.ID, []fulfillment.DeliveryItem{take(id.New(), 1)}, delivery.Metadata{})
	assert.True(t, apperror.HasCode(err, apperror.CodeLineNotFound))

	_, err = f.svc.MarkAsTaken(f.ctx, id.New(), []fulfillment.DeliveryItem{take(tx.Lines[0].ID, 1)}, delivery.Metadata{})
	assert.True(t, apperror.HasCode(err, apperror.CodeTransactionNotFound))
}

func TestMarkAsTaken_ReservationShortfallPolicy(t *testing.T) {
	for _, tc := range []struct {
		policy   guard.Policy
		wantCode string
	}{
		{policy: guard.PolicyStrict, wantCode: apperror.CodeInsufficientReservation},
		{policy: guard.PolicyLenient},
	} {
		t.Run(string(tc.policy), func(t *testing.T) {
			f := newFixture(t, tc.policy)
			p := f.product(t, "P-1", 100)
			tx := f.issue(t, line(p, 30, 1))

			// Simulate drift: the counter lost part of the reservation.
			drifted, _ := f.store.Product(p)
			drifted.ReservedStock = types.NewQuantity(10)
			f.store.SeedProduct(drifted)

			_, err := f.svc.MarkAsTaken(f.ctx, tx.ID, []fulfillment.DeliveryItem{take(tx.Lines[0].ID, 30)}, delivery.Metadata{})
			if tc.wantCode != "" {
				assert.True(t, apperror.HasCode(err, tc.wantCode))
				physical, reserved := f.stockOf(t, p)
				assert.Equal(t, types.NewQuantity(100), physical)
				assert.Equal(t, types.NewQuantity(10), reserved)
				return
			}

			require.NoError(t, err)
			physical, reserved := f.stockOf(t, p)
			assert.Equal(t, types.NewQuantity(70), physical)
			assert.Equal(t, types.Quantity(0), reserved)
			assert.Equal(t, int64(1), f.guard.Violations())
			assert.Equal(t, []string{guard.KindReservationShortfall}, f.reporter.kinds)
		})
	}
}

func TestDelete_RestoresStockAndBalance(t *testing.T) {
	f := newFixture(t, guard.PolicyStrict)
	p := f.product(t, "P-1", 100)
	tx, err := f.svc.IssueTransaction(f.ctx, fulfillment.IssueInput{
		CounterpartyID: f.customer,
		PaidAmount:     types.NewMoney(10),
		Lines:          []fulfillment.IssueLine{line(p, 30, 1)},
	})
	require.NoError(t, err)

	_, err = f.svc.MarkAsTaken(f.ctx, tx.ID, []fulfillment.DeliveryItem{take(tx.Lines[0].ID, 10)}, delivery.Metadata{})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteTransaction(f.ctx, tx.ID))

	physical, reserved := f.stockOf(t, p)
	assert.Equal(t, types.NewQuantity(100), physical)
	assert.Equal(t, types.Quantity(0), reserved)

	c, _ := f.store.Counterparty(f.customer)
	assert.True(t, c.Balance.IsZero(), c.Balance.String())
	assert.Empty(t, f.store.FinanceEntries())
	assert.Equal(t, 0, f.store.TransactionCount())

	entries := f.store.AuditEntries()
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, "sales_transaction", last.EntityType)
	assert.Equal(t, "clerk-1", last.UserID)

	evts := f.store.Events()
	assert.Equal(t, events.SalesTransactionDeleted, evts[len(evts)-1].Type)

	_, err = f.svc.GetTransaction(f.ctx, tx.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestDelete_RejectedWithReturns(t *testing.T) {
	f := newFixture(t, guard.PolicyStrict)
	p := f.product(t, "P-1", 100)
	tx := f.issue(t, line(p, 10, 1))
	_, err := f.svc.MarkAsTaken(f.ctx, tx.ID, []fulfillment.DeliveryItem{take(tx.Lines[0].ID, 10)}, delivery.Metadata{})
	require.NoError(t, err)

	_, err = f.svc.CreateReturn(f.ctx, fulfillment.ReturnInput{
		TransactionID: tx.ID,
		Lines: []fulfillment.ReturnLineInput{{
			SalesLineID: tx.Lines[0].ID,
			Quantity:    types.NewQuantity(1),
			UnitPrice:   types.NewMoney(1),
			Condition:   salesreturn.ConditionGood,
			Restock:     true,
		}},
	})
	require.NoError(t, err)

	err = f.svc.DeleteTransaction(f.ctx, tx.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeHasReturns))
	assert.Equal(t, 1, f.store.TransactionCount())
}

func returnLine(salesLineID id.ID, qty int64, cond salesreturn.Condition, restock bool) fulfillment.ReturnLineInput {
	return fulfillment.ReturnLineInput{
		SalesLineID: salesLineID,
		Quantity:    types.NewQuantity(qty),
		UnitPrice:   types.NewMoney(5),
		Condition:   cond,
		Restock:     restock,
	}
}

func TestCreateReturn_RestockAndWriteOff(t *testing.T) {
	f := newFixture(t, guard.PolicyStrict)
	p := f.product(t, "P-1", 100)
	tx := f.issue(t, line(p, 10, 5))
	_, err := f.svc.MarkAsTaken(f.ctx, tx.ID, []fulfillment.DeliveryItem{take(tx.Lines[0].ID, 10)}, delivery.Metadata{})
	require.NoError(t, err)

	rec, err := f.svc.CreateReturn(f.ctx, fulfillment.ReturnInput{
		TransactionID: tx.ID,
		Reason:        "wrong size",
		Lines:         []fulfillment.ReturnLineInput{returnLine(tx.Lines[0].ID, 4, salesreturn.ConditionGood, true)},
	})
	require.NoError(t, err)
	assert.Equal(t, "RET-20260315-0001", rec.Number)
	assert.Equal(t, salesreturn.RefundPending, rec.RefundStatus)
	assert.Equal(t, types.NewQuantity(4), rec.Lines[0].Restocked)
	assert.True(t, rec.Total.Equal(types.NewMoney(20)))

	physical, _ := f.stockOf(t, p)
	assert.Equal(t, types.NewQuantity(94), physical)

	_, err = f.svc.CreateReturn(f.ctx, fulfillment.ReturnInput{
		TransactionID: tx.ID,
		Lines:         []fulfillment.ReturnLineInput{returnLine(tx.Lines[0].ID, 2, salesreturn.ConditionDamaged, true)},
	})
	require.NoError(t, err)

	physical, _ = f.stockOf(t, p)
	assert.Equal(t, types.NewQuantity(94), physical)

	adj := f.store.Adjustments(p)
	require.Len(t, adj, 2)
	assert.Equal(t, stock.ReasonReturnRestock, adj[0].Reason)
	assert.Equal(t, types.NewQuantity(4), adj[0].Quantity)
	assert.Equal(t, stock.ReasonReturnWriteOff, adj[1].Reason)
	assert.Equal(t, types.NewQuantity(-2), adj[1].Quantity)

	_, err = f.svc.CreateReturn(f.ctx, fulfillment.ReturnInput{
		TransactionID: tx.ID,
		Lines:         []fulfillment.ReturnLineInput{returnLine(tx.Lines[0].ID, 5, salesreturn.ConditionGood, true)},
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeOverReturn, appErr.Code)
	assert.Equal(t, 4.0, appErr.Details["returnable"])
}

func TestCreateReturn_ConditionIsCaseInsensitive(t *testing.T) {
	f := newFixture(t, guard.PolicyStrict)
	p := f.product(t, "P-1", 100)
	tx := f.issue(t, line(p, 10, 5))
	_, err := f.svc.MarkAsTaken(f.ctx, tx.ID, []fulfillment.DeliveryItem{take(tx.Lines[0].ID, 10)}, delivery.Metadata{})
	require.NoError(t, err)

	rec, err := f.svc.CreateReturn(f.ctx, fulfillment.ReturnInput{
		TransactionID: tx.ID,
		Lines:         []fulfillment.ReturnLineInput{returnLine(tx.Lines[0].ID, 4, salesreturn.Condition("Good"), true)},
	})
	require.NoError(t, err)
	assert.Equal(t, salesreturn.ConditionGood, rec.Lines[0].Condition)
	assert.Equal(t, types.NewQuantity(4), rec.Lines[0].Restocked)

	physical, _ := f.stockOf(t, p)
	assert.Equal(t, types.NewQuantity(94), physical)
}

func TestCreateReturn_ExcessCancelsReservation(t *testing.T) {
	f := newFixture(t, guard.PolicyStrict)
	p := f.product(t, "P-1", 100)
	tx := f.issue(t, line(p, 10, 5))
	_, err := f.svc.MarkAsTaken(f.ctx, tx.ID, []fulfillment.DeliveryItem{take(tx.Lines[0].ID, 4)}, delivery.Metadata{})
	require.NoError(t, err)

	rec, err := f.svc.CreateReturn(f.ctx, fulfillment.ReturnInput{
		TransactionID: tx.ID,
		Lines:         []fulfillment.ReturnLineInput{returnLine(tx.Lines[0].ID, 6, salesreturn.ConditionGood, true)},
	})
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(2), rec.Lines[0].Released)
	assert.Equal(t, types.NewQuantity(4), rec.Lines[0].Restocked)

	physical, reserved := f.stockOf(t, p)
	assert.Equal(t, types.NewQuantity(100), physical)
	assert.Equal(t, types.NewQuantity(4), reserved)

	got, err := f.svc.GetTransaction(f.ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(2), got.Lines[0].QuantityCancelled)
	assert.Equal(t, types.NewQuantity(4), got.Lines[0].Remaining())
	assert.Equal(t, sales.StatusPartiallyTaken, got.DeliveryStatus)

	res, err := f.svc.MarkAsTaken(f.ctx, tx.ID, []fulfillment.DeliveryItem{take(tx.Lines[0].ID, 4)}, delivery.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, sales.StatusTaken, res.Status)

	physical, reserved = f.stockOf(t, p)
	assert.Equal(t, types.NewQuantity(96), physical)
	assert.Equal(t, types.Quantity(0), reserved)
}

func TestCreateReturn_StoreCredit(t *testing.T) {
	f := newFixture(t, guard.PolicyStrict)
	p := f.product(t, "P-1", 100)
	tx := f.issue(t, line(p, 10, 5))
	_, err := f.svc.MarkAsTaken(f.ctx, tx.ID, []fulfillment.DeliveryItem{take(tx.Lines[0].ID, 10)}, delivery.Metadata{})
	require.NoError(t, err)

	rec, err := f.svc.CreateReturn(f.ctx, fulfillment.ReturnInput{
		TransactionID: tx.ID,
		RefundMethod:  salesreturn.RefundStoreCredit,
		Lines:         []fulfillment.ReturnLineInput{returnLine(tx.Lines[0].ID, 3, salesreturn.ConditionGood, false)},
	})
	require.NoError(t, err)

	physical, _ := f.stockOf(t, p)
	assert.Equal(t, types.NewQuantity(90), physical)

	c, _ := f.store.Counterparty(f.customer)
	assert.True(t, c.CreditBalance.Equal(types.NewMoney(15)), c.CreditBalance.String())

	var credit []finance.Entry
	for _, e := range f.store.FinanceEntries() {
		if e.Kind == finance.KindStoreCredit {
			credit = append(credit, e)
		}
	}
	require.Len(t, credit, 1)
	assert.Equal(t, rec.ID, credit[0].SourceID)
	assert.Equal(t, finance.SourceSalesReturn, credit[0].SourceType)
}

func TestCreateReturn_CounterpartyMustMatch(t *testing.T) {
	f := newFixture(t, guard.PolicyStrict)
	p := f.product(t, "P-1", 100)
	tx := f.issue(t, line(p, 10, 5))

	_, err := f.svc.CreateReturn(f.ctx, fulfillment.ReturnInput{
		TransactionID:  tx.ID,
		CounterpartyID: id.New(),
		Lines:          []fulfillment.ReturnLineInput{returnLine(tx.Lines[0].ID, 1, salesreturn.ConditionGood, true)},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestSetRefundStatus(t *testing.T) {
	f := newFixture(t, guard.PolicyStrict)
	p := f.product(t, "P-1", 100)
	tx := f.issue(t, line(p, 10, 5))
	_, err := f.svc.MarkAsTaken(f.ctx, tx.ID, []fulfillment.DeliveryItem{take(tx.Lines[0].ID, 10)}, delivery.Metadata{})
	require.NoError(t, err)
	rec, err := f.svc.CreateReturn(f.ctx, fulfillment.ReturnInput{
		TransactionID: tx.ID,
		Lines:         []fulfillment.ReturnLineInput{returnLine(tx.Lines[0].ID, 1, salesreturn.ConditionGood, true)},
	})
	require.NoError(t, err)

	updated, err := f.svc.SetRefundStatus(f.ctx, rec.ID, salesreturn.RefundRefunded)
	require.NoError(t, err)
	assert.Equal(t, salesreturn.RefundRefunded, updated.RefundStatus)

	_, err = f.svc.SetRefundStatus(f.ctx, rec.ID, salesreturn.RefundCancelled)
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))

	got, err := f.svc.GetReturn(f.ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, salesreturn.RefundRefunded, got.RefundStatus)

	_, err = f.svc.GetReturn(f.ctx, id.New())
	assert.True(t, apperror.HasCode(err, apperror.CodeReturnNotFound))
}

func TestQuotation(t *testing.T) {
	f := newFixture(t, guard.PolicyStrict)
	p := f.product(t, "P-1", 5)

	tx, err := f.svc.IssueTransaction(f.ctx, fulfillment.IssueInput{
		CounterpartyID: f.customer,
		IsQuotation:    true,
		Lines:          []fulfillment.IssueLine{line(p, 50, 1)},
	})
	require.NoError(t, err)
	assert.Equal(t, "QUO-20260315-0001", tx.Number)
	assert.Equal(t, sales.StatusTaken, tx.DeliveryStatus)

	_, reserved := f.stockOf(t, p)
	assert.Equal(t, types.Quantity(0), reserved)
	c, _ := f.store.Counterparty(f.customer)
	assert.True(t, c.Balance.IsZero())

	_, err = f.svc.MarkAsTaken(f.ctx, tx.ID, []fulfillment.DeliveryItem{take(tx.Lines[0].ID, 1)}, delivery.Metadata{})
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyFulfilled))

	_, err = f.svc.CreateReturn(f.ctx, fulfillment.ReturnInput{
		TransactionID: tx.ID,
		Lines:         []fulfillment.ReturnLineInput{returnLine(tx.Lines[0].ID, 1, salesreturn.ConditionGood, true)},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))

	_, err = f.svc.IssueTransaction(f.ctx, fulfillment.IssueInput{
		CounterpartyID: f.customer,
		IsQuotation:    true,
		PaidAmount:     types.NewMoney(1),
		Lines:          []fulfillment.IssueLine{line(p, 1, 1)},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	require.NoError(t, f.svc.DeleteTransaction(f.ctx, tx.ID))
	physical, reserved := f.stockOf(t, p)
	assert.Equal(t, types.NewQuantity(5), physical)
	assert.Equal(t, types.Quantity(0), reserved)
}

func TestNumbering_DailySequence(t *testing.T) {
	f := newFixture(t, guard.PolicyStrict)
	p := f.product(t, "P-1", 100)

	first := f.issue(t, line(p, 1, 1))
	second := f.issue(t, line(p, 1, 1))
	assert.Equal(t, "INV-20260315-0001", first.Number)
	assert.Equal(t, "INV-20260315-0002", second.Number)

	next, err := f.svc.IssueTransaction(f.ctx, fulfillment.IssueInput{
		CounterpartyID: f.customer,
		Date:           fixedNow.AddDate(0, 0, 1),
		Lines:          []fulfillment.IssueLine{line(p, 1, 1)},
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-20260316-0001", next.Number)
}

func TestReorderLevelReached(t *testing.T) {
	f := newFixture(t, guard.PolicyStrict)
	pr := stock.Product{
		ID:            id.New(),
		Code:          "P-R",
		Name:          "Reorderable",
		PhysicalStock: types.NewQuantity(30),
		ReorderLevel:  types.NewQuantity(10),
	}
	f.store.SeedProduct(pr)

	f.issue(t, line(pr.ID, 15, 1))
	assert.NotContains(t, eventTypes(f.store.Events()), events.ReorderLevelReached)

	f.issue(t, line(pr.ID, 10, 1))
	evts := f.store.Events()
	last := evts[len(evts)-1]
	assert.Equal(t, events.SalesTransactionIssued, last.Type)
	assert.Contains(t, eventTypes(evts), events.ReorderLevelReached)
}

func TestAdjustStock(t *testing.T) {
	f := newFixture(t, guard.PolicyStrict)
	p := f.product(t, "P-1", 10)
	f.issue(t, line(p, 8, 1))

	_, _, err := f.svc.AdjustStock(f.ctx, p, types.NewQuantity(-3), "breakage")
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	prod, adj, err := f.svc.AdjustStock(f.ctx, p, types.NewQuantity(5), "recount")
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(15), prod.PhysicalStock)
	assert.Equal(t, stock.ReasonManual, adj.Reason)
	assert.Equal(t, "clerk-1", adj.CreatedBy)

	got, err := f.svc.ProductAvailability(f.ctx, p)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(7), got.Available())

	entries := f.store.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "product", entries[0].EntityType)
}

func TestConcurrentIssuesNeverOversell(t *testing.T) {
	f := newFixture(t, guard.PolicyStrict)
	p := f.product(t, "P-1", 20)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.IssueTransaction(f.ctx, fulfillment.IssueInput{
				CounterpartyID: f.customer,
				Lines:          []fulfillment.IssueLine{line(p, 1, 1)},
			})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, ok)
	physical, reserved := f.stockOf(t, p)
	assert.Equal(t, physical, reserved)
	assert.Equal(t, int64(0), f.guard.Violations())
}

func TestCatalogAndHistory(t *testing.T) {
	f := newFixture(t, guard.PolicyStrict)

	p := &stock.Product{Code: "NEW-1", Name: "New product", PhysicalStock: types.NewQuantity(12)}
	require.NoError(t, f.svc.CreateProduct(f.ctx, p))
	assert.False(t, id.IsNil(p.ID))

	err := f.svc.CreateProduct(f.ctx, &stock.Product{Code: "NEW-1", Name: "Duplicate"})
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))
	err = f.svc.CreateProduct(f.ctx, &stock.Product{Name: "No code"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	c := &counterparty.Counterparty{Code: "C-2", Name: "Beta Stores"}
	require.NoError(t, f.svc.CreateCounterparty(f.ctx, c))
	got, err := f.svc.GetCounterparty(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, counterparty.KindCustomer, got.Kind)

	_, _, err = f.svc.AdjustStock(f.ctx, p.ID, types.NewQuantity(-2), "damaged in storage")
	require.NoError(t, err)

	adj, err := f.svc.ListAdjustments(f.ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, adj, 1)
	assert.Equal(t, types.NewQuantity(-2), adj[0].Quantity)

	history, err := f.svc.AuditHistory(f.ctx, "product", p.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, audit.ActionAdjust, history[0].Action)
	assert.Equal(t, audit.ActionCreate, history[1].Action)
	assert.JSONEq(t, `{"code":"NEW-1","name":"New product","physical":12,"reorder_level":0}`, string(history[1].Changes))
}
