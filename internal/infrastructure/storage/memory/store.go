// Package memory is an in-process implementation of the unit of work.
//
// One mutex serializes units. Each unit works on a deep copy of the state
// that replaces the committed state only when the unit succeeds, which gives
// the same all-or-nothing behaviour as a database transaction. Units are not
// reentrant: calling Atomic from inside fn deadlocks.
package memory

import (
	"context"
	"slices"
	"sync"

	"stockflow/internal/core/id"
	"stockflow/internal/domain/audit"
	"stockflow/internal/domain/catalogs/counterparty"
	"stockflow/internal/domain/documents/delivery"
	"stockflow/internal/domain/documents/sales"
	"stockflow/internal/domain/documents/salesreturn"
	"stockflow/internal/domain/events"
	"stockflow/internal/domain/registers/finance"
	"stockflow/internal/domain/registers/stock"
	"stockflow/internal/domain/uow"
	"stockflow/pkg/numerator"
)

var _ uow.Store = (*Store)(nil)

type state struct {
	products       map[id.ID]stock.Product
	adjustments    []stock.Adjustment
	counterparties map[id.ID]counterparty.Counterparty
	transactions   map[id.ID]sales.Transaction
	deliveries     []delivery.Record
	returns        map[id.ID]salesreturn.Record
	finance        []finance.Entry
	sequences      map[string]int64
	events         []events.Event
	audit          []audit.Entry
}

func newState() *state {
	return &state{
		products:       make(map[id.ID]stock.Product),
		counterparties: make(map[id.ID]counterparty.Counterparty),
		transactions:   make(map[id.ID]sales.Transaction),
		returns:        make(map[id.ID]salesreturn.Record),
		sequences:      make(map[string]int64),
	}
}

func (s *state) clone() *state {
	c := &state{
		products:       make(map[id.ID]stock.Product, len(s.products)),
		adjustments:    slices.Clone(s.adjustments),
		counterparties: make(map[id.ID]counterparty.Counterparty, len(s.counterparties)),
		transactions:   make(map[id.ID]sales.Transaction, len(s.transactions)),
		deliveries:     make([]delivery.Record, len(s.deliveries)),
		returns:        make(map[id.ID]salesreturn.Record, len(s.returns)),
		finance:        slices.Clone(s.finance),
		sequences:      make(map[string]int64, len(s.sequences)),
		events:         slices.Clone(s.events),
		audit:          slices.Clone(s.audit),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.counterparties {
		c.counterparties[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = copyTransaction(v)
	}
	for i, r := range s.deliveries {
		c.deliveries[i] = copyDelivery(r)
	}
	for k, v := range s.returns {
		c.returns[k] = copyReturn(v)
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	return c
}

func copyTransaction(t sales.Transaction) sales.Transaction {
	t.Lines = slices.Clone(t.Lines)
	return t
}

func copyDelivery(r delivery.Record) delivery.Record {
	r.Items = slices.Clone(r.Items)
	return r
}

func copyReturn(r salesreturn.Record) salesreturn.Record {
	r.Lines = slices.Clone(r.Lines)
	return r
}

// Store holds the committed state.
type Store struct {
	mu sync.Mutex
	st *state
}

// New creates an empty store.
func New() *Store {
	return &Store{st: newState()}
}

// Atomic runs fn on a private copy and commits it if fn returns nil.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, u uow.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, newUnit(work)); err != nil {
		return err
	}
	s.st = work
	return nil
}

// ReadOnly runs fn on a private copy that is always discarded.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context, u uow.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, newUnit(s.st.clone()))
}

// --- seeding and inspection ---

// SeedProduct stores p as committed state.
func (s *Store) SeedProduct(p stock.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[p.ID] = p
}

// SeedCounterparty stores c as committed state.
func (s *Store) SeedCounterparty(c counterparty.Counterparty) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.counterparties[c.ID] = c
}

// Product returns the committed product.
func (s *Store) Product(productID id.ID) (stock.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[productID]
	return p, ok
}

// Products returns all committed products.
func (s *Store) Products() []stock.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]stock.Product, 0, len(s.st.products))
	for _, p := range s.st.products {
		out = append(out, p)
	}
	return out
}

// Counterparty returns the committed counterparty.
func (s *Store) Counterparty(counterpartyID id.ID) (counterparty.Counterparty, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.counterparties[counterpartyID]
	return c, ok
}

// TransactionCount returns how many sales transactions are committed.
func (s *Store) TransactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.transactions)
}

// Events returns committed events in publish order.
func (s *Store) Events() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.events)
}

// FinanceEntries returns committed ledger entries.
func (s *Store) FinanceEntries() []finance.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.finance)
}

// AuditEntries returns committed audit entries, oldest first.
func (s *Store) AuditEntries() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.audit)
}

// Adjustments returns committed journal rows of a product, oldest first.
func (s *Store) Adjustments(productID id.ID) []stock.Adjustment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []stock.Adjustment
	for _, a := range s.st.adjustments {
		if a.ProductID == productID {
			out = append(out, a)
		}
	}
	return out
}

// --- unit of work ---

type unit struct {
	st *state
}

var _ uow.UnitOfWork = (*unit)(nil)

func newUnit(st *state) *unit { return &unit{st: st} }

func (u *unit) Stock() stock.Repository                 { return stockRepo{u.st} }
func (u *unit) Counterparties() counterparty.Repository { return counterpartyRepo{u.st} }
func (u *unit) Sales() sales.Repository                 { return salesRepo{u.st} }
func (u *unit) Deliveries() delivery.Repository         { return deliveryRepo{u.st} }
func (u *unit) Returns() salesreturn.Repository         { return returnRepo{u.st} }
func (u *unit) Finance() finance.Repository             { return financeRepo{u.st} }
func (u *unit) Sequences() numerator.Sequencer          { return sequenceRepo{u.st} }
func (u *unit) Events() events.Publisher                { return eventPublisher{u.st} }
func (u *unit) Audit() audit.Trail                      { return auditLog{u.st} }
