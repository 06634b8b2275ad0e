// Package store assembles the PostgreSQL repositories into units of work.
package store

import (
	"context"

	"stockflow/internal/domain/audit"
	"stockflow/internal/domain/catalogs/counterparty"
	"stockflow/internal/domain/documents/delivery"
	"stockflow/internal/domain/documents/sales"
	"stockflow/internal/domain/documents/salesreturn"
	"stockflow/internal/domain/events"
	"stockflow/internal/domain/registers/finance"
	"stockflow/internal/domain/registers/stock"
	"stockflow/internal/domain/uow"
	"stockflow/internal/infrastructure/storage/postgres"
	"stockflow/internal/infrastructure/storage/postgres/catalog_repo"
	"stockflow/internal/infrastructure/storage/postgres/document_repo"
	"stockflow/internal/infrastructure/storage/postgres/register_repo"
	"stockflow/pkg/numerator"
)

// Store opens one database transaction per unit of work.
type Store struct {
	txm   *postgres.TxManager
	codec *postgres.AuditCodec
}

var _ uow.Store = (*Store)(nil)

// New creates a store over txm. codec compresses large audit documents.
func New(txm *postgres.TxManager, codec *postgres.AuditCodec) *Store {
	return &Store{txm: txm, codec: codec}
}

// Atomic implements tx.Runner.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, u uow.UnitOfWork) error) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return fn(ctx, s.bind(ctx))
	})
}

// ReadOnly implements tx.Runner.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context, u uow.UnitOfWork) error) error {
	return s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		return fn(ctx, s.bind(ctx))
	})
}

func (s *Store) bind(ctx context.Context) *unit {
	q := s.txm.GetQuerier(ctx)
	return &unit{
		stock:          register_repo.NewStockRepo(q),
		finance:        register_repo.NewFinanceRepo(q),
		counterparties: catalog_repo.NewCounterpartyRepo(q),
		sales:          document_repo.NewSalesRepo(q),
		deliveries:     document_repo.NewDeliveryRepo(q),
		returns:        document_repo.NewReturnRepo(q),
		sequences:      postgres.NewSequenceRepo(q),
		events:         postgres.NewOutboxPublisher(q),
		audit:          postgres.NewAuditService(q, s.codec),
	}
}

// unit holds repositories bound to one open transaction.
type unit struct {
	stock          *register_repo.StockRepo
	finance        *register_repo.FinanceRepo
	counterparties *catalog_repo.CounterpartyRepo
	sales          *document_repo.SalesRepo
	deliveries     *document_repo.DeliveryRepo
	returns        *document_repo.ReturnRepo
	sequences      *postgres.SequenceRepo
	events         *postgres.OutboxPublisher
	audit          *postgres.AuditService
}

func (u *unit) Stock() stock.Repository                 { return u.stock }
func (u *unit) Counterparties() counterparty.Repository { return u.counterparties }
func (u *unit) Sales() sales.Repository                 { return u.sales }
func (u *unit) Deliveries() delivery.Repository         { return u.deliveries }
func (u *unit) Returns() salesreturn.Repository         { return u.returns }
func (u *unit) Finance() finance.Repository             { return u.finance }
func (u *unit) Sequences() numerator.Sequencer          { return u.sequences }
func (u *unit) Events() events.Publisher                { return u.events }
func (u *unit) Audit() audit.Trail                      { return u.audit }
