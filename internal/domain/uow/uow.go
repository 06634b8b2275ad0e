// Package uow defines the unit of work handed to fulfillment operations.
package uow

import (
	"stockflow/internal/core/tx"
	"stockflow/internal/domain/audit"
	"stockflow/internal/domain/catalogs/counterparty"
	"stockflow/internal/domain/documents/delivery"
	"stockflow/internal/domain/documents/sales"
	"stockflow/internal/domain/documents/salesreturn"
	"stockflow/internal/domain/events"
	"stockflow/internal/domain/registers/finance"
	"stockflow/internal/domain/registers/stock"
	"stockflow/pkg/numerator"
)

// UnitOfWork exposes repositories bound to one open transaction.
// Everything written through it commits or rolls back together.
type UnitOfWork interface {
	Stock() stock.Repository
	Counterparties() counterparty.Repository
	Sales() sales.Repository
	Deliveries() delivery.Repository
	Returns() salesreturn.Repository
	Finance() finance.Repository
	Sequences() numerator.Sequencer
	Events() events.Publisher
	Audit() audit.Trail
}

// Store opens units of work.
type Store interface {
	tx.Runner[UnitOfWork]
}
