// Package finance is the append-only financial ledger of payments and store credit.
package finance

import (
	"context"
	"time"

	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
)

// SourceType names the document an entry belongs to.
type SourceType string

const (
	SourceSalesTransaction SourceType = "sales_transaction"
	SourceSalesReturn      SourceType = "sales_return"
)

// EntryKind classifies ledger entries.
type EntryKind string

const (
	KindPayment     EntryKind = "payment"
	KindStoreCredit EntryKind = "store_credit"
)

// Entry is one row of the ledger. Amount is in base currency.
type Entry struct {
	ID             id.ID       `db:"id" json:"id"`
	CounterpartyID id.ID       `db:"counterparty_id" json:"counterpartyId"`
	SourceType     SourceType  `db:"source_type" json:"sourceType"`
	SourceID       id.ID       `db:"source_id" json:"sourceId"`
	Kind           EntryKind   `db:"kind" json:"kind"`
	Method         string      `db:"method" json:"method,omitempty"`
	Amount         types.Money `db:"amount" json:"amount"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
	CreatedBy      string      `db:"created_by" json:"createdBy,omitempty"`
}

// Repository persists ledger entries within the caller's transaction.
type Repository interface {
	Append(ctx context.Context, e *Entry) error

	// DeleteBySource removes every entry of a document and returns how many were removed.
	DeleteBySource(ctx context.Context, source SourceType, sourceID id.ID) (int64, error)

	ListBySource(ctx context.Context, source SourceType, sourceID id.ID) ([]Entry, error)
}
