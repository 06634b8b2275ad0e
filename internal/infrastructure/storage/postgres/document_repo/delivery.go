package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockflow/internal/core/id"
	"stockflow/internal/domain/documents/delivery"
	"stockflow/internal/infrastructure/storage/postgres"
)

const (
	deliveryTable      = "delivery_records"
	deliveryItemsTable = "delivery_items"
)

var (
	deliveryColumns     = postgres.ExtractDBColumns[delivery.Record]()
	deliveryItemColumns = postgres.ExtractDBColumns[delivery.Item]()
)

// DeliveryRepo implements delivery.Repository. Records are append-only.
type DeliveryRepo struct {
	q       postgres.Querier
	builder squirrel.StatementBuilderType
}

var _ delivery.Repository = (*DeliveryRepo)(nil)

// NewDeliveryRepo creates a delivery repository on q.
func NewDeliveryRepo(q postgres.Querier) *DeliveryRepo {
	return &DeliveryRepo{q: q, builder: newBuilder()}
}

// Append implements delivery.Repository.
func (r *DeliveryRepo) Append(ctx context.Context, rec *delivery.Record) error {
	if err := insertHeader(ctx, r.q, deliveryTable, rec, nil); err != nil {
		return err
	}
	return copyLines[delivery.Item](ctx, r.q, deliveryItemsTable, deliveryItemColumns, rec.Items, nil)
}

// ListByTransaction implements delivery.Repository.
func (r *DeliveryRepo) ListByTransaction(ctx context.Context, transactionID id.ID) ([]delivery.Record, error) {
	sql, args, err := r.builder.Select(deliveryColumns...).
		From(deliveryTable).
		Where(squirrel.Eq{"transaction_id": transactionID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []delivery.Record
	if err := pgxscan.Select(ctx, r.q, &records, sql, args...); err != nil {
		return nil, fmt.Errorf("select delivery records: %w", err)
	}
	if len(records) == 0 {
		return records, nil
	}

	ids := make([]id.ID, len(records))
	index := make(map[id.ID]int, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
		index[rec.ID] = i
	}

	sql, args, err = r.builder.Select(deliveryItemColumns...).
		From(deliveryItemsTable).
		Where(squirrel.Eq{"record_id": ids}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build items query: %w", err)
	}

	var items []delivery.Item
	if err := pgxscan.Select(ctx, r.q, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select delivery items: %w", err)
	}
	for _, it := range items {
		i := index[it.RecordID]
		records[i].Items = append(records[i].Items, it)
	}
	return records, nil
}
