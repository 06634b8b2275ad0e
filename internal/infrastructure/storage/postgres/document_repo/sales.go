package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/domain/documents/sales"
	"stockflow/internal/infrastructure/storage/postgres"
)

const (
	salesTable      = "sales_transactions"
	salesLinesTable = "sales_lines"
)

var (
	salesColumns     = postgres.ExtractDBColumns[sales.Transaction]()
	salesLineColumns = postgres.ExtractDBColumns[sales.Line]()
)

// SalesRepo implements sales.Repository.
type SalesRepo struct {
	q       postgres.Querier
	builder squirrel.StatementBuilderType
}

var _ sales.Repository = (*SalesRepo)(nil)

// NewSalesRepo creates a sales repository on q.
func NewSalesRepo(q postgres.Querier) *SalesRepo {
	return &SalesRepo{q: q, builder: newBuilder()}
}

// Create implements sales.Repository.
func (r *SalesRepo) Create(ctx context.Context, t *sales.Transaction) error {
	t.RecomputeStatus()
	if err := insertHeader(ctx, r.q, salesTable, t, map[string]any{
		"delivery_status": t.DeliveryStatus.String(),
	}); err != nil {
		return err
	}
	return copyLines(ctx, r.q, salesLinesTable, salesLineColumns, t.Lines, func(l *sales.Line) []any {
		return []any{l.DeliveryStatus.String()}
	})
}

// GetByID implements sales.Repository.
func (r *SalesRepo) GetByID(ctx context.Context, transactionID id.ID) (*sales.Transaction, error) {
	return r.load(ctx, transactionID, false)
}

// GetForUpdate implements sales.Repository.
func (r *SalesRepo) GetForUpdate(ctx context.Context, transactionID id.ID) (*sales.Transaction, error) {
	return r.load(ctx, transactionID, true)
}

func (r *SalesRepo) headerQuery(transactionID id.ID, lock bool) squirrel.SelectBuilder {
	q := r.builder.Select(salesColumns...).
		From(salesTable).
		Where(squirrel.Eq{"id": transactionID})
	if lock {
		q = q.Suffix("FOR UPDATE")
	}
	return q
}

func (r *SalesRepo) linesQuery(transactionID id.ID, lock bool) squirrel.SelectBuilder {
	q := r.builder.Select(salesLineColumns...).
		From(salesLinesTable).
		Where(squirrel.Eq{"transaction_id": transactionID}).
		OrderBy("line_no")
	if lock {
		q = q.Suffix("FOR UPDATE")
	}
	return q
}

func (r *SalesRepo) load(ctx context.Context, transactionID id.ID, lock bool) (*sales.Transaction, error) {
	sql, args, err := r.headerQuery(transactionID, lock).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var t sales.Transaction
	if err := pgxscan.Get(ctx, r.q, &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewTransactionNotFound(transactionID.String())
		}
		return nil, fmt.Errorf("get sales transaction: %w", err)
	}

	sql, args, err = r.linesQuery(transactionID, lock).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.q, &t.Lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select sales lines: %w", err)
	}

	t.RecomputeStatus()
	return &t, nil
}

// UpdateLineProgress implements sales.Repository. All lines go in one batch.
func (r *SalesRepo) UpdateLineProgress(ctx context.Context, lines []sales.Line) error {
	queries := make([]postgres.BatchQuery, 0, len(lines))
	for i := range lines {
		l := &lines[i]
		sql, args, err := r.builder.Update(salesLinesTable).
			Set("quantity_delivered", l.QuantityDelivered.Int64Scaled()).
			Set("quantity_cancelled", l.QuantityCancelled.Int64Scaled()).
			Set("delivery_status", sales.LineStatus(l.Quantity, l.QuantityDelivered, l.QuantityCancelled).String()).
			Where(squirrel.Eq{"id": l.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build line update: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}

	affected, err := postgres.ExecBatch(ctx, r.q, queries)
	if postgres.IsCheckViolation(err) {
		return apperror.NewConsistencyViolation("line progress out of range").WithCause(err)
	}
	if err != nil {
		return fmt.Errorf("update line progress: %w", err)
	}
	for i, n := range affected {
		if n == 0 {
			return apperror.NewLineNotFound(lines[i].ID.String())
		}
	}
	return nil
}

// UpdateDeliveryStatus implements sales.Repository.
func (r *SalesRepo) UpdateDeliveryStatus(ctx context.Context, transactionID id.ID, status sales.DeliveryStatus) error {
	if !status.Valid() {
		return fmt.Errorf("update delivery status: invalid status %d", uint8(status))
	}
	sql, args, err := r.builder.Update(salesTable).
		Set("delivery_status", status.String()).
		Set("status_changed_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": transactionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update delivery status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewTransactionNotFound(transactionID.String())
	}
	return nil
}

// Delete implements sales.Repository. Lines go with the header via ON DELETE CASCADE.
func (r *SalesRepo) Delete(ctx context.Context, transactionID id.ID) error {
	sql, args, err := r.builder.Delete(salesTable).
		Where(squirrel.Eq{"id": transactionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return apperror.NewConflict("sales transaction is referenced by other documents").
				WithDetail("id", transactionID.String()).
				WithCause(err)
		}
		return fmt.Errorf("delete sales transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewTransactionNotFound(transactionID.String())
	}
	return nil
}
