package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockflow/internal/core/id"
	"stockflow/internal/domain/registers/finance"
	"stockflow/internal/infrastructure/storage/postgres"
)

const financeTable = "finance_entries"

var financeColumns = postgres.ExtractDBColumns[finance.Entry]()

// FinanceRepo implements finance.Repository.
type FinanceRepo struct {
	q       postgres.Querier
	builder squirrel.StatementBuilderType
}

var _ finance.Repository = (*FinanceRepo)(nil)

// NewFinanceRepo creates a finance ledger repository on q.
func NewFinanceRepo(q postgres.Querier) *FinanceRepo {
	return &FinanceRepo{
		q:       q,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append implements finance.Repository.
func (r *FinanceRepo) Append(ctx context.Context, e *finance.Entry) error {
	if id.IsNil(e.ID) {
		e.ID = id.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	m := postgres.StructToMap(e)
	sql, args, err := r.builder.Insert(financeTable).
		Columns(financeColumns...).
		Values(postgres.ValuesFor(m, financeColumns)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert finance entry: %w", err)
	}
	return nil
}

// DeleteBySource implements finance.Repository.
func (r *FinanceRepo) DeleteBySource(ctx context.Context, source finance.SourceType, sourceID id.ID) (int64, error) {
	sql, args, err := r.builder.Delete(financeTable).
		Where(squirrel.Eq{"source_type": source, "source_id": sourceID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("delete finance entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListBySource implements finance.Repository.
func (r *FinanceRepo) ListBySource(ctx context.Context, source finance.SourceType, sourceID id.ID) ([]finance.Entry, error) {
	sql, args, err := r.builder.Select(financeColumns...).
		From(financeTable).
		Where(squirrel.Eq{"source_type": source, "source_id": sourceID}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []finance.Entry
	if err := pgxscan.Select(ctx, r.q, &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select finance entries: %w", err)
	}
	return out, nil
}
