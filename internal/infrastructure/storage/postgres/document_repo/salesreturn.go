package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/documents/salesreturn"
	"stockflow/internal/infrastructure/storage/postgres"
)

const (
	returnsTable     = "sales_returns"
	returnLinesTable = "sales_return_lines"
)

var (
	returnColumns     = postgres.ExtractDBColumns[salesreturn.Record]()
	returnLineColumns = postgres.ExtractDBColumns[salesreturn.Line]()
)

// ReturnRepo implements salesreturn.Repository.
type ReturnRepo struct {
	q       postgres.Querier
	builder squirrel.StatementBuilderType
}

var _ salesreturn.Repository = (*ReturnRepo)(nil)

// NewReturnRepo creates a sales return repository on q.
func NewReturnRepo(q postgres.Querier) *ReturnRepo {
	return &ReturnRepo{q: q, builder: newBuilder()}
}

// Create implements salesreturn.Repository.
func (r *ReturnRepo) Create(ctx context.Context, rec *salesreturn.Record) error {
	if err := insertHeader(ctx, r.q, returnsTable, rec, nil); err != nil {
		return err
	}
	return copyLines[salesreturn.Line](ctx, r.q, returnLinesTable, returnLineColumns, rec.Lines, nil)
}

// GetByID implements salesreturn.Repository.
func (r *ReturnRepo) GetByID(ctx context.Context, returnID id.ID) (*salesreturn.Record, error) {
	sql, args, err := r.builder.Select(returnColumns...).
		From(returnsTable).
		Where(squirrel.Eq{"id": returnID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rec salesreturn.Record
	if err := pgxscan.Get(ctx, r.q, &rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewReturnNotFound(returnID.String())
		}
		return nil, fmt.Errorf("get sales return: %w", err)
	}

	sql, args, err = r.builder.Select(returnLineColumns...).
		From(returnLinesTable).
		Where(squirrel.Eq{"return_id": returnID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.q, &rec.Lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select return lines: %w", err)
	}
	return &rec, nil
}

type returnedRow struct {
	SalesLineID id.ID          `db:"sales_line_id"`
	Quantity    types.Quantity `db:"quantity"`
}

func (r *ReturnRepo) returnedQuery(transactionID id.ID) (string, []any, error) {
	return r.builder.Select("l.sales_line_id", "SUM(l.quantity)::bigint AS quantity").
		From(returnLinesTable + " l").
		Join(returnsTable + " r ON r.id = l.return_id").
		Where(squirrel.Eq{"r.transaction_id": transactionID}).
		GroupBy("l.sales_line_id").
		ToSql()
}

// ReturnedBySalesLine implements salesreturn.Repository.
func (r *ReturnRepo) ReturnedBySalesLine(ctx context.Context, transactionID id.ID) (map[id.ID]types.Quantity, error) {
	sql, args, err := r.returnedQuery(transactionID)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []returnedRow
	if err := pgxscan.Select(ctx, r.q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("sum returned quantities: %w", err)
	}
	out := make(map[id.ID]types.Quantity, len(rows))
	for _, row := range rows {
		out[row.SalesLineID] = row.Quantity
	}
	return out, nil
}

// CountByTransaction implements salesreturn.Repository.
func (r *ReturnRepo) CountByTransaction(ctx context.Context, transactionID id.ID) (int, error) {
	sql, args, err := r.builder.Select("COUNT(*)").
		From(returnsTable).
		Where(squirrel.Eq{"transaction_id": transactionID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var n int
	if err := r.q.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count returns: %w", err)
	}
	return n, nil
}

// UpdateRefundStatus implements salesreturn.Repository.
func (r *ReturnRepo) UpdateRefundStatus(ctx context.Context, returnID id.ID, status salesreturn.RefundStatus) error {
	sql, args, err := r.builder.Update(returnsTable).
		Set("refund_status", status).
		Where(squirrel.Eq{"id": returnID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update refund status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewReturnNotFound(returnID.String())
	}
	return nil
}
