// Package document_repo provides PostgreSQL implementations for document
// repositories: sales transactions, delivery records and sales returns.
// Headers are inserted with squirrel and lines with COPY on the querier of
// one unit of work.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"stockflow/internal/core/apperror"
	"stockflow/internal/infrastructure/storage/postgres"
)

func newBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// insertHeader inserts the db-tagged fields of header plus extra columns.
func insertHeader(ctx context.Context, q postgres.Querier, table string, header any, extra map[string]any) error {
	data := postgres.StructToMap(header)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in %T", header)
	}
	for k, v := range extra {
		data[k] = v
	}

	sql, args, err := newBuilder().Insert(table).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		if constraint, dup := postgres.IsUniqueViolation(err); dup {
			return apperror.NewConflict("document already exists").
				WithDetail("table", table).
				WithDetail("constraint", constraint).
				WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// copyLines bulk-inserts rows built from items in column order.
func copyLines[T any](ctx context.Context, q postgres.Querier, table string, columns []string, items []T, extra func(*T) []any) error {
	rows := make([][]any, 0, len(items))
	for i := range items {
		row := postgres.ValuesFor(postgres.StructToMap(&items[i]), columns)
		if extra != nil {
			row = append(row, extra(&items[i])...)
		}
		rows = append(rows, row)
	}
	if _, err := postgres.CopyRows(ctx, q, table, columnsWith(columns, extra != nil), rows); err != nil {
		return err
	}
	return nil
}

// lineStatusColumn is appended to sales line columns on write. The status is
// derived from the counters on read, the stored copy serves filtering.
const lineStatusColumn = "delivery_status"

func columnsWith(cols []string, withStatus bool) []string {
	if !withStatus {
		return cols
	}
	out := make([]string, 0, len(cols)+1)
	out = append(out, cols...)
	return append(out, lineStatusColumn)
}
