// Package catalog_repo provides PostgreSQL implementations for catalog repositories.
package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/catalogs/counterparty"
	"stockflow/internal/infrastructure/storage/postgres"
)

const counterpartiesTable = "counterparties"

var counterpartyColumns = postgres.ExtractDBColumns[counterparty.Counterparty]()

// CounterpartyRepo implements counterparty.Repository.
type CounterpartyRepo struct {
	q       postgres.Querier
	builder squirrel.StatementBuilderType
}

var _ counterparty.Repository = (*CounterpartyRepo)(nil)

// NewCounterpartyRepo creates a counterparty repository on q.
func NewCounterpartyRepo(q postgres.Querier) *CounterpartyRepo {
	return &CounterpartyRepo{
		q:       q,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID implements counterparty.Repository.
func (r *CounterpartyRepo) GetByID(ctx context.Context, counterpartyID id.ID) (*counterparty.Counterparty, error) {
	sql, args, err := r.builder.Select(counterpartyColumns...).
		From(counterpartiesTable).
		Where(squirrel.Eq{"id": counterpartyID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var c counterparty.Counterparty
	if err := pgxscan.Get(ctx, r.q, &c, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewCounterpartyNotFound(counterpartyID.String())
		}
		return nil, fmt.Errorf("get counterparty: %w", err)
	}
	return &c, nil
}

// Create implements counterparty.Repository.
func (r *CounterpartyRepo) Create(ctx context.Context, c *counterparty.Counterparty) error {
	if id.IsNil(c.ID) {
		c.ID = id.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	sql, args, err := r.builder.Insert(counterpartiesTable).
		SetMap(postgres.StructToMap(c)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.q.Exec(ctx, sql, args...); err != nil {
		if _, dup := postgres.IsUniqueViolation(err); dup {
			return apperror.NewConflict("counterparty code already exists").
				WithDetail("code", c.Code).
				WithCause(err)
		}
		return fmt.Errorf("insert counterparty: %w", err)
	}
	return nil
}

// AdjustBalance implements counterparty.Repository.
func (r *CounterpartyRepo) AdjustBalance(ctx context.Context, counterpartyID id.ID, delta types.Money) error {
	return r.adjust(ctx, "balance", counterpartyID, delta)
}

// AdjustCredit implements counterparty.Repository.
func (r *CounterpartyRepo) AdjustCredit(ctx context.Context, counterpartyID id.ID, delta types.Money) error {
	return r.adjust(ctx, "credit_balance", counterpartyID, delta)
}

func (r *CounterpartyRepo) adjust(ctx context.Context, column string, counterpartyID id.ID, delta types.Money) error {
	sql, args, err := r.builder.Update(counterpartiesTable).
		Set(column, squirrel.Expr(column+" + ?", delta)).
		Where(squirrel.Eq{"id": counterpartyID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("adjust %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewCounterpartyNotFound(counterpartyID.String())
	}
	return nil
}
