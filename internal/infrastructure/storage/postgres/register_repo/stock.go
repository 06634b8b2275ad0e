// Package register_repo provides PostgreSQL implementations of the stock
// ledger and the finance ledger. Repositories are bound to the querier of
// one unit of work.
package register_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/domain/registers/stock"
	"stockflow/internal/infrastructure/storage/postgres"
)

const (
	productsTable    = "products"
	adjustmentsTable = "stock_adjustments"
)

var (
	productColumns    = postgres.ExtractDBColumns[stock.Product]()
	adjustmentColumns = postgres.ExtractDBColumns[stock.Adjustment]()
)

// StockRepo implements stock.Repository.
type StockRepo struct {
	q       postgres.Querier
	builder squirrel.StatementBuilderType
}

var _ stock.Repository = (*StockRepo)(nil)

// NewStockRepo creates a stock repository on q.
func NewStockRepo(q postgres.Querier) *StockRepo {
	return &StockRepo{
		q:       q,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *StockRepo) getProduct(ctx context.Context, productID id.ID, lock bool) (*stock.Product, error) {
	q := r.builder.Select(productColumns...).
		From(productsTable).
		Where(squirrel.Eq{"id": productID})
	if lock {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p stock.Product
	if err := pgxscan.Get(ctx, r.q, &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewProductNotFound(productID.String())
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// GetProduct implements stock.Repository.
func (r *StockRepo) GetProduct(ctx context.Context, productID id.ID) (*stock.Product, error) {
	return r.getProduct(ctx, productID, false)
}

// GetProductForUpdate implements stock.Repository.
func (r *StockRepo) GetProductForUpdate(ctx context.Context, productID id.ID) (*stock.Product, error) {
	return r.getProduct(ctx, productID, true)
}

// applyDeltaQuery adds d only where the result keeps 0 <= reserved <= physical.
func (r *StockRepo) applyDeltaQuery(productID id.ID, d stock.Delta) (string, []any, error) {
	phys := d.Physical.Int64Scaled()
	res := d.Reserved.Int64Scaled()
	return r.builder.Update(productsTable).
		Set("physical_stock", squirrel.Expr("physical_stock + ?", phys)).
		Set("reserved_stock", squirrel.Expr("reserved_stock + ?", res)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": productID}).
		Where(squirrel.Expr("reserved_stock + ? >= 0", res)).
		Where(squirrel.Expr("physical_stock + ? >= reserved_stock + ?", phys, res)).
		Suffix("RETURNING " + strings.Join(productColumns, ", ")).
		ToSql()
}

// ApplyDelta implements stock.Repository.
func (r *StockRepo) ApplyDelta(ctx context.Context, productID id.ID, d stock.Delta) (*stock.Product, error) {
	sql, args, err := r.applyDeltaQuery(productID, d)
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	var p stock.Product
	err = pgxscan.Get(ctx, r.q, &p, sql, args...)
	if err == nil {
		return &p, nil
	}
	if !pgxscan.NotFound(err) {
		return nil, fmt.Errorf("apply stock delta: %w", err)
	}

	// No row: either the product is gone or the guard refused the update.
	current, getErr := r.GetProduct(ctx, productID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, apperror.NewConsistencyViolation("stock update refused").
		WithDetail("product_id", productID.String()).
		WithDetail("physical", (current.PhysicalStock + d.Physical).Float64()).
		WithDetail("reserved", (current.ReservedStock + d.Reserved).Float64())
}

// CreateProduct implements stock.Repository.
func (r *StockRepo) CreateProduct(ctx context.Context, p *stock.Product) error {
	if id.IsNil(p.ID) {
		p.ID = id.New()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}

	sql, args, err := r.builder.Insert(productsTable).
		SetMap(postgres.StructToMap(p)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.q.Exec(ctx, sql, args...); err != nil {
		if _, dup := postgres.IsUniqueViolation(err); dup {
			return apperror.NewConflict("product code already exists").
				WithDetail("code", p.Code).
				WithCause(err)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// InsertAdjustment implements stock.Repository.
func (r *StockRepo) InsertAdjustment(ctx context.Context, a *stock.Adjustment) error {
	if id.IsNil(a.ID) {
		a.ID = id.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	m := postgres.StructToMap(a)
	sql, args, err := r.builder.Insert(adjustmentsTable).
		Columns(adjustmentColumns...).
		Values(postgres.ValuesFor(m, adjustmentColumns)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert adjustment: %w", err)
	}
	return nil
}

// ListAdjustments implements stock.Repository.
func (r *StockRepo) ListAdjustments(ctx context.Context, productID id.ID, limit int) ([]stock.Adjustment, error) {
	q := r.builder.Select(adjustmentColumns...).
		From(adjustmentsTable).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []stock.Adjustment
	if err := pgxscan.Select(ctx, r.q, &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select adjustments: %w", err)
	}
	return out, nil
}
