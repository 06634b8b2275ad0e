package register_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/registers/stock"
)

func TestApplyDeltaQuery_GuardsInvariantInWhereClause(t *testing.T) {
	r := NewStockRepo(nil)
	productID := id.New()

	sql, args, err := r.applyDeltaQuery(productID, stock.Delta{
		Physical: types.NewQuantity(-3),
		Reserved: types.NewQuantity(-3),
	})
	require.NoError(t, err)

	assert.Contains(t, sql, "UPDATE products SET physical_stock = physical_stock + $1, reserved_stock = reserved_stock + $2")
	assert.Contains(t, sql, "reserved_stock + $4 >= 0")
	assert.Contains(t, sql, "physical_stock + $5 >= reserved_stock + $6")
	assert.Contains(t, sql, "RETURNING id, code, name, physical_stock, reserved_stock, reorder_level, updated_at")
	assert.Equal(t, []any{int64(-30000), int64(-30000), productID, int64(-30000), int64(-30000), int64(-30000)}, args)
}

func TestProductColumns(t *testing.T) {
	assert.Equal(t,
		[]string{"id", "code", "name", "physical_stock", "reserved_stock", "reorder_level", "updated_at"},
		productColumns)
	assert.Equal(t,
		[]string{"id", "product_id", "quantity", "reason", "reference_id", "note", "created_by", "created_at"},
		adjustmentColumns)
}
