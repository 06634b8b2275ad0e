package document_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/core/id"
)

func TestSalesColumns_SkipDerivedFields(t *testing.T) {
	assert.NotContains(t, salesColumns, "delivery_status")
	assert.NotContains(t, salesColumns, "lines")
	assert.Equal(t, []string{"id", "created_at", "created_by", "number", "date", "comment"}, salesColumns[:6])
	assert.Contains(t, salesLineColumns, "quantity_cancelled")
}

func TestColumnsWith_AppendsStatus(t *testing.T) {
	cols := []string{"id", "quantity"}
	assert.Equal(t, []string{"id", "quantity", "delivery_status"}, columnsWith(cols, true))
	assert.Equal(t, cols, columnsWith(cols, false))
	assert.Len(t, cols, 2)
}

func TestSalesHeaderQuery_LocksForUpdate(t *testing.T) {
	r := NewSalesRepo(nil)
	txID := id.New()

	sql, args, err := r.headerQuery(txID, true).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM sales_transactions WHERE id = $1 FOR UPDATE")
	assert.Equal(t, []any{txID}, args)

	sql, _, err = r.linesQuery(txID, false).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "ORDER BY line_no")
	assert.NotContains(t, sql, "FOR UPDATE")
}

func TestReturnedQuery_SumsPerSalesLine(t *testing.T) {
	r := NewReturnRepo(nil)
	txID := id.New()

	sql, args, err := r.returnedQuery(txID)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT l.sales_line_id, SUM(l.quantity)::bigint AS quantity FROM sales_return_lines l "+
			"JOIN sales_returns r ON r.id = l.return_id WHERE r.transaction_id = $1 GROUP BY l.sales_line_id",
		sql)
	assert.Equal(t, []any{txID}, args)
}
