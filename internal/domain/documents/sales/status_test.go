package sales

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/internal/core/types"
)

func q(units int64) types.Quantity { return types.NewQuantity(units) }

func line(qty, delivered, cancelled int64) Line {
	return Line{Quantity: q(qty), QuantityDelivered: q(delivered), QuantityCancelled: q(cancelled)}
}

func TestLineStatus(t *testing.T) {
	tests := []struct {
		name                      string
		qty, delivered, cancelled int64
		want                      DeliveryStatus
	}{
		{"untouched", 30, 0, 0, StatusNotTaken},
		{"partial", 30, 10, 0, StatusPartiallyTaken},
		{"complete", 30, 30, 0, StatusTaken},
		{"cancelled rest", 30, 10, 20, StatusTaken},
		{"cancelled only part", 30, 0, 10, StatusNotTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LineStatus(q(tt.qty), q(tt.delivered), q(tt.cancelled)))
		})
	}
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name  string
		quote bool
		lines []Line
		want  DeliveryStatus
	}{
		{"nothing delivered", false, []Line{line(5, 0, 0), line(3, 0, 0)}, StatusNotTaken},
		{"one line started", false, []Line{line(5, 1, 0), line(3, 0, 0)}, StatusPartiallyTaken},
		{"one line complete", false, []Line{line(5, 5, 0), line(3, 0, 0)}, StatusPartiallyTaken},
		{"all complete", false, []Line{line(5, 5, 0), line(3, 3, 0)}, StatusTaken},
		{"quotation", true, []Line{line(5, 0, 0)}, StatusTaken},
		{"no lines", false, nil, StatusNotTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.quote, tt.lines))
		})
	}
}

func TestDeliveryStatus_CanAdvanceTo(t *testing.T) {
	assert.True(t, StatusNotTaken.CanAdvanceTo(StatusPartiallyTaken))
	assert.True(t, StatusPartiallyTaken.CanAdvanceTo(StatusPartiallyTaken))
	assert.True(t, StatusPartiallyTaken.CanAdvanceTo(StatusTaken))
	assert.False(t, StatusTaken.CanAdvanceTo(StatusPartiallyTaken))
	assert.False(t, DeliveryStatus(0).CanAdvanceTo(StatusTaken))
}

func TestDeliveryStatus_Text(t *testing.T) {
	for _, in := range []string{"partially_taken", "Partially Taken", "PARTIALLY-TAKEN"} {
		got, err := ParseDeliveryStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, StatusPartiallyTaken, got)
	}

	_, err := ParseDeliveryStatus("shipped")
	assert.Error(t, err)

	b, err := json.Marshal(struct {
		S DeliveryStatus `json:"s"`
	}{StatusTaken})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"taken"}`, string(b))

	_, err = DeliveryStatus(0).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "Not Taken", StatusNotTaken.Label())
}

func TestTransaction_RecomputeStatus(t *testing.T) {
	tr := &Transaction{Lines: []Line{line(30, 10, 0)}}

	assert.Equal(t, StatusPartiallyTaken, tr.RecomputeStatus())
	assert.Equal(t, StatusPartiallyTaken, tr.Lines[0].DeliveryStatus)
	assert.Equal(t, q(20), tr.Lines[0].Remaining())
}
