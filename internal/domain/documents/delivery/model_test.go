package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stockflow/internal/core/types"
)

func TestProRatedValue(t *testing.T) {
	total := types.MustMoney("63.68")

	assert.Equal(t, "21.23", ProRatedValue(total, types.NewQuantity(3), types.NewQuantity(1)).StringFixed(2))
	assert.Equal(t, "63.68", ProRatedValue(total, types.NewQuantity(3), types.NewQuantity(3)).StringFixed(2))
	assert.True(t, ProRatedValue(total, 0, types.NewQuantity(1)).IsZero())
}

func TestProRatedValue_PartsAddUp(t *testing.T) {
	total := types.MustMoney("100")
	lineQty := types.NewQuantity(4)

	first := ProRatedValue(total, lineQty, types.NewQuantity(1))
	rest := ProRatedValue(total, lineQty, types.NewQuantity(3))

	assert.Equal(t, "100.00", first.Add(rest).StringFixed(2))
}
