package counterparty

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"stockflow/internal/core/apperror"
)

func TestCounterparty_Validate(t *testing.T) {
	c := New("C-1", "Acme")
	assert.NoError(t, c.Validate(context.Background()))
	assert.True(t, c.Balance.IsZero())

	c.Name = "  "
	assert.True(t, apperror.HasCode(c.Validate(context.Background()), apperror.CodeValidation))

	c.Name = "Acme"
	c.Kind = "partner"
	assert.Error(t, c.Validate(context.Background()))
}
