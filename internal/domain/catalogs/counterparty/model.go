// Package counterparty provides the Counterparty catalog: customers and
// suppliers with their receivable and store-credit balances.
package counterparty

import (
	"context"
	"strings"
	"time"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
)

// Kind defines the type of counterparty.
type Kind string

const (
	KindCustomer Kind = "customer"
	KindSupplier Kind = "supplier"
	KindBoth     Kind = "both"
)

// Counterparty represents a business partner.
type Counterparty struct {
	ID   id.ID  `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
	Kind Kind   `db:"kind" json:"kind"`

	// Balance is what the counterparty owes us, in base currency.
	Balance types.Money `db:"balance" json:"balance"`

	// CreditBalance is store credit (advance) we owe the counterparty, in base currency.
	CreditBalance types.Money `db:"credit_balance" json:"creditBalance"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// New creates a customer with zero balances.
func New(code, name string) *Counterparty {
	return &Counterparty{
		ID:            id.New(),
		Code:          code,
		Name:          name,
		Kind:          KindCustomer,
		Balance:       types.Zero(),
		CreditBalance: types.Zero(),
		CreatedAt:     time.Now().UTC(),
	}
}

// Validate implements entity.Validatable.
func (c *Counterparty) Validate(ctx context.Context) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	switch c.Kind {
	case KindCustomer, KindSupplier, KindBoth:
	default:
		return apperror.NewValidation("invalid counterparty kind").WithDetail("kind", c.Kind)
	}
	return nil
}
