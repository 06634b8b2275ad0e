package dto

import (
	"strings"

	"stockflow/internal/domain/catalogs/counterparty"
)

// CreateCounterpartyRequest is the request body for creating a counterparty.
type CreateCounterpartyRequest struct {
	Code string `json:"code" binding:"max=50"`
	Name string `json:"name" binding:"required,max=200"`
	Kind string `json:"kind" binding:"omitempty,oneof=customer supplier both"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateCounterpartyRequest) ToEntity() *counterparty.Counterparty {
	cp := counterparty.New(strings.TrimSpace(r.Code), strings.TrimSpace(r.Name))
	if r.Kind != "" {
		cp.Kind = counterparty.Kind(r.Kind)
	}
	return cp
}
