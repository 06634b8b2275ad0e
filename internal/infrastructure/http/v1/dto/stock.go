package dto

import (
	"strings"

	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/registers/stock"
)

// CreateProductRequest registers a product with its opening stock.
type CreateProductRequest struct {
	Code          string         `json:"code" binding:"required,max=50"`
	Name          string         `json:"name" binding:"required,max=200"`
	PhysicalStock types.Quantity `json:"physicalStock" binding:"gte=0"`
	ReorderLevel  types.Quantity `json:"reorderLevel" binding:"gte=0"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateProductRequest) ToEntity() *stock.Product {
	return &stock.Product{
		ID:            id.New(),
		Code:          strings.TrimSpace(r.Code),
		Name:          strings.TrimSpace(r.Name),
		PhysicalStock: r.PhysicalStock,
		ReorderLevel:  r.ReorderLevel,
	}
}

// AdjustStockRequest applies a manual correction to physical stock.
type AdjustStockRequest struct {
	// Delta may be negative; zero is rejected by the ledger.
	Delta types.Quantity `json:"delta" binding:"required"`
	Note  string         `json:"note" binding:"max=500"`
}

// ProductStockResponse is the stock projection of a product.
type ProductStockResponse struct {
	ProductID     string         `json:"productId"`
	Code          string         `json:"code"`
	Name          string         `json:"name"`
	PhysicalStock types.Quantity `json:"physicalStock"`
	ReservedStock types.Quantity `json:"reservedStock"`
	Available     types.Quantity `json:"available"`
	ReorderLevel  types.Quantity `json:"reorderLevel"`
}

// FromProduct converts a product to its stock projection.
func FromProduct(p *stock.Product) ProductStockResponse {
	return ProductStockResponse{
		ProductID:     p.ID.String(),
		Code:          p.Code,
		Name:          p.Name,
		PhysicalStock: p.PhysicalStock,
		ReservedStock: p.ReservedStock,
		Available:     p.Available(),
		ReorderLevel:  p.ReorderLevel,
	}
}

// AdjustStockResponse is the adjusted product and its journal entry.
type AdjustStockResponse struct {
	Product    ProductStockResponse `json:"product"`
	Adjustment *stock.Adjustment    `json:"adjustment"`
}

// AdjustmentListResponse lists the adjustment journal of a product.
type AdjustmentListResponse struct {
	ProductID string             `json:"productId"`
	Items     []stock.Adjustment `json:"items"`
}
