package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"stockledger/internal/domain/catalogs/product"
)

// CreateProductRequest is the request body for creating a product.
type CreateProductRequest struct {
	SKU               string          `json:"sku" binding:"required"`
	Name              string          `json:"name" binding:"required"`
	Category          string          `json:"category"`
	Unit              string          `json:"unit"`
	Price             decimal.Decimal `json:"price"`
	MinStockThreshold int64           `json:"minStockThreshold"`
	InitialStock      int64           `json:"initialStock"`
}

// ToDomain converts the DTO into a service request.
func (r *CreateProductRequest) ToDomain() product.CreateRequest {
	return product.CreateRequest{
		SKU:               r.SKU,
		Name:              r.Name,
		Category:          r.Category,
		Unit:              r.Unit,
		Price:             r.Price,
		MinStockThreshold: r.MinStockThreshold,
		InitialStock:      r.InitialStock,
	}
}

// UpdateProductRequest is a partial update. Omitted fields are left unchanged.
type UpdateProductRequest struct {
	SKU               *string          `json:"sku"`
	Name              *string          `json:"name"`
	Category          *string          `json:"category"`
	Unit              *string          `json:"unit"`
	Price             *decimal.Decimal `json:"price"`
	MinStockThreshold *int64           `json:"minStockThreshold"`
	CurrentStock      *int64           `json:"currentStock"`
	Version           *int             `json:"version"`
}

// ToDomain converts the DTO into a service request.
func (r *UpdateProductRequest) ToDomain() product.UpdateRequest {
	return product.UpdateRequest{
		SKU:               r.SKU,
		Name:              r.Name,
		Category:          r.Category,
		Unit:              r.Unit,
		Price:             r.Price,
		MinStockThreshold: r.MinStockThreshold,
		CurrentStock:      r.CurrentStock,
		Version:           r.Version,
	}
}

// ProductListQuery holds GET /products query parameters.
type ProductListQuery struct {
	Search       string `form:"search"`
	Category     string `form:"category"`
	LowStockOnly bool   `form:"lowStock"`
	PageQuery
}

// ToDomain converts the query into a list filter.
func (q ProductListQuery) ToDomain() product.ListFilter {
	return product.ListFilter{
		Search:       q.Search,
		Category:     q.Category,
		LowStockOnly: q.LowStockOnly,
		Page:         q.Page(),
	}
}

// ProductResponse is the API representation of a product.
type ProductResponse struct {
	ID                string          `json:"id"`
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	Unit              string          `json:"unit"`
	Price             decimal.Decimal `json:"price"`
	CurrentStock      int64           `json:"currentStock"`
	MinStockThreshold int64           `json:"minStockThreshold"`
	LowStock          bool            `json:"lowStock"`
	Version           int             `json:"version"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// FromProduct maps a product.
func FromProduct(p *product.Product) ProductResponse {
	return ProductResponse{
		ID:                p.ID.String(),
		SKU:               p.SKU,
		Name:              p.Name,
		Category:          p.Category,
		Unit:              p.Unit,
		Price:             p.Price,
		CurrentStock:      p.CurrentStock,
		MinStockThreshold: p.MinStockThreshold,
		LowStock:          p.IsLowStock(),
		Version:           p.Version,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}
