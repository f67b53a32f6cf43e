// Package product provides the Product catalog: the stock-keeping units whose
// current stock is maintained exclusively by the validation engine.
package product

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

// DefaultUnit is assigned when a product is created without a unit.
const DefaultUnit = "pcs"

// Product is a stock-keeping unit.
type Product struct {
	ID id.ID `db:"id" json:"id"`

	// SKU is unique and compared case-sensitively.
	SKU      string `db:"sku" json:"sku"`
	Name     string `db:"name" json:"name"`
	Category string `db:"category" json:"category"`
	Unit     string `db:"unit" json:"unit"`

	Price decimal.Decimal `db:"price" json:"price"`

	// CurrentStock always equals the sum of the product's ledger quantity changes.
	CurrentStock      int64 `db:"current_stock" json:"currentStock"`
	MinStockThreshold int64 `db:"min_stock_threshold" json:"minStockThreshold"`

	// Version for optimistic locking (incremented on each catalog update)
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// IsLowStock reports whether stock has dropped to or below the threshold.
func (p *Product) IsLowStock() bool {
	return p.CurrentStock <= p.MinStockThreshold
}

// Validate checks catalog invariants.
func (p *Product) Validate(ctx context.Context) error {
	if strings.TrimSpace(p.SKU) == "" {
		return apperror.NewValidation("sku is required").WithDetail("field", "sku")
	}
	if len(p.SKU) > 64 {
		return apperror.NewValidation("sku must be at most 64 characters").WithDetail("field", "sku")
	}
	if strings.TrimSpace(p.Name) == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if p.Price.IsNegative() {
		return apperror.NewValidation("price must not be negative").WithDetail("field", "price")
	}
	if p.MinStockThreshold < 0 {
		return apperror.NewValidation("minStockThreshold must not be negative").
			WithDetail("field", "minStockThreshold")
	}
	return nil
}

// Snapshot returns the audited attributes.
func (p *Product) Snapshot() map[string]any {
	return map[string]any{
		"sku":               p.SKU,
		"name":              p.Name,
		"category":          p.Category,
		"unit":              p.Unit,
		"price":             p.Price.String(),
		"minStockThreshold": p.MinStockThreshold,
	}
}

// CreateRequest holds the attributes of a new product.
type CreateRequest struct {
	SKU               string          `json:"sku" validate:"required,max=64"`
	Name              string          `json:"name" validate:"required,max=255"`
	Category          string          `json:"category" validate:"max=100"`
	Unit              string          `json:"unit" validate:"max=32"`
	Price             decimal.Decimal `json:"price"`
	MinStockThreshold int64           `json:"minStockThreshold" validate:"gte=0"`

	// InitialStock is posted as an opening ADJUSTMENT document.
	InitialStock int64 `json:"initialStock"`
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	SKU               *string          `json:"sku" validate:"omitempty,max=64"`
	Name              *string          `json:"name" validate:"omitempty,max=255"`
	Category          *string          `json:"category" validate:"omitempty,max=100"`
	Unit              *string          `json:"unit" validate:"omitempty,max=32"`
	Price             *decimal.Decimal `json:"price"`
	MinStockThreshold *int64           `json:"minStockThreshold"`

	// CurrentStock is accepted only while the product has no ledger history.
	CurrentStock *int64 `json:"currentStock"`

	// Version enables optimistic locking when set.
	Version *int `json:"version"`
}

// ListFilter narrows product listings.
type ListFilter struct {
	// Search matches name or SKU, case-insensitively.
	Search       string
	Category     string
	LowStockOnly bool
	domain.Page
}
