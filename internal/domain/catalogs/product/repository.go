package product

import (
	"context"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

// Repository defines the interface for Product persistence.
type Repository interface {
	// Create inserts a product. A taken SKU yields apperror.CodeDuplicate.
	Create(ctx context.Context, p *Product) error

	GetByID(ctx context.Context, productID id.ID) (*Product, error)
	GetBySKU(ctx context.Context, sku string) (*Product, error)

	// Update writes catalog attributes (never current_stock) guarded by p.Version.
	// On success p.Version is incremented.
	Update(ctx context.Context, p *Product) error

	Delete(ctx context.Context, productID id.ID) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Product], error)

	// IsReferenced reports whether any document item or ledger entry points at the product.
	IsReferenced(ctx context.Context, productID id.ID) (bool, error)

	// GetForUpdateBatch locks the given products in ascending id order and returns them.
	// Missing ids are absent from the result map.
	GetForUpdateBatch(ctx context.Context, productIDs []id.ID) (map[id.ID]*Product, error)

	// ApplyStockDelta adds delta to current_stock and returns the new value.
	// Only the validation engine calls it, inside its transaction.
	ApplyStockDelta(ctx context.Context, productID id.ID, delta int64) (int64, error)
}
