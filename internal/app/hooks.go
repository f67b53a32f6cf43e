package app

import (
	"context"

	"stockledger/internal/domain/catalogs/product"
	"stockledger/pkg/logger"
)

// registerProductHooks attaches the catalog callbacks every backend shares.
func registerProductHooks(products *product.Service) {
	products.Hooks().OnAfterCreate(warnLowStock)
	products.Hooks().OnAfterUpdate(warnLowStock)
}

// warnLowStock flags a product saved at or below its reorder threshold.
// A zero threshold means the product is not tracked for reordering.
func warnLowStock(ctx context.Context, p *product.Product) error {
	if p.MinStockThreshold > 0 && p.IsLowStock() {
		logger.Warn(ctx, "product at or below minimum stock",
			"product_id", p.ID,
			"sku", p.SKU,
			"current_stock", p.CurrentStock,
			"min_stock_threshold", p.MinStockThreshold)
	}
	return nil
}
