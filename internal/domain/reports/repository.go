package reports

import (
	"context"
)

// Repository provides the aggregate queries behind reports.
type Repository interface {
	Dashboard(ctx context.Context) (*Dashboard, error)
	LowStock(ctx context.Context, limit int) ([]LowStockItem, error)

	// Discrepancies returns products whose current_stock differs from the ledger sum.
	Discrepancies(ctx context.Context) ([]Discrepancy, error)
}
