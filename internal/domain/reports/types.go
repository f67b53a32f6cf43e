// Package reports provides read-only views over products, documents and the ledger.
package reports

import (
	"time"

	"stockledger/internal/core/id"
)

// Dashboard holds the headline counters.
type Dashboard struct {
	TotalProducts      int64 `db:"total_products" json:"totalProducts"`
	LowStock           int64 `db:"low_stock" json:"lowStock"`
	PendingReceipts    int64 `db:"pending_receipts" json:"pendingReceipts"`
	PendingDeliveries  int64 `db:"pending_deliveries" json:"pendingDeliveries"`
	ScheduledTransfers int64 `db:"scheduled_transfers" json:"scheduledTransfers"`

	GeneratedAt time.Time `db:"-" json:"generatedAt"`
}

// LowStockItem is a product at or below its threshold.
type LowStockItem struct {
	ProductID         id.ID  `db:"id" json:"productId"`
	SKU               string `db:"sku" json:"sku"`
	Name              string `db:"name" json:"name"`
	CurrentStock      int64  `db:"current_stock" json:"currentStock"`
	MinStockThreshold int64  `db:"min_stock_threshold" json:"minStockThreshold"`
}

// Discrepancy is a product whose current stock differs from its ledger sum.
type Discrepancy struct {
	ProductID    id.ID  `db:"id" json:"productId"`
	SKU          string `db:"sku" json:"sku"`
	CurrentStock int64  `db:"current_stock" json:"currentStock"`
	LedgerSum    int64  `db:"ledger_sum" json:"ledgerSum"`
}

// Difference is CurrentStock minus LedgerSum.
func (d Discrepancy) Difference() int64 {
	return d.CurrentStock - d.LedgerSum
}

// Reconciliation is the result of comparing every product with the ledger.
type Reconciliation struct {
	CheckedAt     time.Time     `json:"checkedAt"`
	Consistent    bool          `json:"consistent"`
	Discrepancies []Discrepancy `json:"discrepancies"`
}
