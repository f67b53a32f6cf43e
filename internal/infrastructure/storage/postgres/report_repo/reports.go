// Package report_repo provides PostgreSQL implementations for report repositories.
package report_repo

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/domain/reports"
	"stockledger/internal/infrastructure/storage/postgres"
)

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	txm *postgres.TxManager
}

var _ reports.Repository = (*ReportRepo)(nil)

// NewReportRepo creates a new report repository.
func NewReportRepo(txm *postgres.TxManager) *ReportRepo {
	return &ReportRepo{txm: txm}
}

// Dashboard counts products and open documents in one statement.
func (r *ReportRepo) Dashboard(ctx context.Context) (*reports.Dashboard, error) {
	var d reports.Dashboard
	err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &d, `
		SELECT
			(SELECT COUNT(*) FROM products) AS total_products,
			(SELECT COUNT(*) FROM products WHERE current_stock <= min_stock_threshold) AS low_stock,
			COUNT(*) FILTER (WHERE type = 'RECEIPT' AND status NOT IN ('DONE', 'CANCELED')) AS pending_receipts,
			COUNT(*) FILTER (WHERE type = 'DELIVERY' AND status NOT IN ('DONE', 'CANCELED')) AS pending_deliveries,
			COUNT(*) FILTER (WHERE type = 'TRANSFER' AND status = 'WAITING') AS scheduled_transfers
		FROM documents
	`)
	if err != nil {
		return nil, postgres.MapError(fmt.Errorf("dashboard: %w", err))
	}
	return &d, nil
}

func (r *ReportRepo) LowStock(ctx context.Context, limit int) ([]reports.LowStockItem, error) {
	items := []reports.LowStockItem{}
	err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, `
		SELECT id, sku, name, current_stock, min_stock_threshold
		FROM products
		WHERE current_stock <= min_stock_threshold
		ORDER BY current_stock, sku
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, postgres.MapError(fmt.Errorf("low stock: %w", err))
	}
	return items, nil
}

// Discrepancies compares every product's stock with its ledger sum.
func (r *ReportRepo) Discrepancies(ctx context.Context) ([]reports.Discrepancy, error) {
	out := []reports.Discrepancy{}
	err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, `
		SELECT p.id, p.sku, p.current_stock, COALESCE(l.total, 0)::BIGINT AS ledger_sum
		FROM products p
		LEFT JOIN (
			SELECT product_id, SUM(quantity_change) AS total
			FROM ledger
			GROUP BY product_id
		) l ON l.product_id = p.id
		WHERE p.current_stock <> COALESCE(l.total, 0)
		ORDER BY p.sku
	`)
	if err != nil {
		return nil, postgres.MapError(fmt.Errorf("discrepancies: %w", err))
	}
	return out, nil
}
