package reports

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/domain"
	"stockledger/pkg/logger"
)

// Service provides report generation operations.
type Service struct {
	repo Repository
}

// NewService creates a new reports service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Dashboard returns the headline counters.
//
// Pending receipts and deliveries are documents of that type not yet DONE or
// CANCELED; scheduled transfers are TRANSFER documents in WAITING.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	d, err := s.repo.Dashboard(ctx)
	if err != nil {
		return nil, fmt.Errorf("get dashboard: %w", err)
	}
	d.GeneratedAt = time.Now().UTC()
	return d, nil
}

// LowStock lists products at or below their threshold, lowest stock first.
func (s *Service) LowStock(ctx context.Context, limit int) ([]LowStockItem, error) {
	page := domain.Page{Limit: limit}.Normalize()
	items, err := s.repo.LowStock(ctx, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("get low stock: %w", err)
	}
	return items, nil
}

// Reconcile compares every product's current stock with its ledger sum.
// A consistent store always yields no discrepancies.
func (s *Service) Reconcile(ctx context.Context) (*Reconciliation, error) {
	discrepancies, err := s.repo.Discrepancies(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	if discrepancies == nil {
		discrepancies = []Discrepancy{}
	}

	for _, d := range discrepancies {
		logger.Error(ctx, "stock drifted from ledger",
			"product_id", d.ProductID,
			"sku", d.SKU,
			"current_stock", d.CurrentStock,
			"ledger_sum", d.LedgerSum)
	}

	return &Reconciliation{
		CheckedAt:     time.Now().UTC(),
		Consistent:    len(discrepancies) == 0,
		Discrepancies: discrepancies,
	}, nil
}
