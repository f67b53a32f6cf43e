package memory

import (
	"cmp"
	"context"
	"slices"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/documents"
	"stockledger/internal/domain/reports"
)

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	s *Store
}

var _ reports.Repository = (*ReportRepo)(nil)

// Reports returns the report repository.
func (s *Store) Reports() *ReportRepo {
	return &ReportRepo{s: s}
}

func (r *ReportRepo) Dashboard(ctx context.Context) (*reports.Dashboard, error) {
	d := &reports.Dashboard{}
	err := r.s.read(ctx, func() error {
		for _, p := range r.s.products {
			d.TotalProducts++
			if p.IsLowStock() {
				d.LowStock++
			}
		}
		for _, doc := range r.s.documents {
			pending := !doc.Status.IsTerminal()
			switch {
			case doc.Type == documents.TypeReceipt && pending:
				d.PendingReceipts++
			case doc.Type == documents.TypeDelivery && pending:
				d.PendingDeliveries++
			case doc.Type == documents.TypeTransfer && doc.Status == documents.StatusWaiting:
				d.ScheduledTransfers++
			}
		}
		return nil
	})
	return d, err
}

func (r *ReportRepo) LowStock(ctx context.Context, limit int) ([]reports.LowStockItem, error) {
	var out []reports.LowStockItem
	err := r.s.read(ctx, func() error {
		for _, p := range r.s.products {
			if !p.IsLowStock() {
				continue
			}
			out = append(out, reports.LowStockItem{
				ProductID:         p.ID,
				SKU:               p.SKU,
				Name:              p.Name,
				CurrentStock:      p.CurrentStock,
				MinStockThreshold: p.MinStockThreshold,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b reports.LowStockItem) int {
		if c := cmp.Compare(a.CurrentStock, b.CurrentStock); c != 0 {
			return c
		}
		return cmp.Compare(a.SKU, b.SKU)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []reports.LowStockItem{}
	}
	return out, nil
}

func (r *ReportRepo) Discrepancies(ctx context.Context) ([]reports.Discrepancy, error) {
	var out []reports.Discrepancy
	err := r.s.read(ctx, func() error {
		sums := make(map[id.ID]int64, len(r.s.products))
		for _, e := range r.s.ledger {
			sums[e.ProductID] += e.QuantityChange
		}
		for _, p := range r.s.products {
			if p.CurrentStock != sums[p.ID] {
				out = append(out, reports.Discrepancy{
					ProductID:    p.ID,
					SKU:          p.SKU,
					CurrentStock: p.CurrentStock,
					LedgerSum:    sums[p.ID],
				})
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b reports.Discrepancy) int { return cmp.Compare(a.SKU, b.SKU) })
	return out, err
}
