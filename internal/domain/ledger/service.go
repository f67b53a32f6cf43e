package ledger

import (
	"context"

	"stockledger/internal/core/id"
)

// Service exposes read access to the ledger.
// Entries are written only by the validation engine.
type Service struct {
	repo Repository
}

// NewService creates a new ledger service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Query returns entries newest first. Limit defaults to 50 and is capped at 500.
func (s *Service) Query(ctx context.Context, q Query) ([]Entry, error) {
	q.Page = q.Page.Normalize()
	return s.repo.Query(ctx, q)
}

// SumByProduct returns the ledger balance of a product.
func (s *Service) SumByProduct(ctx context.Context, productID id.ID) (int64, error) {
	return s.repo.SumByProduct(ctx, productID)
}

// HasHistory reports whether the product has any ledger entry.
func (s *Service) HasHistory(ctx context.Context, productID id.ID) (bool, error) {
	return s.repo.HasHistory(ctx, productID)
}
