package memory

import (
	"context"
	"slices"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	s *Store
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// Ledger returns the ledger repository.
func (s *Store) Ledger() *LedgerRepo {
	return &LedgerRepo{s: s}
}

func (r *LedgerRepo) Append(ctx context.Context, entries []ledger.Entry) error {
	return r.s.write(ctx, func() error {
		r.s.ledger = append(r.s.ledger, entries...)
		return nil
	})
}

func (r *LedgerRepo) Query(ctx context.Context, q ledger.Query) ([]ledger.Entry, error) {
	page := q.Page.Normalize()
	var matched []ledger.Entry
	err := r.s.read(ctx, func() error {
		for _, e := range r.s.ledger {
			if q.ProductID != nil && e.ProductID != *q.ProductID {
				continue
			}
			if q.DocumentID != nil && e.DocumentID != *q.DocumentID {
				continue
			}
			if q.Since != nil && e.CreatedAt.Before(*q.Since) {
				continue
			}
			matched = append(matched, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(matched, func(a, b ledger.Entry) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return id.Compare(b.ID, a.ID)
	})
	return paginate(matched, page), nil
}

func (r *LedgerRepo) SumByProduct(ctx context.Context, productID id.ID) (int64, error) {
	var sum int64
	err := r.s.read(ctx, func() error {
		for _, e := range r.s.ledger {
			if e.ProductID == productID {
				sum += e.QuantityChange
			}
		}
		return nil
	})
	return sum, err
}

func (r *LedgerRepo) HasHistory(ctx context.Context, productID id.ID) (bool, error) {
	found := false
	err := r.s.read(ctx, func() error {
		found = slices.ContainsFunc(r.s.ledger, func(e ledger.Entry) bool { return e.ProductID == productID })
		return nil
	})
	return found, err
}
