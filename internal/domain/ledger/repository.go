package ledger

import (
	"context"

	"stockledger/internal/core/id"
)

// Repository persists ledger entries. It has no update or delete.
type Repository interface {
	// Append inserts entries. It must run inside a transaction.
	Append(ctx context.Context, entries []Entry) error

	// Query returns entries newest first (created_at DESC, id DESC).
	Query(ctx context.Context, q Query) ([]Entry, error)

	// SumByProduct returns the sum of quantity changes for the product.
	SumByProduct(ctx context.Context, productID id.ID) (int64, error)

	HasHistory(ctx context.Context, productID id.ID) (bool, error)
}
