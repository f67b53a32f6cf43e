// Package ledger provides the append-only stock movement journal.
// Every entry ties one applied document item to one product stock change.
package ledger

import (
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/documents"
)

// Entry is an immutable ledger record.
type Entry struct {
	ID             id.ID          `db:"id" json:"id"`
	ProductID      id.ID          `db:"product_id" json:"productId"`
	QuantityChange int64          `db:"quantity_change" json:"quantityChange"`
	Type           documents.Type `db:"type" json:"type"`
	Reference      string         `db:"reference" json:"reference"`
	DocumentID     id.ID          `db:"document_id" json:"documentId"`
	ItemID         id.ID          `db:"item_id" json:"itemId"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
}

// NewEntry builds the entry for an applied item.
func NewEntry(doc *documents.Document, item documents.Item, delta int64, at time.Time) Entry {
	return Entry{
		ID:             id.New(),
		ProductID:      item.ProductID,
		QuantityChange: delta,
		Type:           doc.Type,
		Reference:      doc.Reference,
		DocumentID:     doc.ID,
		ItemID:         item.ID,
		CreatedAt:      at,
	}
}

// Query selects ledger entries. Nil fields are not filtered on.
type Query struct {
	ProductID  *id.ID
	DocumentID *id.ID
	Since      *time.Time
	domain.Page
}
