package documents

import (
	"context"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalogs/product"
)

// Repository defines the interface for document persistence.
type Repository interface {
	// Create inserts the document header. A taken reference yields apperror.CodeDuplicate.
	Create(ctx context.Context, doc *Document) error

	// GetByID returns the header without items.
	GetByID(ctx context.Context, docID id.ID) (*Document, error)

	// GetForUpdate returns the header and holds an exclusive row lock until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, docID id.ID) (*Document, error)

	// UpdateStatus writes status, validated_at and updated_at guarded by doc.Version.
	// On success doc.Version is incremented.
	UpdateStatus(ctx context.Context, doc *Document) error

	// Delete removes the document; items cascade.
	Delete(ctx context.Context, docID id.ID) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Document], error)

	ExistsByReference(ctx context.Context, reference string) (bool, error)

	// AddItem appends a line. LineNo is assigned by the repository.
	AddItem(ctx context.Context, item *Item) error
	RemoveItem(ctx context.Context, docID, itemID id.ID) error

	// GetItems returns the lines ordered by line number.
	GetItems(ctx context.Context, docID id.ID) ([]Item, error)
}

// ProductLookup resolves product ids referenced by items.
// product.Repository satisfies it.
type ProductLookup interface {
	GetByID(ctx context.Context, productID id.ID) (*product.Product, error)
}
