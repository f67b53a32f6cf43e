package memory

import (
	"context"
	"slices"
	"strings"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/documents"
)

// DocumentRepo implements documents.Repository.
type DocumentRepo struct {
	s *Store
}

var _ documents.Repository = (*DocumentRepo)(nil)

// Documents returns the document repository.
func (s *Store) Documents() *DocumentRepo {
	return &DocumentRepo{s: s}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *documents.Document) error {
	return r.s.write(ctx, func() error {
		for _, d := range r.s.documents {
			if d.Reference == doc.Reference {
				return apperror.NewDuplicate("document", "reference", doc.Reference)
			}
		}
		r.s.documents[doc.ID] = copyDocument(doc)
		return nil
	})
}

func (r *DocumentRepo) GetByID(ctx context.Context, docID id.ID) (*documents.Document, error) {
	var out *documents.Document
	err := r.s.read(ctx, func() error {
		d, ok := r.s.documents[docID]
		if !ok {
			return apperror.NewUnknownEntity("document", docID.String())
		}
		out = copyDocument(d)
		return nil
	})
	return out, err
}

// GetForUpdate is GetByID; the transaction already holds the store lock.
func (r *DocumentRepo) GetForUpdate(ctx context.Context, docID id.ID) (*documents.Document, error) {
	return r.GetByID(ctx, docID)
}

func (r *DocumentRepo) UpdateStatus(ctx context.Context, doc *documents.Document) error {
	return r.s.write(ctx, func() error {
		stored, ok := r.s.documents[doc.ID]
		if !ok {
			return apperror.NewUnknownEntity("document", doc.ID.String())
		}
		if stored.Version != doc.Version {
			return apperror.NewConcurrencyConflict("document", doc.ID.String())
		}
		stored.Status = doc.Status
		stored.ValidatedAt = doc.ValidatedAt
		stored.UpdatedAt = doc.UpdatedAt
		stored.Version++
		doc.Version = stored.Version
		return nil
	})
}

func (r *DocumentRepo) Delete(ctx context.Context, docID id.ID) error {
	return r.s.write(ctx, func() error {
		if _, ok := r.s.documents[docID]; !ok {
			return apperror.NewUnknownEntity("document", docID.String())
		}
		delete(r.s.documents, docID)
		delete(r.s.items, docID)
		return nil
	})
}

func (r *DocumentRepo) List(ctx context.Context, filter documents.ListFilter) (domain.ListResult[*documents.Document], error) {
	page := filter.Page.Normalize()
	result := domain.ListResult[*documents.Document]{Items: []*documents.Document{}, Limit: page.Limit, Offset: page.Offset}

	err := r.s.read(ctx, func() error {
		search := strings.ToLower(filter.Search)
		var matched []*documents.Document
		for _, d := range r.s.documents {
			if filter.Type != "" && d.Type != filter.Type {
				continue
			}
			if filter.Status != "" && d.Status != filter.Status {
				continue
			}
			if search != "" && !strings.Contains(strings.ToLower(d.Reference), search) {
				continue
			}
			matched = append(matched, copyDocument(d))
		}

		slices.SortFunc(matched, func(a, b *documents.Document) int {
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
			return id.Compare(b.ID, a.ID)
		})

		result.TotalCount = int64(len(matched))
		result.Items = paginate(matched, page)
		return nil
	})
	return result, err
}

func (r *DocumentRepo) ExistsByReference(ctx context.Context, reference string) (bool, error) {
	exists := false
	err := r.s.read(ctx, func() error {
		for _, d := range r.s.documents {
			if d.Reference == reference {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func (r *DocumentRepo) AddItem(ctx context.Context, item *documents.Item) error {
	return r.s.write(ctx, func() error {
		if _, ok := r.s.documents[item.DocumentID]; !ok {
			return apperror.NewUnknownEntity("document", item.DocumentID.String())
		}
		if _, ok := r.s.products[item.ProductID]; !ok {
			return apperror.NewUnknownEntity("product", item.ProductID.String())
		}

		lineNo := 0
		for _, it := range r.s.items[item.DocumentID] {
			lineNo = max(lineNo, it.LineNo)
		}
		item.LineNo = lineNo + 1
		r.s.items[item.DocumentID] = append(r.s.items[item.DocumentID], *item)
		return nil
	})
}

func (r *DocumentRepo) RemoveItem(ctx context.Context, docID, itemID id.ID) error {
	return r.s.write(ctx, func() error {
		items := r.s.items[docID]
		i := slices.IndexFunc(items, func(it documents.Item) bool { return it.ID == itemID })
		if i < 0 {
			return apperror.NewUnknownEntity("document item", itemID.String())
		}
		r.s.items[docID] = slices.Delete(slices.Clone(items), i, i+1)
		return nil
	})
}

func (r *DocumentRepo) GetItems(ctx context.Context, docID id.ID) ([]documents.Item, error) {
	var out []documents.Item
	err := r.s.read(ctx, func() error {
		out = slices.Clone(r.s.items[docID])
		return nil
	})
	if out == nil {
		out = []documents.Item{}
	}
	slices.SortFunc(out, func(a, b documents.Item) int { return a.LineNo - b.LineNo })
	return out, err
}
