package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalogs/product"
)

// ProductRepo implements product.Repository.
type ProductRepo struct {
	s *Store
}

var _ product.Repository = (*ProductRepo)(nil)

// Products returns the product repository.
func (s *Store) Products() *ProductRepo {
	return &ProductRepo{s: s}
}

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	return r.s.write(ctx, func() error {
		if r.skuTaken(p.SKU, p.ID) {
			return apperror.NewDuplicate("product", "sku", p.SKU)
		}
		cp := *p
		r.s.products[p.ID] = &cp
		return nil
	})
}

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	var out *product.Product
	err := r.s.read(ctx, func() error {
		p, ok := r.s.products[productID]
		if !ok {
			return apperror.NewUnknownEntity("product", productID.String())
		}
		cp := *p
		out = &cp
		return nil
	})
	return out, err
}

func (r *ProductRepo) GetBySKU(ctx context.Context, sku string) (*product.Product, error) {
	var out *product.Product
	err := r.s.read(ctx, func() error {
		for _, p := range r.s.products {
			if p.SKU == sku {
				cp := *p
				out = &cp
				return nil
			}
		}
		return apperror.NewUnknownEntity("product", sku)
	})
	return out, err
}

func (r *ProductRepo) Update(ctx context.Context, p *product.Product) error {
	return r.s.write(ctx, func() error {
		stored, ok := r.s.products[p.ID]
		if !ok {
			return apperror.NewUnknownEntity("product", p.ID.String())
		}
		if stored.Version != p.Version {
			return apperror.NewConcurrencyConflict("product", p.ID.String())
		}
		if r.skuTaken(p.SKU, p.ID) {
			return apperror.NewDuplicate("product", "sku", p.SKU)
		}

		stored.SKU = p.SKU
		stored.Name = p.Name
		stored.Category = p.Category
		stored.Unit = p.Unit
		stored.Price = p.Price
		stored.MinStockThreshold = p.MinStockThreshold
		stored.UpdatedAt = p.UpdatedAt
		stored.Version++
		p.Version = stored.Version
		return nil
	})
}

func (r *ProductRepo) Delete(ctx context.Context, productID id.ID) error {
	return r.s.write(ctx, func() error {
		if _, ok := r.s.products[productID]; !ok {
			return apperror.NewUnknownEntity("product", productID.String())
		}
		delete(r.s.products, productID)
		return nil
	})
}

func (r *ProductRepo) List(ctx context.Context, filter product.ListFilter) (domain.ListResult[*product.Product], error) {
	page := filter.Page.Normalize()
	result := domain.ListResult[*product.Product]{Items: []*product.Product{}, Limit: page.Limit, Offset: page.Offset}

	err := r.s.read(ctx, func() error {
		search := strings.ToLower(filter.Search)
		var matched []*product.Product
		for _, p := range r.s.products {
			if search != "" &&
				!strings.Contains(strings.ToLower(p.Name), search) &&
				!strings.Contains(strings.ToLower(p.SKU), search) {
				continue
			}
			if filter.Category != "" && p.Category != filter.Category {
				continue
			}
			if filter.LowStockOnly && !p.IsLowStock() {
				continue
			}
			cp := *p
			matched = append(matched, &cp)
		}

		slices.SortFunc(matched, func(a, b *product.Product) int {
			if c := cmp.Compare(a.Name, b.Name); c != 0 {
				return c
			}
			return id.Compare(a.ID, b.ID)
		})

		result.TotalCount = int64(len(matched))
		result.Items = paginate(matched, page)
		return nil
	})
	return result, err
}

func (r *ProductRepo) IsReferenced(ctx context.Context, productID id.ID) (bool, error) {
	referenced := false
	err := r.s.read(ctx, func() error {
		for _, items := range r.s.items {
			for _, item := range items {
				if item.ProductID == productID {
					referenced = true
					return nil
				}
			}
		}
		for _, e := range r.s.ledger {
			if e.ProductID == productID {
				referenced = true
				return nil
			}
		}
		return nil
	})
	return referenced, err
}

// GetForUpdateBatch returns copies; the store lock held by the transaction
// already excludes every other writer.
func (r *ProductRepo) GetForUpdateBatch(ctx context.Context, productIDs []id.ID) (map[id.ID]*product.Product, error) {
	out := make(map[id.ID]*product.Product, len(productIDs))
	err := r.s.read(ctx, func() error {
		for _, pid := range productIDs {
			if p, ok := r.s.products[pid]; ok {
				cp := *p
				out[pid] = &cp
			}
		}
		return nil
	})
	return out, err
}

func (r *ProductRepo) ApplyStockDelta(ctx context.Context, productID id.ID, delta int64) (int64, error) {
	var stock int64
	err := r.s.write(ctx, func() error {
		p, ok := r.s.products[productID]
		if !ok {
			return apperror.NewUnknownEntity("product", productID.String())
		}
		next := p.CurrentStock + delta
		if (delta > 0 && next < p.CurrentStock) || (delta < 0 && next > p.CurrentStock) {
			return apperror.NewInvalidQuantity("value out of range").
				WithDetail("product_id", productID.String())
		}
		p.CurrentStock = next
		p.UpdatedAt = time.Now().UTC()
		stock = next
		return nil
	})
	return stock, err
}

func (r *ProductRepo) skuTaken(sku string, self id.ID) bool {
	for _, p := range r.s.products {
		if p.SKU == sku && p.ID != self {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, page domain.Page) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	end := min(page.Offset+page.Limit, len(items))
	return items[page.Offset:end]
}
