// Package catalog_repo provides PostgreSQL implementations for catalog repositories.
package catalog_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/infrastructure/storage/postgres"
)

const productTable = "products"

var productColumns = []string{
	"id", "sku", "name", "category", "unit", "price",
	"current_stock", "min_stock_threshold", "version", "created_at", "updated_at",
}

// ProductRepo implements product.Repository.
type ProductRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ product.Repository = (*ProductRepo)(nil)

// NewProductRepo creates a new product repository.
func NewProductRepo(txm *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	sql, args, err := r.builder.
		Insert(productTable).
		Columns(productColumns...).
		Values(p.ID, p.SKU, p.Name, p.Category, p.Unit, p.Price,
			p.CurrentStock, p.MinStockThreshold, p.Version, p.CreatedAt, p.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if _, dup := postgres.UniqueViolation(err); dup {
			return apperror.NewDuplicate("product", "sku", p.SKU)
		}
		return postgres.MapError(fmt.Errorf("insert product: %w", err))
	}
	return nil
}

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	return r.getOne(ctx, squirrel.Eq{"id": productID}, productID.String())
}

func (r *ProductRepo) GetBySKU(ctx context.Context, sku string) (*product.Product, error) {
	return r.getOne(ctx, squirrel.Eq{"sku": sku}, sku)
}

func (r *ProductRepo) getOne(ctx context.Context, where squirrel.Sqlizer, key string) (*product.Product, error) {
	sql, args, err := r.builder.Select(productColumns...).From(productTable).Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var p product.Product
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewUnknownEntity("product", key)
		}
		return nil, postgres.MapError(fmt.Errorf("get product: %w", err))
	}
	return &p, nil
}

// Update writes catalog attributes guarded by the version. current_stock is never touched.
func (r *ProductRepo) Update(ctx context.Context, p *product.Product) error {
	sql, args, err := r.builder.
		Update(productTable).
		Set("sku", p.SKU).
		Set("name", p.Name).
		Set("category", p.Category).
		Set("unit", p.Unit).
		Set("price", p.Price).
		Set("min_stock_threshold", p.MinStockThreshold).
		Set("updated_at", p.UpdatedAt).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": p.ID, "version": p.Version}).
		Suffix("RETURNING version").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	var version int
	err = r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&version)
	switch {
	case err == nil:
		p.Version = version
		return nil
	case postgres.IsNoRows(err):
		if _, getErr := r.GetByID(ctx, p.ID); getErr != nil {
			return getErr
		}
		return apperror.NewConcurrencyConflict("product", p.ID.String())
	default:
		if _, dup := postgres.UniqueViolation(err); dup {
			return apperror.NewDuplicate("product", "sku", p.SKU)
		}
		return postgres.MapError(fmt.Errorf("update product: %w", err))
	}
}

func (r *ProductRepo) Delete(ctx context.Context, productID id.ID) error {
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, `DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		if _, fk := postgres.ForeignKeyViolation(err); fk {
			return apperror.NewReferencedEntity("product", productID.String())
		}
		return postgres.MapError(fmt.Errorf("delete product: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewUnknownEntity("product", productID.String())
	}
	return nil
}

func (r *ProductRepo) List(ctx context.Context, filter product.ListFilter) (domain.ListResult[*product.Product], error) {
	page := filter.Page.Normalize()
	result := domain.ListResult[*product.Product]{Items: []*product.Product{}, Limit: page.Limit, Offset: page.Offset}

	where := squirrel.And{}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + postgres.EscapeLike(s) + "%"
		where = append(where, squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"sku": pattern},
		})
	}
	if filter.Category != "" {
		where = append(where, squirrel.Eq{"category": filter.Category})
	}
	if filter.LowStockOnly {
		where = append(where, squirrel.Expr("current_stock <= min_stock_threshold"))
	}

	q := r.txm.GetQuerier(ctx)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From(productTable).Where(where).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, postgres.MapError(fmt.Errorf("count products: %w", err))
	}

	sql, args, err := r.builder.
		Select(productColumns...).
		From(productTable).
		Where(where).
		OrderBy("name", "id").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build list: %w", err)
	}

	if err := pgxscan.Select(ctx, q, &result.Items, sql, args...); err != nil {
		return result, postgres.MapError(fmt.Errorf("list products: %w", err))
	}
	return result, nil
}

func (r *ProductRepo) IsReferenced(ctx context.Context, productID id.ID) (bool, error) {
	var referenced bool
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM document_items WHERE product_id = $1)
		    OR EXISTS (SELECT 1 FROM ledger WHERE product_id = $1)
	`, productID).Scan(&referenced)
	if err != nil {
		return false, postgres.MapError(fmt.Errorf("check product references: %w", err))
	}
	return referenced, nil
}

// GetForUpdateBatch row-locks products in ascending id order.
func (r *ProductRepo) GetForUpdateBatch(ctx context.Context, productIDs []id.ID) (map[id.ID]*product.Product, error) {
	out := make(map[id.ID]*product.Product, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	sql, args, err := r.builder.
		Select(productColumns...).
		From(productTable).
		Where("id = ANY(?)", productIDs).
		OrderBy("id").
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lock query: %w", err)
	}

	var rows []*product.Product
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("lock products: %w", err))
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

func (r *ProductRepo) ApplyStockDelta(ctx context.Context, productID id.ID, delta int64) (int64, error) {
	var stock int64
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, `
		UPDATE products
		SET current_stock = current_stock + $1, updated_at = $2
		WHERE id = $3
		RETURNING current_stock
	`, delta, time.Now().UTC(), productID).Scan(&stock)
	if err != nil {
		if postgres.IsNoRows(err) {
			return 0, apperror.NewUnknownEntity("product", productID.String())
		}
		return 0, postgres.MapError(fmt.Errorf("apply stock delta: %w", err))
	}
	return stock, nil
}
