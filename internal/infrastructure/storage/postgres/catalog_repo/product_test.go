package catalog_repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/infrastructure/storage/postgres/catalog_repo"
	"stockledger/internal/infrastructure/storage/postgres/pgtest"
)

var productColumns = []string{
	"id", "sku", "name", "category", "unit", "price",
	"current_stock", "min_stock_threshold", "version", "created_at", "updated_at",
}

func sampleProduct() *product.Product {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &product.Product{
		ID:                id.New(),
		SKU:               "WID-1",
		Name:              "Widget",
		Category:          "tools",
		Unit:              "pcs",
		Price:             decimal.RequireFromString("12.50"),
		CurrentStock:      10,
		MinStockThreshold: 5,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func productRow(p *product.Product) []any {
	return []any{p.ID, p.SKU, p.Name, p.Category, p.Unit, p.Price,
		p.CurrentStock, p.MinStockThreshold, p.Version, p.CreatedAt, p.UpdatedAt}
}

func TestProductRepo_GetByID(t *testing.T) {
	txm, mock := pgtest.NewMock(t)
	repo := catalog_repo.NewProductRepo(txm)
	p := sampleProduct()

	mock.ExpectQuery("SELECT .+ FROM products WHERE id = \\$1").
		WithArgs(p.ID.String()).
		WillReturnRows(pgxmock.NewRows(productColumns).AddRow(productRow(p)...))

	got, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.SKU, got.SKU)
	assert.Equal(t, int64(10), got.CurrentStock)
	assert.True(t, p.Price.Equal(got.Price))
}

func TestProductRepo_GetByID_NotFound(t *testing.T) {
	txm, mock := pgtest.NewMock(t)
	repo := catalog_repo.NewProductRepo(txm)
	missing := id.New()

	mock.ExpectQuery("SELECT .+ FROM products").
		WithArgs(missing.String()).
		WillReturnRows(pgxmock.NewRows(productColumns))

	_, err := repo.GetByID(context.Background(), missing)
	assert.True(t, apperror.IsNotFound(err))
}

func TestProductRepo_Create_DuplicateSKU(t *testing.T) {
	txm, mock := pgtest.NewMock(t)
	repo := catalog_repo.NewProductRepo(txm)
	p := sampleProduct()

	mock.ExpectExec("INSERT INTO products").
		WithArgs(productRow(p)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "products_sku_key"})

	err := repo.Create(context.Background(), p)
	assert.True(t, apperror.Is(err, apperror.CodeDuplicate))
}

// updateArgs lists the Update placeholders: the catalog fields, updated_at, id and version.
func updateArgs(p *product.Product) []any {
	return []any{p.SKU, p.Name, p.Category, p.Unit, pgxmock.AnyArg(), p.MinStockThreshold,
		pgxmock.AnyArg(), p.ID, p.Version}
}

func TestProductRepo_Update_VersionMismatch(t *testing.T) {
	txm, mock := pgtest.NewMock(t)
	repo := catalog_repo.NewProductRepo(txm)
	p := sampleProduct()

	mock.ExpectQuery("UPDATE products SET .+ RETURNING version").
		WithArgs(updateArgs(p)...).
		WillReturnRows(pgxmock.NewRows([]string{"version"}))
	mock.ExpectQuery("SELECT .+ FROM products").
		WithArgs(p.ID.String()).
		WillReturnRows(pgxmock.NewRows(productColumns).AddRow(productRow(p)...))

	err := repo.Update(context.Background(), p)
	assert.True(t, apperror.IsConcurrencyConflict(err))
}

func TestProductRepo_Update_BumpsVersion(t *testing.T) {
	txm, mock := pgtest.NewMock(t)
	repo := catalog_repo.NewProductRepo(txm)
	p := sampleProduct()

	mock.ExpectQuery("UPDATE products SET .+ version = version \\+ 1 .+ RETURNING version").
		WithArgs(updateArgs(p)...).
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(2))

	require.NoError(t, repo.Update(context.Background(), p))
	assert.Equal(t, 2, p.Version)
}

func TestProductRepo_GetForUpdateBatch(t *testing.T) {
	txm, mock := pgtest.NewMock(t)
	repo := catalog_repo.NewProductRepo(txm)
	a, b := sampleProduct(), sampleProduct()
	b.SKU = "WID-2"
	ids := []id.ID{a.ID, b.ID}

	pgtest.ExpectBegin(mock)
	mock.ExpectQuery("SELECT .+ FROM products WHERE id = ANY\\(\\$1\\) ORDER BY id FOR UPDATE").
		WithArgs(ids).
		WillReturnRows(pgxmock.NewRows(productColumns).AddRow(productRow(a)...).AddRow(productRow(b)...))
	mock.ExpectCommit()

	var locked map[id.ID]*product.Product
	err := txm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		var err error
		locked, err = repo.GetForUpdateBatch(ctx, ids)
		return err
	})
	require.NoError(t, err)
	require.Len(t, locked, 2)
	assert.Equal(t, "WID-2", locked[b.ID].SKU)
}

func TestProductRepo_ApplyStockDelta(t *testing.T) {
	txm, mock := pgtest.NewMock(t)
	repo := catalog_repo.NewProductRepo(txm)
	pid := id.New()

	mock.ExpectQuery("UPDATE products SET current_stock = current_stock \\+ \\$1").
		WithArgs(int64(-3), pgxmock.AnyArg(), pid).
		WillReturnRows(pgxmock.NewRows([]string{"current_stock"}).AddRow(int64(7)))

	stock, err := repo.ApplyStockDelta(context.Background(), pid, -3)
	require.NoError(t, err)
	assert.Equal(t, int64(7), stock)
}

func TestProductRepo_ApplyStockDelta_UnknownProduct(t *testing.T) {
	txm, mock := pgtest.NewMock(t)
	repo := catalog_repo.NewProductRepo(txm)
	pid := id.New()

	mock.ExpectQuery("UPDATE products").
		WithArgs(int64(5), pgxmock.AnyArg(), pid).
		WillReturnRows(pgxmock.NewRows([]string{"current_stock"}))

	_, err := repo.ApplyStockDelta(context.Background(), pid, 5)
	assert.True(t, apperror.IsNotFound(err))
}

func TestProductRepo_List(t *testing.T) {
	txm, mock := pgtest.NewMock(t)
	repo := catalog_repo.NewProductRepo(txm)
	p := sampleProduct()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM products WHERE \\(\\(name ILIKE \\$1 OR sku ILIKE \\$2\\) AND current_stock <= min_stock_threshold\\)").
		WithArgs("%wid%", "%wid%").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM products .+ ORDER BY name, id LIMIT 20 OFFSET 0").
		WithArgs("%wid%", "%wid%").
		WillReturnRows(pgxmock.NewRows(productColumns).AddRow(productRow(p)...))

	result, err := repo.List(context.Background(), product.ListFilter{
		Search:       "wid",
		LowStockOnly: true,
		Page:         domain.Page{Limit: 20},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.TotalCount)
	require.Len(t, result.Items, 1)
	assert.Equal(t, p.ID, result.Items[0].ID)
}

func TestProductRepo_IsReferenced(t *testing.T) {
	txm, mock := pgtest.NewMock(t)
	repo := catalog_repo.NewProductRepo(txm)
	pid := id.New()

	mock.ExpectQuery("SELECT EXISTS .+ document_items .+ ledger").
		WithArgs(pid).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	referenced, err := repo.IsReferenced(context.Background(), pid)
	require.NoError(t, err)
	assert.True(t, referenced)
}
