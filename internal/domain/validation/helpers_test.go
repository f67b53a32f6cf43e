package validation_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/change"
	"stockledger/internal/domain/documents"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/validation"
	"stockledger/internal/infrastructure/storage/memory"
)

type fixture struct {
	store    *memory.Store
	products *product.Service
	docs     *documents.Service
	ledger   *ledger.Service
	engine   *validation.Engine

	mu        sync.Mutex
	delivered []change.Change
}

type option func(*memory.Store, *validation.Config)

func withPolicy(p validation.StockPolicy) option {
	return func(_ *memory.Store, c *validation.Config) { c.Policy = p }
}

func withFailingProducts(failing *failingProducts) option {
	return func(s *memory.Store, c *validation.Config) {
		failing.Repository = s.Products()
		c.Products = failing
	}
}

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()

	f := &fixture{store: memory.New()}
	notifier := memory.NewNotifier(func(_ context.Context, changes []change.Change) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.delivered = append(f.delivered, changes...)
	})

	cfg := validation.Config{
		TxManager: f.store,
		Documents: f.store.Documents(),
		Products:  f.store.Products(),
		Ledger:    f.store.Ledger(),
		Notifier:  notifier,
		Audit:     f.store.Audit(),
	}
	for _, opt := range opts {
		opt(f.store, &cfg)
	}
	f.engine = validation.NewEngine(cfg)

	f.products = product.NewService(product.ServiceConfig{
		Repo:      f.store.Products(),
		TxManager: f.store,
		Stock:     f.engine,
		Notifier:  notifier,
		Audit:     f.store.Audit(),
	})
	f.docs = documents.NewService(documents.ServiceConfig{
		Repo:      f.store.Documents(),
		Products:  f.store.Products(),
		TxManager: f.store,
		Numerator: f.store.Numerator(),
		Notifier:  notifier,
		Audit:     f.store.Audit(),
	})
	f.ledger = ledger.NewService(f.store.Ledger())
	return f
}

func (f *fixture) product(t *testing.T, sku string, stock int64) *product.Product {
	t.Helper()
	p, err := f.products.Create(context.Background(), product.CreateRequest{
		SKU:               sku,
		Name:              "Product " + sku,
		MinStockThreshold: 5,
		InitialStock:      stock,
	})
	require.NoError(t, err)
	return p
}

type line struct {
	product  *product.Product
	quantity int64
}

func (f *fixture) document(t *testing.T, typ documents.Type, lines ...line) *documents.Document {
	t.Helper()
	ctx := context.Background()
	doc, err := f.docs.CreateDocument(ctx, documents.CreateRequest{Type: typ})
	require.NoError(t, err)
	for _, l := range lines {
		_, err := f.docs.AddItem(ctx, doc.ID, documents.AddItemRequest{ProductID: l.product.ID, Quantity: l.quantity})
		require.NoError(t, err)
	}
	return doc
}

func (f *fixture) stock(t *testing.T, productID id.ID) int64 {
	t.Helper()
	p, err := f.products.Get(context.Background(), productID)
	require.NoError(t, err)
	return p.CurrentStock
}

func (f *fixture) entriesFor(t *testing.T, docID id.ID) []ledger.Entry {
	t.Helper()
	entries, err := f.ledger.Query(context.Background(), ledger.Query{DocumentID: &docID})
	require.NoError(t, err)
	return entries
}

func (f *fixture) status(t *testing.T, docID id.ID) documents.Status {
	t.Helper()
	doc, err := f.docs.GetDocument(context.Background(), docID)
	require.NoError(t, err)
	return doc.Status
}

func (f *fixture) deliveredKinds() map[change.Kind]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[change.Kind]int)
	for _, c := range f.delivered {
		out[c.Kind]++
	}
	return out
}

func (f *fixture) resetDelivered() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = nil
}

// failingProducts fails ApplyStockDelta on the n-th call.
type failingProducts struct {
	product.Repository
	failOn int32
	calls  atomic.Int32
}

var errInjected = errors.New("injected storage failure")

func (r *failingProducts) ApplyStockDelta(ctx context.Context, productID id.ID, delta int64) (int64, error) {
	if r.calls.Add(1) == r.failOn {
		return 0, errInjected
	}
	return r.Repository.ApplyStockDelta(ctx, productID, delta)
}
