package documents_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/numerator"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/documents"
	"stockledger/internal/infrastructure/storage/memory"
)

func newService(t *testing.T) (*documents.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := documents.NewService(documents.ServiceConfig{
		Repo:      store.Documents(),
		Products:  store.Products(),
		TxManager: store,
		Numerator: store.Numerator(),
		Audit:     store.Audit(),
	})
	return svc, store
}

func seedProduct(t *testing.T, store *memory.Store, sku string) *product.Product {
	t.Helper()
	now := time.Now().UTC()
	p := &product.Product{ID: id.New(), SKU: sku, Name: sku, Unit: product.DefaultUnit, Version: 1, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.Products().Create(context.Background(), p))
	return p
}

func TestCreateDocument_GeneratesReference(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	doc, err := svc.CreateDocument(ctx, documents.CreateRequest{Type: documents.TypeReceipt})
	require.NoError(t, err)

	assert.Equal(t, documents.StatusDraft, doc.Status)
	assert.True(t, strings.HasPrefix(doc.Reference, "REC-"), doc.Reference)
	assert.True(t, strings.HasSuffix(doc.Reference, "-00001"), doc.Reference)
	assert.Empty(t, doc.Items)

	second, err := svc.CreateDocument(ctx, documents.CreateRequest{Type: documents.TypeReceipt})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(second.Reference, "-00002"), second.Reference)

	del, err := svc.CreateDocument(ctx, documents.CreateRequest{Type: documents.TypeDelivery})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(del.Reference, "DEL-"), del.Reference)
}

func TestCreateDocument_Validation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateDocument(ctx, documents.CreateRequest{Type: "SCRAP"})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	_, err = svc.CreateDocument(ctx, documents.CreateRequest{Type: documents.TypeReceipt, Reference: "R-1"})
	require.NoError(t, err)
	_, err = svc.CreateDocument(ctx, documents.CreateRequest{Type: documents.TypeDelivery, Reference: "R-1"})
	assert.True(t, apperror.Is(err, apperror.CodeDuplicate))
}

func TestCreateDocument_NumeratorFailure(t *testing.T) {
	store := memory.New()
	refs := &numerator.StubGenerator{Err: errors.New("sequence table locked")}
	svc := documents.NewService(documents.ServiceConfig{
		Repo:      store.Documents(),
		Products:  store.Products(),
		TxManager: store,
		Numerator: refs,
	})
	ctx := context.Background()

	_, err := svc.CreateDocument(ctx, documents.CreateRequest{Type: documents.TypeTransfer})
	require.ErrorContains(t, err, "generate reference")
	assert.Empty(t, refs.Issued())

	list, err := svc.ListDocuments(ctx, documents.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount)

	refs.Err = nil
	date := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	doc, err := svc.CreateDocument(ctx, documents.CreateRequest{Type: documents.TypeTransfer, Date: &date})
	require.NoError(t, err)
	assert.Equal(t, "TRF-2026-00001", doc.Reference)
	assert.Equal(t, []string{"TRF-2026-00001"}, refs.Issued())
}

func TestAddItem(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	wid := seedProduct(t, store, "WID-1")

	doc, err := svc.CreateDocument(ctx, documents.CreateRequest{Type: documents.TypeDelivery, Reference: "D-1"})
	require.NoError(t, err)

	first, err := svc.AddItem(ctx, doc.ID, documents.AddItemRequest{ProductID: wid.ID, Quantity: 3})
	require.NoError(t, err)
	second, err := svc.AddItem(ctx, doc.ID, documents.AddItemRequest{ProductID: wid.ID, Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, 1, first.LineNo)
	assert.Equal(t, 2, second.LineNo)

	_, err = svc.AddItem(ctx, doc.ID, documents.AddItemRequest{ProductID: id.New(), Quantity: 1})
	assert.True(t, apperror.IsNotFound(err))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "product", appErr.Details["entity"])

	_, err = svc.AddItem(ctx, doc.ID, documents.AddItemRequest{ProductID: wid.ID, Quantity: 0})
	assert.True(t, apperror.Is(err, apperror.CodeInvalidQuantity))

	_, err = svc.AddItem(ctx, id.New(), documents.AddItemRequest{ProductID: wid.ID, Quantity: 1})
	assert.True(t, apperror.IsNotFound(err))

	got, err := svc.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, first.ID, got.Items[0].ID)

	require.NoError(t, svc.RemoveItem(ctx, doc.ID, first.ID))
	got, err = svc.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, second.ID, got.Items[0].ID)

	assert.True(t, apperror.IsNotFound(svc.RemoveItem(ctx, doc.ID, first.ID)))
}

func TestAddItem_AdjustmentAcceptsNegative(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	wid := seedProduct(t, store, "WID-1")

	doc, err := svc.CreateDocument(ctx, documents.CreateRequest{Type: documents.TypeAdjustment})
	require.NoError(t, err)

	item, err := svc.AddItem(ctx, doc.ID, documents.AddItemRequest{ProductID: wid.ID, Quantity: -3})
	require.NoError(t, err)
	assert.Equal(t, int64(-3), item.Quantity)
}

func TestSetStatus(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	wid := seedProduct(t, store, "WID-1")

	doc, err := svc.CreateDocument(ctx, documents.CreateRequest{Type: documents.TypeReceipt})
	require.NoError(t, err)

	got, err := svc.SetStatus(ctx, doc.ID, documents.StatusWaiting)
	require.NoError(t, err)
	assert.Equal(t, documents.StatusWaiting, got.Status)

	got, err = svc.SetStatus(ctx, doc.ID, documents.StatusWaiting)
	require.NoError(t, err)
	assert.Equal(t, documents.StatusWaiting, got.Status)

	_, err = svc.SetStatus(ctx, doc.ID, documents.StatusDraft)
	assert.True(t, apperror.Is(err, apperror.CodeInvalidState))

	_, err = svc.SetStatus(ctx, doc.ID, documents.StatusDone)
	assert.True(t, apperror.Is(err, apperror.CodeInvalidState))

	_, err = svc.SetStatus(ctx, doc.ID, "ARCHIVED")
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	_, err = svc.Cancel(ctx, doc.ID)
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, doc.ID, documents.StatusReady)
	assert.True(t, apperror.Is(err, apperror.CodeInvalidState))

	_, err = svc.AddItem(ctx, doc.ID, documents.AddItemRequest{ProductID: wid.ID, Quantity: 1})
	assert.True(t, apperror.Is(err, apperror.CodeInvalidState))
}

func TestDelete(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	wid := seedProduct(t, store, "WID-1")

	draft, err := svc.CreateDocument(ctx, documents.CreateRequest{Type: documents.TypeReceipt})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, draft.ID, documents.AddItemRequest{ProductID: wid.ID, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, draft.ID))

	_, err = svc.GetDocument(ctx, draft.ID)
	assert.True(t, apperror.IsNotFound(err))

	ready, err := svc.CreateDocument(ctx, documents.CreateRequest{Type: documents.TypeReceipt})
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, ready.ID, documents.StatusReady)
	require.NoError(t, err)
	assert.True(t, apperror.Is(svc.Delete(ctx, ready.ID), apperror.CodeInvalidState))
}

func TestListDocuments(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for i := range 3 {
		_, err := svc.CreateDocument(ctx, documents.CreateRequest{Type: documents.TypeReceipt, Reference: fmt.Sprintf("R-%d", i)})
		require.NoError(t, err)
	}
	_, err := svc.CreateDocument(ctx, documents.CreateRequest{Type: documents.TypeDelivery, Reference: "D-1"})
	require.NoError(t, err)

	all, err := svc.ListDocuments(ctx, documents.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.TotalCount)
	assert.Equal(t, domain.DefaultLimit, all.Limit)
	assert.Equal(t, "D-1", all.Items[0].Reference)

	receipts, err := svc.ListDocuments(ctx, documents.ListFilter{Type: documents.TypeReceipt, Page: domain.Page{Limit: 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), receipts.TotalCount)
	assert.Len(t, receipts.Items, 2)

	search, err := svc.ListDocuments(ctx, documents.ListFilter{Search: "d-"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), search.TotalCount)

	_, err = svc.ListDocuments(ctx, documents.ListFilter{Status: "ARCHIVED"})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}
