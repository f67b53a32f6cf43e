package ledger_repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/documents"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres/ledger_repo"
	"stockledger/internal/infrastructure/storage/postgres/pgtest"
)

var ledgerColumns = []string{
	"id", "product_id", "quantity_change", "type", "reference", "document_id", "item_id", "created_at",
}

func sampleEntries(n int) []ledger.Entry {
	doc := documents.NewDocument(documents.TypeReceipt, "REC-2026-00001", time.Time{})
	out := make([]ledger.Entry, n)
	for i := range out {
		item := documents.Item{ID: id.New(), DocumentID: doc.ID, ProductID: id.New(), Quantity: int64(i + 1)}
		out[i] = ledger.NewEntry(doc, item, item.Quantity, time.Now().UTC())
	}
	return out
}

func TestLedgerRepo_AppendUsesCopy(t *testing.T) {
	txm, mock := pgtest.NewMock(t)
	repo := ledger_repo.NewLedgerRepo(txm)
	entries := sampleEntries(3)

	pgtest.ExpectBegin(mock)
	mock.ExpectCopyFrom(pgx.Identifier{"ledger"}, ledgerColumns).WillReturnResult(3)
	mock.ExpectCommit()

	err := txm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		return repo.Append(ctx, entries)
	})
	require.NoError(t, err)
}

func TestLedgerRepo_AppendRequiresTransaction(t *testing.T) {
	txm, _ := pgtest.NewMock(t)
	repo := ledger_repo.NewLedgerRepo(txm)

	err := repo.Append(context.Background(), sampleEntries(1))
	assert.ErrorContains(t, err, "transaction")
}

func TestLedgerRepo_Query(t *testing.T) {
	txm, mock := pgtest.NewMock(t)
	repo := ledger_repo.NewLedgerRepo(txm)
	e := sampleEntries(1)[0]

	mock.ExpectQuery("SELECT .+ FROM ledger WHERE \\(product_id = \\$1\\) ORDER BY created_at DESC, id DESC LIMIT 50 OFFSET 0").
		WithArgs(e.ProductID.String()).
		WillReturnRows(pgxmock.NewRows(ledgerColumns).
			AddRow(e.ID, e.ProductID, e.QuantityChange, e.Type, e.Reference, e.DocumentID, e.ItemID, e.CreatedAt))

	entries, err := repo.Query(context.Background(), ledger.Query{ProductID: &e.ProductID, Page: domain.Page{}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, e.ItemID, entries[0].ItemID)
	assert.Equal(t, documents.TypeReceipt, entries[0].Type)
}

func TestLedgerRepo_SumAndHistory(t *testing.T) {
	txm, mock := pgtest.NewMock(t)
	repo := ledger_repo.NewLedgerRepo(txm)
	pid := id.New()

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(quantity_change\\), 0\\)").
		WithArgs(pid).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(42)))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(pid).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	sum, err := repo.SumByProduct(context.Background(), pid)
	require.NoError(t, err)
	assert.Equal(t, int64(42), sum)

	has, err := repo.HasHistory(context.Background(), pid)
	require.NoError(t, err)
	assert.False(t, has)
}
