//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/documents"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/reports"
	"stockledger/internal/domain/validation"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/catalog_repo"
	"stockledger/internal/infrastructure/storage/postgres/document_repo"
	"stockledger/internal/infrastructure/storage/postgres/ledger_repo"
	"stockledger/internal/infrastructure/storage/postgres/report_repo"
	"stockledger/pkg/numerator"
)

type stack struct {
	pool     *postgres.Pool
	txm      *postgres.TxManager
	products *product.Service
	docs     *documents.Service
	ledger   *ledger.Service
	reports  *reports.Service
	engine   *validation.Engine
	relay    *postgres.OutboxRelay
}

func startPostgres(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("stockledger"),
		tcpostgres.WithUsername("stockledger"),
		tcpostgres.WithPassword("stockledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := postgres.OpenDB(pool)
	require.NoError(t, postgres.Migrate(ctx, db))

	txm := postgres.NewTxManager(pool)
	auditRec, err := postgres.NewAuditRecorder(txm)
	require.NoError(t, err)
	notifier := postgres.NewOutboxNotifier(txm, nil)

	productRepo := catalog_repo.NewProductRepo(txm)
	documentRepo := document_repo.NewDocumentRepo(txm)
	ledgerRepo := ledger_repo.NewLedgerRepo(txm)

	engine := validation.NewEngine(validation.Config{
		TxManager: txm,
		Documents: documentRepo,
		Products:  productRepo,
		Ledger:    ledgerRepo,
		Notifier:  notifier,
		Audit:     auditRec,
	})

	return &stack{
		pool: pool,
		txm:  txm,
		products: product.NewService(product.ServiceConfig{
			Repo:      productRepo,
			TxManager: txm,
			Stock:     engine,
			Notifier:  notifier,
			Audit:     auditRec,
		}),
		docs: documents.NewService(documents.ServiceConfig{
			Repo:      documentRepo,
			Products:  productRepo,
			TxManager: txm,
			Numerator: numerator.New(txm),
			Notifier:  notifier,
			Audit:     auditRec,
		}),
		ledger:  ledger.NewService(ledgerRepo),
		reports: reports.NewService(report_repo.NewReportRepo(txm)),
		engine:  engine,
		relay: postgres.NewOutboxRelay(txm, postgres.DefaultRelayConfig(),
			postgres.OutboxHandlerFunc(func(context.Context, *postgres.OutboxMessage) error { return nil })),
	}
}

func (s *stack) delivery(t *testing.T, productID id.ID, quantity int64) *documents.Document {
	t.Helper()
	ctx := context.Background()
	doc, err := s.docs.CreateDocument(ctx, documents.CreateRequest{Type: documents.TypeDelivery})
	require.NoError(t, err)
	_, err = s.docs.AddItem(ctx, doc.ID, documents.AddItemRequest{ProductID: productID, Quantity: quantity})
	require.NoError(t, err)
	return doc
}

func TestIntegration_Postgres(t *testing.T) {
	s := startPostgres(t)
	ctx := context.Background()

	t.Run("opening balance and delivery", func(t *testing.T) {
		p, err := s.products.Create(ctx, product.CreateRequest{SKU: "INT-1", Name: "Widget", InitialStock: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(10), p.CurrentStock)

		doc := s.delivery(t, p.ID, 4)
		assert.Regexp(t, `^DEL-\d{4}-\d{5}$`, doc.Reference)

		res, err := s.engine.Validate(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, documents.StatusDone, res.Document.Status)
		require.Len(t, res.Entries, 1)
		assert.Equal(t, int64(-4), res.Entries[0].QuantityChange)

		got, err := s.products.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(6), got.CurrentStock)

		sum, err := s.ledger.SumByProduct(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(6), sum)

		_, err = s.engine.Validate(ctx, doc.ID)
		assert.True(t, apperror.Is(err, apperror.CodeInvalidState))
	})

	t.Run("insufficient stock rolls back", func(t *testing.T) {
		p, err := s.products.Create(ctx, product.CreateRequest{SKU: "INT-2", Name: "Gadget", InitialStock: 3})
		require.NoError(t, err)

		doc := s.delivery(t, p.ID, 5)
		_, err = s.engine.Validate(ctx, doc.ID)
		require.True(t, apperror.Is(err, apperror.CodeInsufficientStock))

		got, err := s.docs.GetDocument(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, documents.StatusDraft, got.Status)

		entries, err := s.ledger.Query(ctx, ledger.Query{DocumentID: &doc.ID})
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("concurrent deliveries never oversell", func(t *testing.T) {
		p, err := s.products.Create(ctx, product.CreateRequest{SKU: "INT-3", Name: "Bolt", InitialStock: 10})
		require.NoError(t, err)

		const n = 15
		docs := make([]*documents.Document, n)
		for i := range docs {
			docs[i] = s.delivery(t, p.ID, 1)
		}

		var (
			wg           sync.WaitGroup
			mu           sync.Mutex
			done, denied int
		)
		for _, doc := range docs {
			wg.Add(1)
			go func(docID id.ID) {
				defer wg.Done()
				_, err := s.engine.Validate(ctx, docID)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					done++
				case apperror.Is(err, apperror.CodeInsufficientStock):
					denied++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(doc.ID)
		}
		wg.Wait()

		assert.Equal(t, 10, done)
		assert.Equal(t, 5, denied)

		got, err := s.products.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.CurrentStock)
	})

	t.Run("same document validated once", func(t *testing.T) {
		p, err := s.products.Create(ctx, product.CreateRequest{SKU: "INT-4", Name: "Nut"})
		require.NoError(t, err)
		doc, err := s.docs.CreateDocument(ctx, documents.CreateRequest{Type: documents.TypeReceipt})
		require.NoError(t, err)
		_, err = s.docs.AddItem(ctx, doc.ID, documents.AddItemRequest{ProductID: p.ID, Quantity: 7})
		require.NoError(t, err)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			success int
		)
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.engine.Validate(ctx, doc.ID); err == nil {
					mu.Lock()
					success++
					mu.Unlock()
				} else {
					assert.True(t, apperror.Is(err, apperror.CodeInvalidState), err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, success)
		got, err := s.products.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(7), got.CurrentStock)
	})

	t.Run("ledger is append-only", func(t *testing.T) {
		_, err := s.pool.Exec(ctx, `UPDATE ledger SET quantity_change = 0`)
		assert.ErrorContains(t, err, "append-only")
	})

	t.Run("reconciliation is consistent", func(t *testing.T) {
		rec, err := s.reports.Reconcile(ctx)
		require.NoError(t, err)
		assert.True(t, rec.Consistent)
		assert.Empty(t, rec.Discrepancies)
	})

	t.Run("outbox relays committed changes", func(t *testing.T) {
		backlog, err := s.relay.Backlog(ctx)
		require.NoError(t, err)
		require.Positive(t, backlog)

		for {
			n, err := s.relay.ProcessBatch(ctx)
			require.NoError(t, err)
			if n == 0 {
				break
			}
		}
		backlog, err = s.relay.Backlog(ctx)
		require.NoError(t, err)
		assert.Zero(t, backlog)
	})
}
