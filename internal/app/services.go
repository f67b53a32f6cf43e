// Package app assembles the domain services on top of a storage backend.
package app

import (
	"context"
	"fmt"

	"stockledger/internal/config"
	"stockledger/internal/core/idempotency"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/documents"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/reports"
	"stockledger/internal/domain/validation"
	"stockledger/internal/infrastructure/notify"
	"stockledger/internal/infrastructure/storage/memory"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/catalog_repo"
	"stockledger/internal/infrastructure/storage/postgres/document_repo"
	"stockledger/internal/infrastructure/storage/postgres/ledger_repo"
	"stockledger/internal/infrastructure/storage/postgres/report_repo"
	"stockledger/pkg/numerator"
)

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services is the full set of domain services over one storage backend.
type Services struct {
	Products  *product.Service
	Documents *documents.Service
	Ledger    *ledger.Service
	Reports   *reports.Service
	Engine    *validation.Engine
	Audit     audit.Recorder

	// Idempotency is nil when idempotency keys are disabled.
	Idempotency idempotency.Store

	Storage Pinger
	Driver  string
}

// NewMemory builds services over a fresh in-process store. Committed changes
// are handed to publisher directly.
func NewMemory(cfg *config.Config, publisher notify.Publisher, metrics validation.Metrics) (*Services, error) {
	policy, err := validation.ParsePolicy(cfg.Validation.BackorderPolicy)
	if err != nil {
		return nil, fmt.Errorf("backorder policy: %w", err)
	}
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}

	store := memory.New()
	notifier := memory.NewNotifier(notify.Forwarder(publisher))

	engine := validation.NewEngine(validation.Config{
		TxManager: store,
		Documents: store.Documents(),
		Products:  store.Products(),
		Ledger:    store.Ledger(),
		Notifier:  notifier,
		Audit:     store.Audit(),
		Policy:    policy,
		Metrics:   metrics,
	})

	s := &Services{
		Products: product.NewService(product.ServiceConfig{
			Repo:      store.Products(),
			TxManager: store,
			Stock:     engine,
			Notifier:  notifier,
			Audit:     store.Audit(),
		}),
		Documents: documents.NewService(documents.ServiceConfig{
			Repo:      store.Documents(),
			Products:  store.Products(),
			TxManager: store,
			Numerator: store.Numerator(),
			Notifier:  notifier,
			Audit:     store.Audit(),
		}),
		Ledger:  ledger.NewService(store.Ledger()),
		Reports: reports.NewService(store.Reports()),
		Engine:  engine,
		Audit:   store.Audit(),
		Storage: memoryPinger{},
		Driver:  config.StorageMemory,
	}
	registerProductHooks(s.Products)
	if cfg.Idempotency.Enabled {
		s.Idempotency = memory.NewIdempotencyStore(cfg.Idempotency.TTL)
	}
	return s, nil
}

// NewPostgres builds services over pool. Changes are queued in the outbox for
// the worker to relay.
func NewPostgres(cfg *config.Config, pool *postgres.Pool, metrics validation.Metrics) (*Services, error) {
	policy, err := validation.ParsePolicy(cfg.Validation.BackorderPolicy)
	if err != nil {
		return nil, fmt.Errorf("backorder policy: %w", err)
	}

	txm := postgres.NewTxManager(pool)
	recorder, err := postgres.NewAuditRecorder(txm)
	if err != nil {
		return nil, fmt.Errorf("audit recorder: %w", err)
	}
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
		Audit:     recorder,
		Policy:    policy,
		Metrics:   metrics,
	})

	s := &Services{
		Products: product.NewService(product.ServiceConfig{
			Repo:      productRepo,
			TxManager: txm,
			Stock:     engine,
			Notifier:  notifier,
			Audit:     recorder,
		}),
		Documents: documents.NewService(documents.ServiceConfig{
			Repo:      documentRepo,
			Products:  productRepo,
			TxManager: txm,
			Numerator: numerator.New(txm),
			Notifier:  notifier,
			Audit:     recorder,
		}),
		Ledger:  ledger.NewService(ledgerRepo),
		Reports: reports.NewService(report_repo.NewReportRepo(txm)),
		Engine:  engine,
		Audit:   recorder,
		Storage: txm,
		Driver:  config.StoragePostgres,
	}
	registerProductHooks(s.Products)
	if cfg.Idempotency.Enabled {
		// Keys live outside business transactions, directly on the pool.
		s.Idempotency = postgres.NewIdempotencyStore(pool, cfg.Idempotency.TTL)
	}
	return s, nil
}

type memoryPinger struct{}

func (memoryPinger) Ping(context.Context) error { return nil }
