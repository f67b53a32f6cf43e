package main

import (
	"context"
	"errors"
	"sync"
	"time"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/domain/reports"
	"stockledger/internal/infrastructure/notify"
	"stockledger/pkg/logger"
)

// Relay drains the transactional outbox.
type Relay interface {
	ProcessBatch(ctx context.Context) (int, error)
	MoveToDLQ(ctx context.Context) (int64, error)
	PurgePublished(ctx context.Context, retention time.Duration) (int64, error)
	Backlog(ctx context.Context) (int64, error)
}

// Reconciler compares cached stock with the ledger.
type Reconciler interface {
	Reconcile(ctx context.Context) (*reports.Reconciliation, error)
}

// KeyCleaner removes expired idempotency keys.
type KeyCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Recorder receives worker metrics.
type Recorder interface {
	SetOutboxBacklog(n int64)
	AddOutboxPublished(n int)
	AddOutboxDeadLettered(n int64)
	SetDiscrepancies(n int)
}

// Options configures the worker loops.
type Options struct {
	PollInterval        time.Duration
	MaintenanceInterval time.Duration
	CleanupInterval     time.Duration
	ReconcileInterval   time.Duration
	Retention           time.Duration
	// MaxBatchesPerTick bounds one drain so a huge backlog does not starve the lease refresh.
	MaxBatchesPerTick int
}

// Worker runs the background jobs: outbox relay, dead-lettering, purge,
// idempotency cleanup and stock reconciliation.
type Worker struct {
	relay      Relay
	lease      notify.Lease
	reconciler Reconciler
	keys       KeyCleaner
	metrics    Recorder
	opts       Options
	log        *logger.Logger
}

// NewWorker creates a worker. keys may be nil when idempotency is disabled.
func NewWorker(relay Relay, lease notify.Lease, reconciler Reconciler, keys KeyCleaner, metrics Recorder, opts Options, log *logger.Logger) *Worker {
	if opts.MaintenanceInterval <= 0 {
		opts.MaintenanceInterval = time.Minute
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Hour
	}
	if opts.MaxBatchesPerTick <= 0 {
		opts.MaxBatchesPerTick = 10
	}
	return &Worker{
		relay:      relay,
		lease:      lease,
		reconciler: reconciler,
		keys:       keys,
		metrics:    metrics,
		opts:       opts,
		log:        log.WithComponent("worker"),
	}
}

// Run blocks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	loops := []struct {
		name     string
		interval time.Duration
		job      func(context.Context)
	}{
		{"relay", w.opts.PollInterval, w.relayOutbox},
		{"maintenance", w.opts.MaintenanceInterval, w.maintainOutbox},
		{"cleanup", w.opts.CleanupInterval, w.cleanup},
		{"reconcile", w.opts.ReconcileInterval, w.reconcile},
	}
	for _, l := range loops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx, l.name, l.interval, l.job)
		}()
	}
	wg.Wait()

	releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.lease.Release(releaseCtx); err != nil {
		w.log.Warnw("failed to release relay lease", "error", err)
	}
}

func (w *Worker) loop(ctx context.Context, name string, interval time.Duration, job func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debugw("job stopped", "job", name)
			return
		case <-ticker.C:
			job(w.jobContext(ctx, name))
		}
	}
}

// jobContext gives every run its own trace id in the logs.
func (w *Worker) jobContext(ctx context.Context, name string) context.Context {
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext(appctx.OriginWorker))
	return logger.WithLogger(ctx, w.log.With("job", name))
}

func (w *Worker) relayOutbox(ctx context.Context) {
	if err := w.lease.Acquire(ctx); err != nil {
		if errors.Is(err, notify.ErrLeaseHeld) {
			logger.Debug(ctx, "relay lease held by another instance")
			return
		}
		logger.Error(ctx, "failed to acquire relay lease", "error", err)
		return
	}

	total := 0
	for range w.opts.MaxBatchesPerTick {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			logger.Error(ctx, "outbox batch failed", "error", err)
			break
		}
		total += n
		if n == 0 {
			break
		}
	}
	if total > 0 {
		w.metrics.AddOutboxPublished(total)
		logger.Debug(ctx, "relayed outbox messages", "count", total)
	}
}

func (w *Worker) maintainOutbox(ctx context.Context) {
	moved, err := w.relay.MoveToDLQ(ctx)
	if err != nil {
		logger.Error(ctx, "failed to move messages to DLQ", "error", err)
	} else if moved > 0 {
		w.metrics.AddOutboxDeadLettered(moved)
		logger.Warn(ctx, "moved undeliverable messages to DLQ", "count", moved)
	}

	backlog, err := w.relay.Backlog(ctx)
	if err != nil {
		logger.Error(ctx, "failed to read outbox backlog", "error", err)
		return
	}
	w.metrics.SetOutboxBacklog(backlog)
}

func (w *Worker) cleanup(ctx context.Context) {
	purged, err := w.relay.PurgePublished(ctx, w.opts.Retention)
	if err != nil {
		logger.Error(ctx, "failed to purge published messages", "error", err)
	} else if purged > 0 {
		logger.Info(ctx, "purged published outbox messages", "count", purged)
	}

	if w.keys == nil {
		return
	}
	removed, err := w.keys.CleanupExpired(ctx)
	if err != nil {
		logger.Error(ctx, "failed to clean up idempotency keys", "error", err)
		return
	}
	if removed > 0 {
		logger.Info(ctx, "cleaned up idempotency keys", "count", removed)
	}
}

func (w *Worker) reconcile(ctx context.Context) {
	rec, err := w.reconciler.Reconcile(ctx)
	if err != nil {
		logger.Error(ctx, "reconciliation failed", "error", err)
		return
	}
	w.metrics.SetDiscrepancies(len(rec.Discrepancies))
	if rec.Consistent {
		return
	}
	for _, d := range rec.Discrepancies {
		logger.Warn(ctx, "stock does not match ledger",
			"product_id", d.ProductID,
			"sku", d.SKU,
			"current_stock", d.CurrentStock,
			"ledger_sum", d.LedgerSum,
			"difference", d.Difference())
	}
}
