package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/reports"
	"stockledger/internal/infrastructure/notify"
	"stockledger/pkg/logger"
)

type fakeRelay struct {
	mu        sync.Mutex
	batches   []int
	calls     int
	batchErr  error
	dlq       int64
	purged    int64
	retention time.Duration
	backlog   int64
}

func (r *fakeRelay) ProcessBatch(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.batchErr != nil {
		return 0, r.batchErr
	}
	if len(r.batches) == 0 {
		return 0, nil
	}
	n := r.batches[0]
	r.batches = r.batches[1:]
	return n, nil
}

func (r *fakeRelay) MoveToDLQ(context.Context) (int64, error) { return r.dlq, nil }

func (r *fakeRelay) PurgePublished(_ context.Context, retention time.Duration) (int64, error) {
	r.retention = retention
	return r.purged, nil
}

func (r *fakeRelay) Backlog(context.Context) (int64, error) { return r.backlog, nil }

type fakeReconciler struct {
	rec *reports.Reconciliation
	err error
}

func (f fakeReconciler) Reconcile(context.Context) (*reports.Reconciliation, error) {
	return f.rec, f.err
}

type fakeKeys struct{ calls int }

func (k *fakeKeys) CleanupExpired(context.Context) (int64, error) {
	k.calls++
	return 3, nil
}

type recorder struct {
	backlog       int64
	published     int
	deadLettered  int64
	discrepancies int
}

func (r *recorder) SetOutboxBacklog(n int64)      { r.backlog = n }
func (r *recorder) AddOutboxPublished(n int)      { r.published += n }
func (r *recorder) AddOutboxDeadLettered(n int64) { r.deadLettered += n }
func (r *recorder) SetDiscrepancies(n int)        { r.discrepancies = n }

type heldLease struct{}

func (heldLease) Acquire(context.Context) error { return notify.ErrLeaseHeld }
func (heldLease) Release(context.Context) error { return nil }

func newTestWorker(relay Relay, lease notify.Lease, reconciler Reconciler, keys KeyCleaner, rec Recorder) *Worker {
	return NewWorker(relay, lease, reconciler, keys, rec, Options{
		PollInterval:      10 * time.Millisecond,
		ReconcileInterval: 10 * time.Millisecond,
		Retention:         time.Hour,
		MaxBatchesPerTick: 3,
	}, logger.NewNop())
}

func TestWorker_RelayDrainsUntilEmpty(t *testing.T) {
	relay := &fakeRelay{batches: []int{5, 2}}
	rec := &recorder{}
	w := newTestWorker(relay, notify.LocalLease{}, fakeReconciler{}, nil, rec)

	w.relayOutbox(context.Background())

	assert.Equal(t, 3, relay.calls)
	assert.Equal(t, 7, rec.published)
}

func TestWorker_RelayStopsAtBatchLimit(t *testing.T) {
	relay := &fakeRelay{batches: []int{1, 1, 1, 1, 1}}
	rec := &recorder{}
	w := newTestWorker(relay, notify.LocalLease{}, fakeReconciler{}, nil, rec)

	w.relayOutbox(context.Background())

	assert.Equal(t, 3, relay.calls)
	assert.Equal(t, 3, rec.published)
}

func TestWorker_RelaySkipsWithoutLease(t *testing.T) {
	relay := &fakeRelay{batches: []int{5}}
	rec := &recorder{}
	w := newTestWorker(relay, heldLease{}, fakeReconciler{}, nil, rec)

	w.relayOutbox(context.Background())

	assert.Zero(t, relay.calls)
	assert.Zero(t, rec.published)
}

func TestWorker_RelayBatchError(t *testing.T) {
	relay := &fakeRelay{batchErr: errors.New("connection reset")}
	rec := &recorder{}
	w := newTestWorker(relay, notify.LocalLease{}, fakeReconciler{}, nil, rec)

	w.relayOutbox(context.Background())

	assert.Equal(t, 1, relay.calls)
	assert.Zero(t, rec.published)
}

func TestWorker_SingleRelayAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	first, second := &fakeRelay{batches: []int{1}}, &fakeRelay{batches: []int{1}}
	a := newTestWorker(first, relayLease(client, time.Second), fakeReconciler{}, nil, &recorder{})
	b := newTestWorker(second, relayLease(client, time.Second), fakeReconciler{}, nil, &recorder{})

	a.relayOutbox(context.Background())
	b.relayOutbox(context.Background())

	assert.Positive(t, first.calls)
	assert.Zero(t, second.calls)
}

func TestRelayLease_LocalWithoutRedis(t *testing.T) {
	assert.Equal(t, notify.LocalLease{}, relayLease(nil, time.Second))
}

func TestWorker_Maintenance(t *testing.T) {
	relay := &fakeRelay{dlq: 2, backlog: 42}
	rec := &recorder{}
	w := newTestWorker(relay, notify.LocalLease{}, fakeReconciler{}, nil, rec)

	w.maintainOutbox(context.Background())

	assert.Equal(t, int64(2), rec.deadLettered)
	assert.Equal(t, int64(42), rec.backlog)
}

func TestWorker_Cleanup(t *testing.T) {
	relay := &fakeRelay{purged: 10}
	keys := &fakeKeys{}
	w := newTestWorker(relay, notify.LocalLease{}, fakeReconciler{}, keys, &recorder{})

	w.cleanup(context.Background())

	assert.Equal(t, time.Hour, relay.retention)
	assert.Equal(t, 1, keys.calls)
}

func TestWorker_Reconcile(t *testing.T) {
	rec := &recorder{}
	reconciler := fakeReconciler{rec: &reports.Reconciliation{
		Discrepancies: []reports.Discrepancy{
			{ProductID: id.New(), SKU: "A-1", CurrentStock: 5, LedgerSum: 3},
		},
	}}
	w := newTestWorker(&fakeRelay{}, notify.LocalLease{}, reconciler, nil, rec)

	w.reconcile(context.Background())
	assert.Equal(t, 1, rec.discrepancies)

	w.reconciler = fakeReconciler{rec: &reports.Reconciliation{Consistent: true}}
	w.reconcile(context.Background())
	assert.Zero(t, rec.discrepancies)
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	relay := &fakeRelay{}
	w := newTestWorker(relay, notify.LocalLease{}, fakeReconciler{rec: &reports.Reconciliation{Consistent: true}}, nil, &recorder{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		relay.mu.Lock()
		defer relay.mu.Unlock()
		return relay.calls > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
