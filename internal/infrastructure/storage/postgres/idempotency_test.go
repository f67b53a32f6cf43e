package postgres_test

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/idempotency"
	"stockledger/internal/infrastructure/storage/postgres"
)

var idempotencyColumns = []string{
	"idempotency_key", "operation", "status", "request_hash", "response",
	"response_status", "response_content_type", "updated_at", "inserted",
}

func newIdempotencyStore(t *testing.T) (*postgres.IdempotencyStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return postgres.NewIdempotencyStore(mock, time.Hour), mock
}

func acquireArgs(key, operation, hash string) []any {
	return []any{key, operation, idempotency.StatusPending, hash, pgxmock.AnyArg(), pgxmock.AnyArg()}
}

func ptr[T any](v T) *T { return &v }

func TestIdempotencyStore_AcquireNewKey(t *testing.T) {
	store, mock := newIdempotencyStore(t)

	mock.ExpectQuery("INSERT INTO sys_idempotency").
		WithArgs("k1", "POST /api/v1/products", idempotency.StatusPending, "hash", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(idempotencyColumns).
			AddRow("k1", "POST /api/v1/products", idempotency.StatusPending, "hash", nil, nil, nil, time.Now().UTC(), true))

	replay, err := store.AcquireKey(context.Background(), "k1", "POST /api/v1/products", "hash")
	require.NoError(t, err)
	assert.Nil(t, replay)
}

func TestIdempotencyStore_ReplaysCompletedKey(t *testing.T) {
	store, mock := newIdempotencyStore(t)

	mock.ExpectQuery("INSERT INTO sys_idempotency").
		WithArgs(acquireArgs("k1", "POST /x", "hash")...).
		WillReturnRows(pgxmock.NewRows(idempotencyColumns).
			AddRow("k1", "POST /x", idempotency.StatusSuccess, "hash", []byte(`{"ok":true}`),
				ptr(201), ptr("application/json"), time.Now().UTC(), false))

	replay, err := store.AcquireKey(context.Background(), "k1", "POST /x", "hash")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, 201, replay.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(replay.Body))
}

func TestIdempotencyStore_InFlightKeyConflicts(t *testing.T) {
	store, mock := newIdempotencyStore(t)

	mock.ExpectQuery("INSERT INTO sys_idempotency").
		WithArgs(acquireArgs("k1", "POST /x", "hash")...).
		WillReturnRows(pgxmock.NewRows(idempotencyColumns).
			AddRow("k1", "POST /x", idempotency.StatusPending, "hash", nil, nil, nil, time.Now().UTC(), false))

	_, err := store.AcquireKey(context.Background(), "k1", "POST /x", "hash")
	assert.True(t, apperror.Is(err, apperror.CodeIdempotency))
}

func TestIdempotencyStore_MismatchedRequest(t *testing.T) {
	store, mock := newIdempotencyStore(t)

	mock.ExpectQuery("INSERT INTO sys_idempotency").
		WithArgs(acquireArgs("k1", "POST /x", "hash")...).
		WillReturnRows(pgxmock.NewRows(idempotencyColumns).
			AddRow("k1", "POST /x", idempotency.StatusSuccess, "other-hash", nil, nil, nil, time.Now().UTC(), false))

	_, err := store.AcquireKey(context.Background(), "k1", "POST /x", "hash")
	assert.True(t, apperror.Is(err, apperror.CodeIdempotency))
}

func TestIdempotencyStore_ReclaimsStalePendingKey(t *testing.T) {
	store, mock := newIdempotencyStore(t)
	stale := time.Now().UTC().Add(-5 * time.Minute)

	mock.ExpectQuery("INSERT INTO sys_idempotency").
		WithArgs(acquireArgs("k1", "POST /x", "hash")...).
		WillReturnRows(pgxmock.NewRows(idempotencyColumns).
			AddRow("k1", "POST /x", idempotency.StatusPending, "hash", nil, nil, nil, stale, false))
	mock.ExpectExec("UPDATE sys_idempotency").
		WithArgs(pgxmock.AnyArg(), "k1", idempotency.StatusPending, stale).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	replay, err := store.AcquireKey(context.Background(), "k1", "POST /x", "hash")
	require.NoError(t, err)
	assert.Nil(t, replay)
}

func TestIdempotencyStore_CompleteAndCleanup(t *testing.T) {
	store, mock := newIdempotencyStore(t)

	mock.ExpectExec("UPDATE sys_idempotency").
		WithArgs(idempotency.StatusSuccess, []byte(`{}`), 200, "application/json", pgxmock.AnyArg(), "k1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM sys_idempotency").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	require.NoError(t, store.CompleteKey(context.Background(), "k1", 200, "application/json", []byte(`{}`)))
	n, err := store.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestIdempotencyStore_ReleaseKeyDeletesPendingOnly(t *testing.T) {
	store, mock := newIdempotencyStore(t)

	mock.ExpectExec("DELETE FROM sys_idempotency WHERE idempotency_key = \\$1 AND status = \\$2").
		WithArgs("k1", idempotency.StatusPending).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.ReleaseKey(context.Background(), "k1"))
}
