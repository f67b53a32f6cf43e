// Package pgtest provides pgxmock helpers for repository tests.
package pgtest

import (
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"stockledger/internal/infrastructure/storage/postgres"
)

// NewMock returns a TxManager over a pgxmock pool. Expectations are verified on cleanup.
func NewMock(t *testing.T) (*postgres.TxManager, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return postgres.NewTxManagerFromDB(mock), mock
}

// ExpectBegin expects a read-write transaction with the default statement timeout.
func ExpectBegin(mock pgxmock.PgxPoolIface) {
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	mock.ExpectExec("SET LOCAL statement_timeout").WillReturnResult(pgxmock.NewResult("SET", 0))
}

// ExpectBeginReadOnly expects a read-only transaction.
func ExpectBeginReadOnly(mock pgxmock.PgxPoolIface) {
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadOnly})
	mock.ExpectExec("SET LOCAL statement_timeout").WillReturnResult(pgxmock.NewResult("SET", 0))
}
