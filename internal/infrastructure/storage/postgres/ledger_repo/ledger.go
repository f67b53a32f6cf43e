// Package ledger_repo provides the PostgreSQL ledger repository.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres"
)

const ledgerTable = "ledger"

var ledgerColumns = []string{
	"id", "product_id", "quantity_change", "type", "reference", "document_id", "item_id", "created_at",
}

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txm      *postgres.TxManager
	inserter *postgres.BatchInserter
	builder  squirrel.StatementBuilderType
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// NewLedgerRepo creates a new ledger repository.
func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:      txm,
		inserter: postgres.NewBatchInserter(txm),
		builder:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append copies entries into the ledger in one round trip.
func (r *LedgerRepo) Append(ctx context.Context, entries []ledger.Entry) error {
	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{e.ID, e.ProductID, e.QuantityChange, string(e.Type), e.Reference, e.DocumentID, e.ItemID, e.CreatedAt}
	}
	if _, err := r.inserter.CopyFromSlice(ctx, ledgerTable, ledgerColumns, rows); err != nil {
		return fmt.Errorf("append ledger entries: %w", err)
	}
	return nil
}

func (r *LedgerRepo) Query(ctx context.Context, q ledger.Query) ([]ledger.Entry, error) {
	page := q.Page.Normalize()

	where := squirrel.And{}
	if q.ProductID != nil {
		where = append(where, squirrel.Eq{"product_id": *q.ProductID})
	}
	if q.DocumentID != nil {
		where = append(where, squirrel.Eq{"document_id": *q.DocumentID})
	}
	if q.Since != nil {
		where = append(where, squirrel.GtOrEq{"created_at": *q.Since})
	}

	sql, args, err := r.builder.
		Select(ledgerColumns...).
		From(ledgerTable).
		Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ledger query: %w", err)
	}

	entries := []ledger.Entry{}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("query ledger: %w", err))
	}
	return entries, nil
}

func (r *LedgerRepo) SumByProduct(ctx context.Context, productID id.ID) (int64, error) {
	var sum int64
	err := r.txm.GetQuerier(ctx).QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity_change), 0)::BIGINT FROM ledger WHERE product_id = $1`, productID).Scan(&sum)
	if err != nil {
		return 0, postgres.MapError(fmt.Errorf("sum ledger: %w", err))
	}
	return sum, nil
}

func (r *LedgerRepo) HasHistory(ctx context.Context, productID id.ID) (bool, error) {
	var exists bool
	err := r.txm.GetQuerier(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ledger WHERE product_id = $1)`, productID).Scan(&exists)
	if err != nil {
		return false, postgres.MapError(fmt.Errorf("check ledger history: %w", err))
	}
	return exists, nil
}
