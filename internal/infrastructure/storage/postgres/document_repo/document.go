// Package document_repo provides PostgreSQL implementations for document repositories.
package document_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/documents"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	documentTable = "documents"
	itemTable     = "document_items"

	constraintReference = "documents_reference_key"
	constraintItemDoc   = "document_items_document_id_fkey"
)

var documentColumns = []string{
	"id", "type", "status", "reference", "date", "validated_at", "version", "created_at", "updated_at",
}

var itemColumns = []string{"id", "document_id", "product_id", "quantity", "line_no", "created_at"}

// DocumentRepo implements documents.Repository.
type DocumentRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ documents.Repository = (*DocumentRepo)(nil)

// NewDocumentRepo creates a new document repository.
func NewDocumentRepo(txm *postgres.TxManager) *DocumentRepo {
	return &DocumentRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *documents.Document) error {
	sql, args, err := r.builder.
		Insert(documentTable).
		Columns(documentColumns...).
		Values(doc.ID, doc.Type, doc.Status, doc.Reference, doc.Date, doc.ValidatedAt,
			doc.Version, doc.CreatedAt, doc.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if constraint, dup := postgres.UniqueViolation(err); dup && constraint == constraintReference {
			return apperror.NewDuplicate("document", "reference", doc.Reference)
		}
		return postgres.MapError(fmt.Errorf("insert document: %w", err))
	}
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, docID id.ID) (*documents.Document, error) {
	return r.get(ctx, docID, "")
}

// GetForUpdate takes the document row lock that serializes validations of one document.
func (r *DocumentRepo) GetForUpdate(ctx context.Context, docID id.ID) (*documents.Document, error) {
	if r.txm.GetTx(ctx) == nil {
		return nil, fmt.Errorf("GetForUpdate requires transaction context")
	}
	return r.get(ctx, docID, "FOR UPDATE")
}

func (r *DocumentRepo) get(ctx context.Context, docID id.ID, suffix string) (*documents.Document, error) {
	q := r.builder.Select(documentColumns...).From(documentTable).Where(squirrel.Eq{"id": docID})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var doc documents.Document
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewUnknownEntity("document", docID.String())
		}
		return nil, postgres.MapError(fmt.Errorf("get document: %w", err))
	}
	return &doc, nil
}

func (r *DocumentRepo) UpdateStatus(ctx context.Context, doc *documents.Document) error {
	var version int
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, `
		UPDATE documents
		SET status = $1, validated_at = $2, updated_at = $3, version = version + 1
		WHERE id = $4 AND version = $5
		RETURNING version
	`, doc.Status, doc.ValidatedAt, doc.UpdatedAt, doc.ID, doc.Version).Scan(&version)
	if err != nil {
		if postgres.IsNoRows(err) {
			if _, getErr := r.GetByID(ctx, doc.ID); getErr != nil {
				return getErr
			}
			return apperror.NewConcurrencyConflict("document", doc.ID.String())
		}
		return postgres.MapError(fmt.Errorf("update document status: %w", err))
	}
	doc.Version = version
	return nil
}

func (r *DocumentRepo) Delete(ctx context.Context, docID id.ID) error {
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, `DELETE FROM documents WHERE id = $1`, docID)
	if err != nil {
		if _, fk := postgres.ForeignKeyViolation(err); fk {
			return apperror.NewInvalidState("document has ledger entries").WithDetail("document_id", docID.String())
		}
		return postgres.MapError(fmt.Errorf("delete document: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewUnknownEntity("document", docID.String())
	}
	return nil
}

func (r *DocumentRepo) List(ctx context.Context, filter documents.ListFilter) (domain.ListResult[*documents.Document], error) {
	page := filter.Page.Normalize()
	result := domain.ListResult[*documents.Document]{Items: []*documents.Document{}, Limit: page.Limit, Offset: page.Offset}

	where := squirrel.And{}
	if filter.Type != "" {
		where = append(where, squirrel.Eq{"type": filter.Type})
	}
	if filter.Status != "" {
		where = append(where, squirrel.Eq{"status": filter.Status})
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		where = append(where, squirrel.ILike{"reference": "%" + postgres.EscapeLike(s) + "%"})
	}

	q := r.txm.GetQuerier(ctx)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From(documentTable).Where(where).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, postgres.MapError(fmt.Errorf("count documents: %w", err))
	}

	sql, args, err := r.builder.
		Select(documentColumns...).
		From(documentTable).
		Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build list: %w", err)
	}
	if err := pgxscan.Select(ctx, q, &result.Items, sql, args...); err != nil {
		return result, postgres.MapError(fmt.Errorf("list documents: %w", err))
	}
	return result, nil
}

func (r *DocumentRepo) ExistsByReference(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := r.txm.GetQuerier(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE reference = $1)`, reference).Scan(&exists)
	if err != nil {
		return false, postgres.MapError(fmt.Errorf("check reference: %w", err))
	}
	return exists, nil
}

// AddItem appends the line after the current last line number.
// Callers hold the document row lock, so line numbers do not race.
func (r *DocumentRepo) AddItem(ctx context.Context, item *documents.Item) error {
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, `
		INSERT INTO document_items (id, document_id, product_id, quantity, line_no, created_at)
		SELECT $1, $2, $3, $4, COALESCE(MAX(line_no), 0) + 1, $5
		FROM document_items
		WHERE document_id = $2
		RETURNING line_no
	`, item.ID, item.DocumentID, item.ProductID, item.Quantity, item.CreatedAt).Scan(&item.LineNo)
	if err != nil {
		if constraint, fk := postgres.ForeignKeyViolation(err); fk {
			if constraint == constraintItemDoc {
				return apperror.NewUnknownEntity("document", item.DocumentID.String())
			}
			return apperror.NewUnknownEntity("product", item.ProductID.String())
		}
		return postgres.MapError(fmt.Errorf("insert document item: %w", err))
	}
	return nil
}

func (r *DocumentRepo) RemoveItem(ctx context.Context, docID, itemID id.ID) error {
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM document_items WHERE id = $1 AND document_id = $2`, itemID, docID)
	if err != nil {
		return postgres.MapError(fmt.Errorf("delete document item: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewUnknownEntity("document item", itemID.String())
	}
	return nil
}

func (r *DocumentRepo) GetItems(ctx context.Context, docID id.ID) ([]documents.Item, error) {
	sql, args, err := r.builder.
		Select(itemColumns...).
		From(itemTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build items query: %w", err)
	}

	items := []documents.Item{}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("get document items: %w", err))
	}
	return items, nil
}
