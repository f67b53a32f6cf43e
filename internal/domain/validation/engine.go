// Package validation commits documents into stock: it is the only writer of
// product current_stock and the only producer of ledger entries.
package validation

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/change"
	"stockledger/internal/domain/documents"
	"stockledger/internal/domain/ledger"
	"stockledger/pkg/logger"
)

var tracer = otel.Tracer("stockledger/validation")

// Outcome labels reported to Metrics.
const (
	OutcomeDone              = "done"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeRejected          = "rejected"
	OutcomeError             = "error"
)

// Metrics receives validation telemetry.
type Metrics interface {
	ObserveValidation(docType documents.Type, outcome string, elapsed time.Duration)
	AddLedgerEntries(docType documents.Type, n int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveValidation(documents.Type, string, time.Duration) {}
func (nopMetrics) AddLedgerEntries(documents.Type, int)                    {}

// Config wires the engine's collaborators.
type Config struct {
	TxManager tx.Manager
	Documents documents.Repository
	Products  product.Repository
	Ledger    ledger.Repository
	Notifier  change.Notifier
	Audit     audit.Recorder
	Policy    StockPolicy
	Metrics   Metrics
}

// Result is the outcome of a successful validation.
type Result struct {
	Document *documents.Document `json:"document"`
	Entries  []ledger.Entry      `json:"entries"`
}

// Engine validates documents.
type Engine struct {
	txm       tx.Manager
	documents documents.Repository
	products  product.Repository
	ledger    ledger.Repository
	notifier  change.Notifier
	audit     audit.Recorder
	policy    StockPolicy
	metrics   Metrics
}

var _ product.StockPoster = (*Engine)(nil)

// NewEngine creates a validation engine. Nil Notifier, Policy and Metrics
// default to no-op, DenyBackorders and no-op.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		txm:       cfg.TxManager,
		documents: cfg.Documents,
		products:  cfg.Products,
		ledger:    cfg.Ledger,
		notifier:  cfg.Notifier,
		audit:     cfg.Audit,
		policy:    cfg.Policy,
		metrics:   cfg.Metrics,
	}
	if e.notifier == nil {
		e.notifier = change.NopNotifier{}
	}
	if e.policy == nil {
		e.policy = DenyBackorders{}
	}
	if e.metrics == nil {
		e.metrics = nopMetrics{}
	}
	return e
}

// Validate moves a document to DONE, applying every item's delta to product
// stock and appending one ledger entry per item, all in one transaction.
// On any error nothing is applied and the document keeps its status.
//
// Cancellation of ctx after the call has started does not interrupt it.
func (e *Engine) Validate(ctx context.Context, docID id.ID) (*Result, error) {
	ctx = context.WithoutCancel(ctx)

	ctx, span := tracer.Start(ctx, "validation.Validate",
		trace.WithAttributes(attribute.String("document.id", docID.String())))
	defer span.End()

	start := time.Now()
	var (
		result  *Result
		docType documents.Type
	)

	err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		result, docType, err = e.validate(ctx, docID)
		return err
	})

	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.metrics.ObserveValidation(docType, outcomeOf(err), elapsed)
		logger.Warn(ctx, "document validation failed",
			"document_id", docID,
			"error", err)
		return nil, err
	}

	e.metrics.ObserveValidation(docType, OutcomeDone, elapsed)
	e.metrics.AddLedgerEntries(docType, len(result.Entries))
	span.SetAttributes(
		attribute.String("document.type", string(docType)),
		attribute.Int("ledger.entries", len(result.Entries)))

	logger.Info(ctx, "document validated",
		"document_id", docID,
		"type", docType,
		"reference", result.Document.Reference,
		"entries", len(result.Entries),
		"duration_ms", elapsed.Milliseconds())

	return result, nil
}

func (e *Engine) validate(ctx context.Context, docID id.ID) (*Result, documents.Type, error) {
	doc, err := e.documents.GetForUpdate(ctx, docID)
	if err != nil {
		return nil, "", err
	}
	if doc.Status.IsTerminal() {
		return nil, doc.Type, apperror.NewInvalidState(fmt.Sprintf("document is %s", doc.Status)).
			WithDetail("document_id", docID.String()).
			WithDetail("status", string(doc.Status))
	}

	items, err := e.documents.GetItems(ctx, docID)
	if err != nil {
		return nil, doc.Type, fmt.Errorf("load items: %w", err)
	}
	if len(items) == 0 {
		return nil, doc.Type, apperror.NewEmptyDocument(docID.String())
	}

	deltas := make([]int64, len(items))
	net := make(map[id.ID]int64, len(items))
	order := make([]id.ID, 0, len(items))
	for i, item := range items {
		d, err := Delta(doc.Type, item.Quantity)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				appErr.WithDetail("item_id", item.ID.String())
			}
			return nil, doc.Type, err
		}
		deltas[i] = d
		if _, seen := net[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		sum, ok := addStock(net[item.ProductID], d)
		if !ok {
			return nil, doc.Type, apperror.NewInvalidQuantity("document quantities overflow").
				WithDetail("product_id", item.ProductID.String()).
				WithDetail("item_id", item.ID.String())
		}
		net[item.ProductID] = sum
	}

	lockOrder := slices.Clone(order)
	slices.SortFunc(lockOrder, id.Compare)
	products, err := e.products.GetForUpdateBatch(ctx, lockOrder)
	if err != nil {
		return nil, doc.Type, fmt.Errorf("lock products: %w", err)
	}

	for _, pid := range order {
		p, ok := products[pid]
		if !ok {
			return nil, doc.Type, apperror.NewUnknownEntity("product", pid.String())
		}
		if err := e.checkStock(ctx, doc, p, net[pid]); err != nil {
			return nil, doc.Type, err
		}
	}

	for _, pid := range order {
		if net[pid] == 0 {
			continue
		}
		stock, err := e.products.ApplyStockDelta(ctx, pid, net[pid])
		if err != nil {
			return nil, doc.Type, fmt.Errorf("apply stock delta: %w", err)
		}
		products[pid].CurrentStock = stock
	}

	now := time.Now().UTC()
	entries := make([]ledger.Entry, len(items))
	for i, item := range items {
		entries[i] = ledger.NewEntry(doc, item, deltas[i], now)
	}
	if err := e.ledger.Append(ctx, entries); err != nil {
		return nil, doc.Type, fmt.Errorf("append ledger: %w", err)
	}

	from := doc.Status
	doc.MarkDone(now)
	if err := e.documents.UpdateStatus(ctx, doc); err != nil {
		return nil, doc.Type, fmt.Errorf("mark document done: %w", err)
	}
	doc.Items = items

	changes := make([]change.Change, 0, len(entries)+len(order)+1)
	for _, entry := range entries {
		changes = append(changes, change.New(change.KindLedger, entry.ID))
	}
	for _, pid := range order {
		changes = append(changes, change.New(change.KindProduct, pid))
	}
	changes = append(changes, change.New(change.KindDocument, doc.ID))
	if err := e.notifier.Notify(ctx, changes...); err != nil {
		return nil, doc.Type, fmt.Errorf("notify: %w", err)
	}

	if err := audit.Log(ctx, e.audit, audit.EntityDocument, doc.ID, audit.ActionValidate, map[string]any{
		"status":  map[string]any{"old": string(from), "new": string(documents.StatusDone)},
		"entries": len(entries),
	}); err != nil {
		return nil, doc.Type, err
	}

	return &Result{Document: doc, Entries: entries}, doc.Type, nil
}

// checkStock rejects a net decrease that would leave the product below zero
// unless the policy allows it.
func (e *Engine) checkStock(ctx context.Context, doc *documents.Document, p *product.Product, net int64) error {
	resulting, ok := addStock(p.CurrentStock, net)
	if !ok {
		return apperror.NewInvalidQuantity("resulting stock out of range").
			WithDetail("product_id", p.ID.String()).
			WithDetail("current_stock", p.CurrentStock).
			WithDetail("delta", net)
	}
	if net >= 0 || resulting >= 0 {
		return nil
	}

	allowed, err := e.policy.AllowNegative(ctx, StockCheck{
		Product:        p,
		DocumentType:   doc.Type,
		CurrentStock:   p.CurrentStock,
		ResultingStock: resulting,
	})
	if err != nil {
		return err
	}
	if allowed {
		return nil
	}
	return apperror.NewInsufficientStock(p.ID.String(), -net, p.CurrentStock).
		WithDetail("sku", p.SKU).
		WithDetail("document_id", doc.ID.String())
}

// HasHistory implements product.StockPoster.
func (e *Engine) HasHistory(ctx context.Context, productID id.ID) (bool, error) {
	return e.ledger.HasHistory(ctx, productID)
}

// PostOpeningBalance implements product.StockPoster. It creates and validates
// an ADJUSTMENT document referenced OPEN-<SKU> within the caller's transaction.
func (e *Engine) PostOpeningBalance(ctx context.Context, p *product.Product, quantity int64) error {
	return e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		reference, err := e.openingReference(ctx, p.SKU)
		if err != nil {
			return err
		}

		doc := documents.NewDocument(documents.TypeAdjustment, reference, time.Time{})
		if err := e.documents.Create(ctx, doc); err != nil {
			return fmt.Errorf("create opening document: %w", err)
		}
		item := &documents.Item{
			ID:         id.New(),
			DocumentID: doc.ID,
			ProductID:  p.ID,
			Quantity:   quantity,
			CreatedAt:  doc.CreatedAt,
		}
		if err := e.documents.AddItem(ctx, item); err != nil {
			return fmt.Errorf("add opening item: %w", err)
		}
		if err := e.notifier.Notify(ctx,
			change.New(change.KindDocument, doc.ID),
			change.New(change.KindDocumentItem, item.ID),
		); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
		if err := audit.Log(ctx, e.audit, audit.EntityDocument, doc.ID, audit.ActionCreate, doc.Snapshot()); err != nil {
			return err
		}

		_, err = e.Validate(ctx, doc.ID)
		return err
	})
}

func (e *Engine) openingReference(ctx context.Context, sku string) (string, error) {
	base := "OPEN-" + sku
	reference := base
	for n := 2; ; n++ {
		exists, err := e.documents.ExistsByReference(ctx, reference)
		if err != nil {
			return "", fmt.Errorf("check reference: %w", err)
		}
		if !exists {
			return reference, nil
		}
		reference = fmt.Sprintf("%s-%d", base, n)
	}
}

func outcomeOf(err error) string {
	switch {
	case apperror.Is(err, apperror.CodeInsufficientStock):
		return OutcomeInsufficientStock
	case apperror.Is(err, apperror.CodeInvalidState),
		apperror.Is(err, apperror.CodeEmptyDocument),
		apperror.Is(err, apperror.CodeInvalidQuantity),
		apperror.Is(err, apperror.CodeUnknownEntity):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}
