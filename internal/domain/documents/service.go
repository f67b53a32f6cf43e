package documents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/numerator"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/change"
	"stockledger/pkg/logger"
	"stockledger/pkg/validator"
)

// NumeratorStrategy is used for generated references.
const NumeratorStrategy = numerator.StrategyStrict

// ServiceConfig configures the document service.
type ServiceConfig struct {
	Repo      Repository
	Products  ProductLookup
	TxManager tx.Manager
	Numerator numerator.Generator
	Notifier  change.Notifier
	Audit     audit.Recorder
}

// Service provides business operations for documents that do not move stock.
// Validation lives in the validation engine.
type Service struct {
	repo      Repository
	products  ProductLookup
	txm       tx.Manager
	numerator numerator.Generator
	notifier  change.Notifier
	audit     audit.Recorder
}

// NewService creates a new document service.
func NewService(cfg ServiceConfig) *Service {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = change.NopNotifier{}
	}
	return &Service{
		repo:      cfg.Repo,
		products:  cfg.Products,
		txm:       cfg.TxManager,
		numerator: cfg.Numerator,
		notifier:  notifier,
		audit:     cfg.Audit,
	}
}

// CreateDocument creates a DRAFT document with no items.
// An empty reference is generated as PREFIX-YYYY-NNNNN.
func (s *Service) CreateDocument(ctx context.Context, req CreateRequest) (*Document, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}

	var date time.Time
	if req.Date != nil {
		date = req.Date.UTC()
	}
	doc := NewDocument(req.Type, strings.TrimSpace(req.Reference), date)

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if doc.Reference == "" {
			if s.numerator == nil {
				return apperror.NewValidation("reference is required").WithDetail("field", "reference")
			}
			cfg := numerator.DefaultConfig(doc.Type.NumberPrefix())
			number, err := s.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: NumeratorStrategy}, doc.Date)
			if err != nil {
				return fmt.Errorf("generate reference: %w", err)
			}
			doc.Reference = number
		}

		exists, err := s.repo.ExistsByReference(ctx, doc.Reference)
		if err != nil {
			return fmt.Errorf("check reference: %w", err)
		}
		if exists {
			return apperror.NewDuplicate("document", "reference", doc.Reference)
		}

		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		if err := s.notifier.Notify(ctx, change.New(change.KindDocument, doc.ID)); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
		return audit.Log(ctx, s.audit, audit.EntityDocument, doc.ID, audit.ActionCreate, doc.Snapshot())
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "document created",
		"id", doc.ID,
		"type", doc.Type,
		"reference", doc.Reference)

	return doc, nil
}

// AddItem appends a line to a non-terminal document.
func (s *Service) AddItem(ctx context.Context, docID id.ID, req AddItemRequest) (*Item, error) {
	if id.IsNil(req.ProductID) {
		return nil, apperror.NewValidation("productId is required").WithDetail("field", "productId")
	}

	var item *Item
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.CanModify(); err != nil {
			return err
		}
		if err := ValidateQuantity(doc.Type, req.Quantity); err != nil {
			return err
		}

		if _, err := s.products.GetByID(ctx, req.ProductID); err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewUnknownEntity("product", req.ProductID.String())
			}
			return fmt.Errorf("lookup product: %w", err)
		}

		item = &Item{
			ID:         id.New(),
			DocumentID: docID,
			ProductID:  req.ProductID,
			Quantity:   req.Quantity,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.repo.AddItem(ctx, item); err != nil {
			return fmt.Errorf("add item: %w", err)
		}
		if err := s.notifier.Notify(ctx,
			change.New(change.KindDocumentItem, item.ID),
			change.New(change.KindDocument, docID),
		); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
		return audit.Log(ctx, s.audit, audit.EntityDocument, docID, audit.ActionUpdate, map[string]any{
			"itemAdded": map[string]any{
				"itemId":    item.ID.String(),
				"productId": item.ProductID.String(),
				"quantity":  item.Quantity,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	return item, nil
}

// RemoveItem deletes a line from a non-terminal document.
func (s *Service) RemoveItem(ctx context.Context, docID, itemID id.ID) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if err := doc.CanModify(); err != nil {
			return err
		}
		if err := s.repo.RemoveItem(ctx, docID, itemID); err != nil {
			return err
		}
		if err := s.notifier.Notify(ctx,
			change.New(change.KindDocumentItem, itemID),
			change.New(change.KindDocument, docID),
		); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
		return audit.Log(ctx, s.audit, audit.EntityDocument, docID, audit.ActionUpdate, map[string]any{
			"itemRemoved": itemID.String(),
		})
	})
}

// SetStatus performs a manual, non-validating transition.
// Repeating the current status is a no-op.
func (s *Service) SetStatus(ctx context.Context, docID id.ID, status Status) (*Document, error) {
	if !status.IsValid() {
		return nil, apperror.NewValidation(fmt.Sprintf("unknown status %q", status)).WithDetail("field", "status")
	}
	if status == StatusDone {
		return nil, apperror.NewInvalidState("documents reach DONE only through validation; use validate")
	}

	var doc *Document
	changed := false
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if !CanTransition(doc.Status, status) {
			return apperror.NewInvalidState(fmt.Sprintf("cannot change status from %s to %s", doc.Status, status)).
				WithDetail("document_id", docID.String()).
				WithDetail("from", string(doc.Status)).
				WithDetail("to", string(status))
		}
		if doc.Status == status {
			return nil
		}

		from := doc.Status
		doc.Status = status
		doc.UpdatedAt = time.Now().UTC()
		if err := s.repo.UpdateStatus(ctx, doc); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		changed = true

		if err := s.notifier.Notify(ctx, change.New(change.KindDocument, docID)); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
		return audit.Log(ctx, s.audit, audit.EntityDocument, docID, audit.ActionStatusChange, map[string]any{
			"status": map[string]any{"old": string(from), "new": string(status)},
		})
	})
	if err != nil {
		return nil, err
	}

	if changed {
		logger.Info(ctx, "document status changed", "id", docID, "status", status)
	}
	return doc, nil
}

// Cancel moves a non-terminal document to CANCELED.
func (s *Service) Cancel(ctx context.Context, docID id.ID) (*Document, error) {
	return s.SetStatus(ctx, docID, StatusCanceled)
}

// GetDocument returns a document with its items.
func (s *Service) GetDocument(ctx context.Context, docID id.ID) (*Document, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.GetItems(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	doc.Items = items

	return doc, nil
}

// ListDocuments returns documents newest first.
func (s *Service) ListDocuments(ctx context.Context, filter ListFilter) (domain.ListResult[*Document], error) {
	if filter.Type != "" && !filter.Type.IsValid() {
		return domain.ListResult[*Document]{}, apperror.NewValidation(fmt.Sprintf("unknown type %q", filter.Type)).
			WithDetail("field", "type")
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return domain.ListResult[*Document]{}, apperror.NewValidation(fmt.Sprintf("unknown status %q", filter.Status)).
			WithDetail("field", "status")
	}
	filter.Page = filter.Page.Normalize()
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.List(ctx, filter)
}

// Delete removes a DRAFT or CANCELED document together with its items.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if doc.Status != StatusDraft && doc.Status != StatusCanceled {
			return apperror.NewInvalidState(fmt.Sprintf("cannot delete %s document", doc.Status)).
				WithDetail("document_id", docID.String()).
				WithDetail("status", string(doc.Status))
		}
		if err := s.repo.Delete(ctx, docID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		if err := s.notifier.Notify(ctx, change.New(change.KindDocument, docID)); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
		return audit.Log(ctx, s.audit, audit.EntityDocument, docID, audit.ActionDelete, doc.Snapshot())
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "document deleted", "id", docID)
	return nil
}
