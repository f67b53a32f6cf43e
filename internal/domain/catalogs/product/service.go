package product

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/change"
	"stockledger/pkg/logger"
	"stockledger/pkg/validator"
)

// StockPoster moves product stock through the ledger.
// The validation engine implements it; the catalog never writes current_stock itself.
type StockPoster interface {
	// HasHistory reports whether any ledger entry exists for the product.
	HasHistory(ctx context.Context, productID id.ID) (bool, error)

	// PostOpeningBalance posts quantity as a validated ADJUSTMENT document.
	PostOpeningBalance(ctx context.Context, p *Product, quantity int64) error
}

// ServiceConfig configures the product service.
type ServiceConfig struct {
	Repo      Repository
	TxManager tx.Manager
	Stock     StockPoster
	Notifier  change.Notifier
	Audit     audit.Recorder
}

// Service provides business operations for the product catalog.
type Service struct {
	repo     Repository
	txm      tx.Manager
	stock    StockPoster
	notifier change.Notifier
	audit    audit.Recorder
	hooks    *domain.HookRegistry[*Product]
}

// NewService creates a new product service.
func NewService(cfg ServiceConfig) *Service {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = change.NopNotifier{}
	}
	return &Service{
		repo:     cfg.Repo,
		txm:      cfg.TxManager,
		stock:    cfg.Stock,
		notifier: notifier,
		audit:    cfg.Audit,
		hooks:    domain.NewHookRegistry[*Product](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Product] {
	return s.hooks
}

// Create adds a product. A non-zero InitialStock is posted through the ledger
// in the same transaction.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Product, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &Product{
		ID:                id.New(),
		SKU:               strings.TrimSpace(req.SKU),
		Name:              strings.TrimSpace(req.Name),
		Category:          strings.TrimSpace(req.Category),
		Unit:              strings.TrimSpace(req.Unit),
		Price:             req.Price,
		MinStockThreshold: req.MinStockThreshold,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if p.Unit == "" {
		p.Unit = DefaultUnit
	}

	if err := s.hooks.Run(ctx, domain.BeforeCreate, p); err != nil {
		return nil, err
	}
	if err := p.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.ensureSKUFree(ctx, p.SKU, id.Nil()); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create product: %w", err)
		}
		if err := s.notifier.Notify(ctx, change.New(change.KindProduct, p.ID)); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
		if err := audit.Log(ctx, s.audit, audit.EntityProduct, p.ID, audit.ActionCreate, p.Snapshot()); err != nil {
			return err
		}

		if req.InitialStock != 0 {
			if err := s.postOpening(ctx, p, req.InitialStock); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.hooks.Run(ctx, domain.AfterCreate, p); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "product created",
		"id", p.ID,
		"sku", p.SKU,
		"initial_stock", p.CurrentStock)

	return p, nil
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, productID id.ID, req UpdateRequest) (*Product, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	if req.MinStockThreshold != nil && *req.MinStockThreshold < 0 {
		return nil, apperror.NewValidation("minStockThreshold must not be negative").
			WithDetail("field", "minStockThreshold")
	}

	var p *Product
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetByID(ctx, productID)
		if err != nil {
			return err
		}
		if req.Version != nil && *req.Version != p.Version {
			return apperror.NewConcurrencyConflict("product", productID).
				WithDetail("expected_version", *req.Version).
				WithDetail("actual_version", p.Version)
		}

		before := p.Snapshot()
		applyUpdate(p, req)
		p.UpdatedAt = time.Now().UTC()

		if err := s.hooks.Run(ctx, domain.BeforeUpdate, p); err != nil {
			return err
		}
		if err := p.Validate(ctx); err != nil {
			return err
		}
		if before["sku"] != p.SKU {
			if err := s.ensureSKUFree(ctx, p.SKU, p.ID); err != nil {
				return err
			}
		}

		if err := s.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("update product: %w", err)
		}

		if req.CurrentStock != nil && *req.CurrentStock != p.CurrentStock {
			if err := s.setOpeningStock(ctx, p, *req.CurrentStock); err != nil {
				return err
			}
		}

		if err := s.notifier.Notify(ctx, change.New(change.KindProduct, p.ID)); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
		return audit.Log(ctx, s.audit, audit.EntityProduct, p.ID, audit.ActionUpdate, audit.Diff(before, p.Snapshot()))
	})
	if err != nil {
		return nil, err
	}

	if err := s.hooks.Run(ctx, domain.AfterUpdate, p); err != nil {
		logger.Warn(ctx, "after-update hook failed", "error", err)
	}

	return p, nil
}

// Delete removes a product that nothing references.
func (s *Service) Delete(ctx context.Context, productID id.ID) error {
	var p *Product
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetByID(ctx, productID)
		if err != nil {
			return err
		}

		referenced, err := s.repo.IsReferenced(ctx, productID)
		if err != nil {
			return fmt.Errorf("check references: %w", err)
		}
		if referenced {
			return apperror.NewReferencedEntity("product", productID)
		}

		if err := s.hooks.Run(ctx, domain.BeforeDelete, p); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, productID); err != nil {
			return fmt.Errorf("delete product: %w", err)
		}
		if err := s.notifier.Notify(ctx, change.New(change.KindProduct, productID)); err != nil {
			return fmt.Errorf("notify: %w", err)
		}
		return audit.Log(ctx, s.audit, audit.EntityProduct, productID, audit.ActionDelete, p.Snapshot())
	})
	if err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, domain.AfterDelete, p); err != nil {
		logger.Warn(ctx, "after-delete hook failed", "error", err)
	}

	logger.Info(ctx, "product deleted", "id", productID, "sku", p.SKU)
	return nil
}

// Get returns a product by id.
func (s *Service) Get(ctx context.Context, productID id.ID) (*Product, error) {
	return s.repo.GetByID(ctx, productID)
}

// GetBySKU returns a product by its SKU.
func (s *Service) GetBySKU(ctx context.Context, sku string) (*Product, error) {
	return s.repo.GetBySKU(ctx, sku)
}

// List returns products ordered by name.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Product], error) {
	filter.Page = filter.Page.Normalize()
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.List(ctx, filter)
}

// setOpeningStock turns a direct stock write into an opening balance.
// Once the ledger has history, stock can only move through documents.
func (s *Service) setOpeningStock(ctx context.Context, p *Product, target int64) error {
	if s.stock == nil {
		return apperror.NewInvalidState("current stock is maintained by document validation")
	}
	hasHistory, err := s.stock.HasHistory(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("check ledger history: %w", err)
	}
	if hasHistory {
		return apperror.NewInvalidState("current stock is maintained by document validation; post an ADJUSTMENT document").
			WithDetail("product_id", p.ID)
	}
	return s.postOpening(ctx, p, target-p.CurrentStock)
}

func (s *Service) postOpening(ctx context.Context, p *Product, quantity int64) error {
	if s.stock == nil {
		return apperror.NewInvalidState("opening stock requires the validation engine")
	}
	if err := s.stock.PostOpeningBalance(ctx, p, quantity); err != nil {
		return fmt.Errorf("post opening balance: %w", err)
	}

	fresh, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *fresh
	return nil
}

func (s *Service) ensureSKUFree(ctx context.Context, sku string, self id.ID) error {
	existing, err := s.repo.GetBySKU(ctx, sku)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("check sku: %w", err)
	}
	if existing.ID != self {
		return apperror.NewDuplicate("product", "sku", sku)
	}
	return nil
}

func applyUpdate(p *Product, req UpdateRequest) {
	if req.SKU != nil {
		p.SKU = strings.TrimSpace(*req.SKU)
	}
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		p.Category = strings.TrimSpace(*req.Category)
	}
	if req.Unit != nil {
		p.Unit = strings.TrimSpace(*req.Unit)
		if p.Unit == "" {
			p.Unit = DefaultUnit
		}
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.MinStockThreshold != nil {
		p.MinStockThreshold = *req.MinStockThreshold
	}
}
