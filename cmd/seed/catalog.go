package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"stockledger/internal/app"
	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/documents"
	"stockledger/pkg/logger"
)

// seedCatalog creates the demo products that do not exist yet and returns
// all of them keyed by SKU.
func seedCatalog(ctx context.Context, s *app.Services, log *logger.Logger) (map[string]*product.Product, error) {
	out := make(map[string]*product.Product, len(catalog))
	for _, d := range catalog {
		existing, err := s.Products.GetBySKU(ctx, d.sku)
		if err == nil {
			out[d.sku] = existing
			continue
		}
		if !apperror.Is(err, apperror.CodeUnknownEntity) {
			return nil, fmt.Errorf("look up %s: %w", d.sku, err)
		}

		p, err := s.Products.Create(ctx, product.CreateRequest{
			SKU:               d.sku,
			Name:              d.name,
			Category:          d.category,
			Unit:              d.unit,
			Price:             decimal.RequireFromString(d.price),
			MinStockThreshold: d.threshold,
			InitialStock:      d.opening,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", d.sku, err)
		}
		log.Infow("created product", "sku", p.SKU, "stock", p.CurrentStock)
		out[d.sku] = p
	}
	return out, nil
}

type demoLine struct {
	sku      string
	quantity int64
}

type demoDocument struct {
	docType  documents.Type
	lines    []demoLine
	validate bool
}

var demoDocuments = []demoDocument{
	{documents.TypeReceipt, []demoLine{{"BRKR-16A", 40}, {"VALVE-BALL-15", 25}}, true},
	{documents.TypeDelivery, []demoLine{{"BOLT-M8", 300}, {"NUT-M8", 300}, {"WASH-M8", 150}}, true},
	{documents.TypeAdjustment, []demoLine{{"GLOVE-NIT-L", -2}}, true},
	{documents.TypeTransfer, []demoLine{{"CABLE-3X2.5", 50}}, true},
	{documents.TypeDelivery, []demoLine{{"PIPE-CU-15", 12}, {"VALVE-BALL-15", 6}}, false},
	{documents.TypeReceipt, []demoLine{{"WASH-M8", 1000}}, false},
}

// seedDocuments posts a handful of documents. Unvalidated ones are left READY
// so the dashboard shows pending work.
func seedDocuments(ctx context.Context, s *app.Services, products map[string]*product.Product, log *logger.Logger) error {
	for _, d := range demoDocuments {
		doc, err := s.Documents.CreateDocument(ctx, documents.CreateRequest{Type: d.docType})
		if err != nil {
			return fmt.Errorf("create %s: %w", d.docType, err)
		}
		for _, line := range d.lines {
			p, ok := products[line.sku]
			if !ok {
				return fmt.Errorf("unknown demo product %s", line.sku)
			}
			if _, err := s.Documents.AddItem(ctx, doc.ID, documents.AddItemRequest{
				ProductID: p.ID,
				Quantity:  line.quantity,
			}); err != nil {
				return fmt.Errorf("add %s to %s: %w", line.sku, doc.Reference, err)
			}
		}

		if !d.validate {
			if _, err := s.Documents.SetStatus(ctx, doc.ID, documents.StatusReady); err != nil {
				return fmt.Errorf("mark %s ready: %w", doc.Reference, err)
			}
			log.Infow("created document", "reference", doc.Reference, "status", documents.StatusReady)
			continue
		}

		res, err := s.Engine.Validate(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("validate %s: %w", doc.Reference, err)
		}
		log.Infow("validated document", "reference", doc.Reference, "entries", len(res.Entries))
	}
	return nil
}
