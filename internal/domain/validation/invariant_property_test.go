package validation_test

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/documents"
	"stockledger/internal/domain/reports"
)

// Every product's current stock equals the sum of its ledger entries after any
// sequence of validations, accepted or rejected.
func TestProperty_StockMatchesLedgerSum(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("current_stock == sum(ledger.quantity_change)", prop.ForAll(
		func(types []int, quantities []int64, targets []int) bool {
			f := newFixture(t)
			ctx := context.Background()
			reportSvc := reports.NewService(f.store.Reports())

			products := []*product.Product{
				f.product(t, "P-0", 5),
				f.product(t, "P-1", 0),
				f.product(t, "P-2", 12),
			}

			n := min(len(types), len(quantities), len(targets))
			for i := range n {
				typ := documents.Types[types[i]]
				p := products[targets[i]]

				doc, err := f.docs.CreateDocument(ctx, documents.CreateRequest{Type: typ})
				if err != nil {
					t.Logf("create document: %v", err)
					return false
				}
				if _, err := f.docs.AddItem(ctx, doc.ID, documents.AddItemRequest{ProductID: p.ID, Quantity: quantities[i]}); err != nil {
					// non-positive quantity on a non-adjustment document
					continue
				}

				before, _ := f.products.Get(ctx, p.ID)
				if _, err := f.engine.Validate(ctx, doc.ID); err != nil {
					after, _ := f.products.Get(ctx, p.ID)
					if after.CurrentStock != before.CurrentStock {
						t.Logf("rejected validation changed stock: %v", err)
						return false
					}
				}
			}

			for _, p := range products {
				current, err := f.products.Get(ctx, p.ID)
				if err != nil {
					return false
				}
				sum, err := f.ledger.SumByProduct(ctx, p.ID)
				if err != nil {
					return false
				}
				if current.CurrentStock != sum {
					t.Logf("%s: stock %d != ledger %d", p.SKU, current.CurrentStock, sum)
					return false
				}
				if current.CurrentStock < 0 {
					t.Logf("%s went negative under deny policy", p.SKU)
					return false
				}
			}

			rec, err := reportSvc.Reconcile(ctx)
			return err == nil && rec.Consistent
		},
		gen.SliceOfN(15, gen.IntRange(0, len(documents.Types)-1)),
		gen.SliceOfN(15, gen.Int64Range(-10, 20)),
		gen.SliceOfN(15, gen.IntRange(0, 2)),
	))

	properties.TestingRun(t)
}
