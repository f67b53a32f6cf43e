// Package export renders ledger data as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
)

// ContentTypeXLSX is the MIME type of the generated workbook.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const ledgerSheet = "Ledger"

var ledgerHeadings = []any{"Date", "Reference", "Type", "SKU", "Product ID", "Quantity Change", "Document ID", "Item ID"}

// SKUFunc resolves a product id to its SKU. It may return "".
type SKUFunc func(productID id.ID) string

// WriteLedgerXLSX writes entries as a single-sheet workbook, one row per entry
// in the given order.
func WriteLedgerXLSX(w io.Writer, entries []ledger.Entry, sku SKUFunc) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ledgerSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(ledgerSheet)
	if err != nil {
		return fmt.Errorf("create stream writer: %w", err)
	}
	if err := sw.SetColWidth(1, 1, 22); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := sw.SetColWidth(2, 2, 20); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := sw.SetRow("A1", ledgerHeadings); err != nil {
		return fmt.Errorf("write headings: %w", err)
	}

	for i, e := range entries {
		skuValue := ""
		if sku != nil {
			skuValue = sku(e.ProductID)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.Reference,
			string(e.Type),
			skuValue,
			e.ProductID.String(),
			e.QuantityChange,
			e.DocumentID.String(),
			e.ItemID.String(),
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
