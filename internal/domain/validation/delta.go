package validation

import (
	"fmt"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/documents"
)

// Delta returns the stock change an item of the given type and quantity applies.
//
//	RECEIPT     +q  (q > 0)
//	DELIVERY    -q  (q > 0)
//	TRANSFER     0  (q > 0, recorded for traceability only)
//	ADJUSTMENT   q  (any sign, zero is recorded)
func Delta(t documents.Type, quantity int64) (int64, error) {
	if err := documents.ValidateQuantity(t, quantity); err != nil {
		return 0, err
	}
	switch t {
	case documents.TypeReceipt:
		return quantity, nil
	case documents.TypeDelivery:
		return -quantity, nil
	case documents.TypeTransfer:
		return 0, nil
	case documents.TypeAdjustment:
		return quantity, nil
	default:
		return 0, apperror.NewValidation(fmt.Sprintf("unknown document type %q", t))
	}
}

// addStock adds b to a, reporting false on int64 overflow.
func addStock(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}
