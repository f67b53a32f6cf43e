package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/export"
	"stockledger/internal/infrastructure/http/v1/dto"
	"stockledger/pkg/logger"
)

// LedgerHandler serves /ledger.
type LedgerHandler struct {
	*BaseHandler
	service  *ledger.Service
	products *product.Service
}

// NewLedgerHandler creates a ledger handler. products resolves SKUs for exports.
func NewLedgerHandler(base *BaseHandler, service *ledger.Service, products *product.Service) *LedgerHandler {
	return &LedgerHandler{BaseHandler: base, service: service, products: products}
}

func (h *LedgerHandler) query(c *gin.Context) (ledger.Query, bool) {
	var q dto.LedgerQuery
	if !h.BindQuery(c, &q) {
		return ledger.Query{}, false
	}
	lq, err := q.ToDomain()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid ledger filter").WithDetail("error", err.Error()))
		return ledger.Query{}, false
	}
	return lq, true
}

// List handles GET /ledger: entries newest first.
func (h *LedgerHandler) List(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	entries, err := h.service.Query(c.Request.Context(), q)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewLedgerResponse(entries, q))
}

// Export handles GET /ledger/export.xlsx with the same filters as List.
func (h *LedgerHandler) Export(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	entries, err := h.service.Query(ctx, q)
	if err != nil {
		h.Error(c, err)
		return
	}

	skus := make(map[id.ID]string)
	skuOf := func(productID id.ID) string {
		if sku, ok := skus[productID]; ok {
			return sku
		}
		sku := ""
		if p, err := h.products.Get(ctx, productID); err == nil {
			sku = p.SKU
		} else if !apperror.IsNotFound(err) {
			logger.Warn(ctx, "sku lookup failed", "product_id", productID, "error", err)
		}
		skus[productID] = sku
		return sku
	}

	var buf bytes.Buffer
	if err := export.WriteLedgerXLSX(&buf, entries, skuOf); err != nil {
		h.Error(c, apperror.NewInternal(fmt.Errorf("export ledger: %w", err)))
		return
	}

	filename := fmt.Sprintf("ledger-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, export.ContentTypeXLSX, buf.Bytes())
}
