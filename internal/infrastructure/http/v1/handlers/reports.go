package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/reports"
)

// ReportsHandler serves /reports.
type ReportsHandler struct {
	*BaseHandler
	service *reports.Service
}

// NewReportsHandler creates a reports handler.
func NewReportsHandler(base *BaseHandler, service *reports.Service) *ReportsHandler {
	return &ReportsHandler{BaseHandler: base, service: service}
}

// Dashboard handles GET /reports/dashboard.
func (h *ReportsHandler) Dashboard(c *gin.Context) {
	d, err := h.service.Dashboard(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, d)
}

// LowStock handles GET /reports/low-stock?limit=N.
func (h *ReportsHandler) LowStock(c *gin.Context) {
	var q struct {
		Limit int `form:"limit" binding:"omitempty,min=0,max=500"`
	}
	if !h.BindQuery(c, &q) {
		return
	}
	items, err := h.service.LowStock(c.Request.Context(), q.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": items})
}

// Reconciliation handles GET /reports/reconciliation.
func (h *ReportsHandler) Reconciliation(c *gin.Context) {
	rec, err := h.service.Reconcile(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rec)
}
