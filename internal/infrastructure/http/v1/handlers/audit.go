package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/audit"
)

// AuditHandler serves /audit.
type AuditHandler struct {
	*BaseHandler
	recorder audit.Recorder
}

// NewAuditHandler creates an audit handler.
func NewAuditHandler(base *BaseHandler, recorder audit.Recorder) *AuditHandler {
	return &AuditHandler{BaseHandler: base, recorder: recorder}
}

// History handles GET /audit/:entityType/:id, newest first.
func (h *AuditHandler) History(c *gin.Context) {
	entityType := c.Param("entityType")
	if entityType != audit.EntityProduct && entityType != audit.EntityDocument {
		h.Error(c, apperror.NewValidation("entityType must be product or document").
			WithDetail("entityType", entityType))
		return
	}
	entityID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var q struct {
		Limit int `form:"limit" binding:"omitempty,min=0,max=500"`
	}
	if !h.BindQuery(c, &q) {
		return
	}

	entries, err := h.recorder.History(c.Request.Context(), entityType, entityID, q.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": entries})
}
