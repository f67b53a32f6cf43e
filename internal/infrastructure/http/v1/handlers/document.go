package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/documents"
	"stockledger/internal/domain/validation"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// DocumentHandler serves /documents.
type DocumentHandler struct {
	*BaseHandler
	service *documents.Service
	engine  *validation.Engine
}

// NewDocumentHandler creates a document handler.
func NewDocumentHandler(base *BaseHandler, service *documents.Service, engine *validation.Engine) *DocumentHandler {
	return &DocumentHandler{BaseHandler: base, service: service, engine: engine}
}

// List handles GET /documents.
func (h *DocumentHandler) List(c *gin.Context) {
	var q dto.DocumentListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.service.ListDocuments(c.Request.Context(), q.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(res, dto.FromDocument))
}

// Create handles POST /documents.
func (h *DocumentHandler) Create(c *gin.Context) {
	var req dto.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	doc, err := h.service.CreateDocument(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromDocument(doc))
}

// Get handles GET /documents/:id. The response includes the items.
func (h *DocumentHandler) Get(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	doc, err := h.service.GetDocument(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// Delete handles DELETE /documents/:id.
func (h *DocumentHandler) Delete(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), docID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// AddItem handles POST /documents/:id/items.
func (h *DocumentHandler) AddItem(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.AddItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	itemReq, err := req.ToDomain()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId").WithDetail("field", "productId"))
		return
	}
	item, err := h.service.AddItem(c.Request.Context(), docID, itemReq)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromItem(*item))
}

// RemoveItem handles DELETE /documents/:id/items/:itemId.
func (h *DocumentHandler) RemoveItem(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.ParamID(c, "itemId")
	if !ok {
		return
	}
	if err := h.service.RemoveItem(c.Request.Context(), docID, itemID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// SetStatus handles POST /documents/:id/status.
func (h *DocumentHandler) SetStatus(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.SetStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	doc, err := h.service.SetStatus(c.Request.Context(), docID, req.Status)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// Cancel handles POST /documents/:id/cancel.
func (h *DocumentHandler) Cancel(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	doc, err := h.service.Cancel(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// Validate handles POST /documents/:id/validate.
func (h *DocumentHandler) Validate(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	res, err := h.engine.Validate(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromValidation(res))
}
