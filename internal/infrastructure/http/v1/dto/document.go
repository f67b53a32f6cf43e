package dto

import (
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/documents"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/validation"
)

// CreateDocumentRequest is the request body for creating a document.
type CreateDocumentRequest struct {
	Type      documents.Type `json:"type" binding:"required"`
	Reference string         `json:"reference"`
	Date      *time.Time     `json:"date"`
}

// ToDomain converts the DTO into a service request.
func (r *CreateDocumentRequest) ToDomain() documents.CreateRequest {
	return documents.CreateRequest{Type: r.Type, Reference: r.Reference, Date: r.Date}
}

// AddItemRequest is the request body for adding a document line.
type AddItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int64  `json:"quantity"`
}

// ToDomain parses the product id.
func (r *AddItemRequest) ToDomain() (documents.AddItemRequest, error) {
	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return documents.AddItemRequest{}, err
	}
	return documents.AddItemRequest{ProductID: productID, Quantity: r.Quantity}, nil
}

// SetStatusRequest is the request body for a manual status change.
type SetStatusRequest struct {
	Status documents.Status `json:"status" binding:"required"`
}

// DocumentListQuery holds GET /documents query parameters.
type DocumentListQuery struct {
	Type   string `form:"type"`
	Status string `form:"status"`
	Search string `form:"search"`
	PageQuery
}

// ToDomain converts the query into a list filter.
func (q DocumentListQuery) ToDomain() documents.ListFilter {
	return documents.ListFilter{
		Type:   documents.Type(q.Type),
		Status: documents.Status(q.Status),
		Search: q.Search,
		Page:   q.Page(),
	}
}

// ItemResponse is the API representation of a document line.
type ItemResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
	LineNo    int    `json:"lineNo"`
}

// FromItem maps an item.
func FromItem(item documents.Item) ItemResponse {
	return ItemResponse{
		ID:        item.ID.String(),
		ProductID: item.ProductID.String(),
		Quantity:  item.Quantity,
		LineNo:    item.LineNo,
	}
}

// DocumentResponse is the API representation of a document.
type DocumentResponse struct {
	ID          string           `json:"id"`
	Type        documents.Type   `json:"type"`
	Status      documents.Status `json:"status"`
	Reference   string           `json:"reference"`
	Date        time.Time        `json:"date"`
	ValidatedAt *time.Time       `json:"validatedAt,omitempty"`
	Version     int              `json:"version"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	Items       []ItemResponse   `json:"items"`
}

// FromDocument maps a document with whatever items it carries.
func FromDocument(d *documents.Document) DocumentResponse {
	items := make([]ItemResponse, len(d.Items))
	for i, item := range d.Items {
		items[i] = FromItem(item)
	}
	return DocumentResponse{
		ID:          d.ID.String(),
		Type:        d.Type,
		Status:      d.Status,
		Reference:   d.Reference,
		Date:        d.Date,
		ValidatedAt: d.ValidatedAt,
		Version:     d.Version,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		Items:       items,
	}
}

// ValidationResponse is returned by POST /documents/:id/validate.
type ValidationResponse struct {
	Document DocumentResponse      `json:"document"`
	Entries  []LedgerEntryResponse `json:"entries"`
}

// FromValidation maps an engine result.
func FromValidation(res *validation.Result) ValidationResponse {
	return ValidationResponse{
		Document: FromDocument(res.Document),
		Entries:  fromEntries(res.Entries),
	}
}

func fromEntries(entries []ledger.Entry) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = FromLedgerEntry(e)
	}
	return out
}
