package dto

import (
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/documents"
	"stockledger/internal/domain/ledger"
)

// LedgerQuery holds GET /ledger query parameters.
type LedgerQuery struct {
	ProductID  string `form:"productId"`
	DocumentID string `form:"documentId"`
	// Since is RFC 3339.
	Since string `form:"since"`
	PageQuery
}

// ToDomain parses the id and time filters.
func (q LedgerQuery) ToDomain() (ledger.Query, error) {
	out := ledger.Query{Page: q.Page()}
	if q.Since != "" {
		since, err := time.Parse(time.RFC3339, q.Since)
		if err != nil {
			return out, err
		}
		out.Since = &since
	}
	if q.ProductID != "" {
		pid, err := id.Parse(q.ProductID)
		if err != nil {
			return out, err
		}
		out.ProductID = &pid
	}
	if q.DocumentID != "" {
		did, err := id.Parse(q.DocumentID)
		if err != nil {
			return out, err
		}
		out.DocumentID = &did
	}
	return out, nil
}

// LedgerEntryResponse is the API representation of a ledger entry.
type LedgerEntryResponse struct {
	ID             string         `json:"id"`
	ProductID      string         `json:"productId"`
	QuantityChange int64          `json:"quantityChange"`
	Type           documents.Type `json:"type"`
	Reference      string         `json:"reference"`
	DocumentID     string         `json:"documentId"`
	ItemID         string         `json:"itemId"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// FromLedgerEntry maps an entry.
func FromLedgerEntry(e ledger.Entry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:             e.ID.String(),
		ProductID:      e.ProductID.String(),
		QuantityChange: e.QuantityChange,
		Type:           e.Type,
		Reference:      e.Reference,
		DocumentID:     e.DocumentID.String(),
		ItemID:         e.ItemID.String(),
		CreatedAt:      e.CreatedAt,
	}
}

// LedgerResponse is the body of GET /ledger.
type LedgerResponse struct {
	Items  []LedgerEntryResponse `json:"items"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// NewLedgerResponse maps a page of entries.
func NewLedgerResponse(entries []ledger.Entry, q ledger.Query) LedgerResponse {
	return LedgerResponse{Items: fromEntries(entries), Limit: q.Limit, Offset: q.Offset}
}
