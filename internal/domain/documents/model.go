// Package documents provides stock movement documents: RECEIPT, DELIVERY,
// TRANSFER and ADJUSTMENT, with their line items and lifecycle.
package documents

import (
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

// Type is the kind of stock movement a document describes.
type Type string

const (
	TypeReceipt    Type = "RECEIPT"
	TypeDelivery   Type = "DELIVERY"
	TypeTransfer   Type = "TRANSFER"
	TypeAdjustment Type = "ADJUSTMENT"
)

// Types lists every document type.
var Types = []Type{TypeReceipt, TypeDelivery, TypeTransfer, TypeAdjustment}

// IsValid reports whether t is a known type.
func (t Type) IsValid() bool {
	switch t {
	case TypeReceipt, TypeDelivery, TypeTransfer, TypeAdjustment:
		return true
	}
	return false
}

// NumberPrefix is the prefix of generated references.
func (t Type) NumberPrefix() string {
	switch t {
	case TypeReceipt:
		return "REC"
	case TypeDelivery:
		return "DEL"
	case TypeTransfer:
		return "TRF"
	default:
		return "ADJ"
	}
}

// Status is the lifecycle state of a document.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusWaiting  Status = "WAITING"
	StatusReady    Status = "READY"
	StatusDone     Status = "DONE"
	StatusCanceled Status = "CANCELED"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusWaiting, StatusReady, StatusDone, StatusCanceled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusCanceled
}

var transitions = map[Status][]Status{
	StatusDraft:   {StatusWaiting, StatusReady, StatusCanceled},
	StatusWaiting: {StatusReady, StatusCanceled},
	StatusReady:   {StatusWaiting, StatusCanceled},
}

// CanTransition reports whether a manual status change from -> to is allowed.
// DONE is reachable only through validation and is never a manual target.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() || to == StatusDone {
		return false
	}
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Document is a stock movement document.
type Document struct {
	ID     id.ID  `db:"id" json:"id"`
	Type   Type   `db:"type" json:"type"`
	Status Status `db:"status" json:"status"`

	// Reference is unique across documents.
	Reference string `db:"reference" json:"reference"`

	// Date is the business date.
	Date time.Time `db:"date" json:"date"`

	ValidatedAt *time.Time `db:"validated_at" json:"validatedAt,omitempty"`

	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	Items []Item `db:"-" json:"items"`
}

// Item is a document line.
type Item struct {
	ID         id.ID     `db:"id" json:"id"`
	DocumentID id.ID     `db:"document_id" json:"documentId"`
	ProductID  id.ID     `db:"product_id" json:"productId"`
	Quantity   int64     `db:"quantity" json:"quantity"`
	LineNo     int       `db:"line_no" json:"lineNo"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// NewDocument creates a DRAFT document.
func NewDocument(t Type, reference string, date time.Time) *Document {
	now := time.Now().UTC()
	if date.IsZero() {
		date = now
	}
	return &Document{
		ID:        id.New(),
		Type:      t,
		Status:    StatusDraft,
		Reference: reference,
		Date:      date,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		Items:     make([]Item, 0),
	}
}

// CanModify checks that items may still be added or removed.
func (d *Document) CanModify() error {
	if d.Status.IsTerminal() {
		return apperror.NewInvalidState(fmt.Sprintf("document is %s", d.Status)).
			WithDetail("document_id", d.ID.String()).
			WithDetail("status", string(d.Status))
	}
	return nil
}

// MarkDone records a successful validation.
func (d *Document) MarkDone(at time.Time) {
	d.Status = StatusDone
	d.ValidatedAt = &at
	d.UpdatedAt = at
}

// Snapshot returns the audited attributes.
func (d *Document) Snapshot() map[string]any {
	return map[string]any{
		"type":      string(d.Type),
		"status":    string(d.Status),
		"reference": d.Reference,
		"date":      d.Date.Format(time.RFC3339),
	}
}

// MaxQuantity bounds the magnitude of one line.
const MaxQuantity int64 = 1_000_000_000

// ValidateQuantity checks a line quantity against the document type.
// ADJUSTMENT accepts any sign; every other type requires a positive quantity.
func ValidateQuantity(t Type, quantity int64) error {
	if quantity > MaxQuantity || quantity < -MaxQuantity {
		return apperror.NewInvalidQuantity(fmt.Sprintf("quantity must not exceed %d", MaxQuantity)).
			WithDetail("quantity", quantity).
			WithDetail("type", string(t))
	}
	if t == TypeAdjustment {
		return nil
	}
	if quantity <= 0 {
		return apperror.NewInvalidQuantity(fmt.Sprintf("%s quantity must be positive", t)).
			WithDetail("quantity", quantity).
			WithDetail("type", string(t))
	}
	return nil
}

// CreateRequest holds the attributes of a new document.
type CreateRequest struct {
	Type      Type       `json:"type" validate:"required,oneof=RECEIPT DELIVERY TRANSFER ADJUSTMENT"`
	Reference string     `json:"reference" validate:"max=64"`
	Date      *time.Time `json:"date"`
}

// AddItemRequest holds a new line.
type AddItemRequest struct {
	ProductID id.ID `json:"productId"`
	Quantity  int64 `json:"quantity"`
}

// ListFilter narrows document listings.
type ListFilter struct {
	Type   Type
	Status Status
	// Search matches the reference, case-insensitively.
	Search string
	domain.Page
}
