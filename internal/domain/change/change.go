// Package change defines the post-mutation notification hook.
//
// Every successful mutation of a product, document, document item or ledger
// entry emits a Change. Notifiers are invoked inside the mutating transaction;
// implementations must deliver only after commit (transactional outbox for
// Postgres, on-commit queue for the in-memory store).
package change

import (
	"context"
	"time"

	"stockledger/internal/core/id"
)

// Kind names the mutated entity type.
type Kind string

const (
	KindProduct      Kind = "product"
	KindDocument     Kind = "document"
	KindDocumentItem Kind = "document_item"
	KindLedger       Kind = "ledger"
)

// Change is a single mutation notice.
type Change struct {
	Kind Kind      `json:"kind"`
	ID   id.ID     `json:"id"`
	At   time.Time `json:"at"`
}

// New stamps a change with the current time.
func New(kind Kind, entityID id.ID) Change {
	return Change{Kind: kind, ID: entityID, At: time.Now().UTC()}
}

// EventType is the broker event name for the change.
func (c Change) EventType() string {
	return string(c.Kind) + ".changed"
}

// Notifier records changes for delivery after the surrounding transaction commits.
type Notifier interface {
	Notify(ctx context.Context, changes ...Change) error
}

// NopNotifier drops every change.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, ...Change) error { return nil }
