package memory

import (
	"context"

	"stockledger/internal/domain/change"
)

// Notifier implements change.Notifier by handing changes to deliver once the
// store transaction commits. Rolled back changes are never delivered.
type Notifier struct {
	deliver func(ctx context.Context, changes []change.Change)
}

var _ change.Notifier = (*Notifier)(nil)

// NewNotifier creates a notifier. A nil deliver drops every change.
func NewNotifier(deliver func(ctx context.Context, changes []change.Change)) *Notifier {
	return &Notifier{deliver: deliver}
}

func (n *Notifier) Notify(ctx context.Context, changes ...change.Change) error {
	if n.deliver == nil || len(changes) == 0 {
		return nil
	}
	batch := append([]change.Change(nil), changes...)
	// Delivery runs after the store lock is released; mask the transaction marker.
	detached := context.WithValue(context.WithoutCancel(ctx), txKey{}, struct{}{})
	afterCommit(ctx, func() {
		n.deliver(detached, batch)
	})
	return nil
}
