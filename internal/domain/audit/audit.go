// Package audit defines the audit trail recorded for every catalog and document mutation.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionStatusChange Action = "status_change"
	ActionValidate     Action = "validate"
)

// Entity types used in audit entries.
const (
	EntityProduct  = "product"
	EntityDocument = "document"
)

// Entry is a single audit log record.
type Entry struct {
	ID         id.ID           `db:"id" json:"id"`
	EntityType string          `db:"entity_type" json:"entityType"`
	EntityID   id.ID           `db:"entity_id" json:"entityId"`
	Action     Action          `db:"action" json:"action"`
	RequestID  string          `db:"request_id" json:"requestId,omitempty"`
	Changes    json.RawMessage `db:"changes" json:"changes,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}

// Recorder persists audit entries. Record is called inside the mutating transaction.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]Entry, error)
}

// NewEntry builds an entry with a JSON-encoded change set.
func NewEntry(ctx context.Context, entityType string, entityID id.ID, action Action, changes map[string]any) (Entry, error) {
	var raw json.RawMessage
	if len(changes) > 0 {
		b, err := json.Marshal(changes)
		if err != nil {
			return Entry{}, fmt.Errorf("marshal audit changes: %w", err)
		}
		raw = b
	}
	return Entry{
		ID:         id.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		RequestID:  appctx.GetRequestID(ctx),
		Changes:    raw,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Log is a convenience wrapper around NewEntry and Record.
func Log(ctx context.Context, r Recorder, entityType string, entityID id.ID, action Action, changes map[string]any) error {
	if r == nil {
		return nil
	}
	entry, err := NewEntry(ctx, entityType, entityID, action, changes)
	if err != nil {
		return err
	}
	if err := r.Record(ctx, entry); err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// Diff calculates the difference between old and new entity states.
func Diff(oldState, newState map[string]any) map[string]any {
	changes := make(map[string]any)

	for key, newVal := range newState {
		oldVal, exists := oldState[key]
		if !exists {
			changes[key] = map[string]any{"old": nil, "new": newVal}
		} else if !reflect.DeepEqual(oldVal, newVal) {
			changes[key] = map[string]any{"old": oldVal, "new": newVal}
		}
	}

	for key, oldVal := range oldState {
		if _, exists := newState[key]; !exists {
			changes[key] = map[string]any{"old": oldVal, "new": nil}
		}
	}

	return changes
}
