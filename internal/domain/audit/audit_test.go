package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
)

func TestDiff(t *testing.T) {
	oldState := map[string]any{"name": "Widget", "min": int64(5), "unit": "pcs"}
	newState := map[string]any{"name": "Widget XL", "min": int64(5), "category": "tools"}

	changes := Diff(oldState, newState)

	assert.Len(t, changes, 3)
	assert.Equal(t, map[string]any{"old": "Widget", "new": "Widget XL"}, changes["name"])
	assert.Equal(t, map[string]any{"old": nil, "new": "tools"}, changes["category"])
	assert.Equal(t, map[string]any{"old": "pcs", "new": nil}, changes["unit"])
	assert.NotContains(t, changes, "min")
}

func TestNewEntry_CarriesRequestID(t *testing.T) {
	ctx := appctx.WithTrace(context.Background(), &appctx.TraceContext{RequestID: "req-9"})
	entityID := id.New()

	entry, err := NewEntry(ctx, EntityDocument, entityID, ActionValidate, map[string]any{"status": "DONE"})
	require.NoError(t, err)

	assert.Equal(t, "req-9", entry.RequestID)
	assert.Equal(t, entityID, entry.EntityID)
	assert.False(t, id.IsNil(entry.ID))

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(entry.Changes, &decoded))
	assert.Equal(t, "DONE", decoded["status"])
}

type captureRecorder struct{ entries []Entry }

func (c *captureRecorder) Record(_ context.Context, e Entry) error {
	c.entries = append(c.entries, e)
	return nil
}

func (c *captureRecorder) History(context.Context, string, id.ID, int) ([]Entry, error) {
	return c.entries, nil
}

func TestLog(t *testing.T) {
	rec := &captureRecorder{}
	require.NoError(t, Log(context.Background(), rec, EntityProduct, id.New(), ActionDelete, nil))
	require.Len(t, rec.entries, 1)
	assert.Nil(t, rec.entries[0].Changes)

	assert.NoError(t, Log(context.Background(), nil, EntityProduct, id.New(), ActionDelete, nil))
}
