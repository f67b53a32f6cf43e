package numerator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubGenerator_SequencePerKey(t *testing.T) {
	ctx := context.Background()
	period := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	g := &StubGenerator{}

	rec := DefaultConfig("REC")
	del := DefaultConfig("DEL")

	ref, err := g.GetNextNumber(ctx, rec, nil, period)
	require.NoError(t, err)
	assert.Equal(t, "REC-2026-00001", ref)

	ref, err = g.GetNextNumber(ctx, del, nil, period)
	require.NoError(t, err)
	assert.Equal(t, "DEL-2026-00001", ref)

	require.NoError(t, g.SetNextNumber(ctx, rec, period, 41))
	ref, err = g.GetNextNumber(ctx, rec, nil, period)
	require.NoError(t, err)
	assert.Equal(t, "REC-2026-00042", ref)

	ref, err = g.GetNextNumber(ctx, rec, nil, period.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "REC-2027-00001", ref)

	assert.Equal(t, []string{"REC-2026-00001", "DEL-2026-00001", "REC-2026-00042", "REC-2027-00001"}, g.Issued())
}

func TestStubGenerator_Err(t *testing.T) {
	boom := errors.New("sequence table locked")
	g := &StubGenerator{Err: boom}

	_, err := g.GetNextNumber(context.Background(), DefaultConfig("TRF"), nil, time.Now())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, g.SetNextNumber(context.Background(), DefaultConfig("TRF"), time.Now(), 5), boom)
	assert.Empty(t, g.Issued())
}
