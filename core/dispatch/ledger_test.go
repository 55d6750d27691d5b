package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/wildguard/core/model"
)

func TestMemoryLedger(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()

	ok, err := l.Claim(ctx, "inc-1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = l.Claim(ctx, "inc-1")
	assert.False(t, ok, "claimed twice")

	require.NoError(t, l.Release(ctx, "inc-1"))
	ok, _ = l.Claim(ctx, "inc-1")
	assert.True(t, ok, "released claim can be retaken")

	d := model.DispatchDecision{IncidentID: "inc-1", Status: model.StatusDispatched, WinnerID: "A"}
	require.NoError(t, l.Record(ctx, d))
	assert.True(t, errors.Is(l.Record(ctx, d), ErrAlreadyDecided))
	ok, _ = l.Claim(ctx, "inc-1")
	assert.False(t, ok, "decided incident cannot be claimed")

	got, found, err := l.Get(ctx, "inc-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, d, got)
	_, found, _ = l.Get(ctx, "missing")
	assert.False(t, found)
}
