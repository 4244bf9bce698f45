package session

import (
	"context"
	"testing"
	"time"

	"github.com/harunnryd/parley/pkg/frames"
	"github.com/harunnryd/parley/pkg/metrics"
	transportmock "github.com/harunnryd/parley/pkg/transports/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAssignsUniqueIDs(t *testing.T) {
	reg := NewRegistry(Options{Config: Config{HeartbeatInterval: time.Hour}})
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		id, err := reg.Register(transportmock.NewConn())
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
		assert.Equal(t, StateActive, reg.Lookup(id).State())
	}
	assert.Equal(t, 20, reg.Len())

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, reg.Drain(ctx))
}

func TestSessionOpenAndCloseRecorded(t *testing.T) {
	h := newHarness(t, Config{})
	assert.Equal(t, 1, h.obs.Count(metrics.EventSessionOpen))
	h.reg.Teardown(h.id)
	closes := h.obs.Named(metrics.EventSessionClose)
	require.Len(t, closes, 1)
	assert.Equal(t, "disconnect", closes[0].Tags[metrics.TagReason])
	assert.Equal(t, h.id, closes[0].Tags[metrics.TagSession])
}

func TestDispatchUnknownIDIsNoop(t *testing.T) {
	h := newHarness(t, Config{})
	h.reg.Dispatch("missing", frames.Text("hello"))
	h.reg.Teardown("missing")
	assert.Equal(t, 1, h.reg.Len())
	assert.Empty(t, h.llm.Calls())
}

func TestDrainClosesSessionsAndRefusesNewOnes(t *testing.T) {
	h := newHarness(t, Config{})
	other := transportmock.NewConn()
	_, err := h.reg.Register(other)
	require.NoError(t, err)
	require.Equal(t, 2, h.reg.Len())

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, h.reg.Drain(ctx))
	assert.Zero(t, h.reg.Len())
	assert.True(t, h.conn.Closed())
	assert.True(t, other.Closed())

	refused := transportmock.NewConn()
	id, err := h.reg.Register(refused)
	assert.ErrorIs(t, err, ErrDraining)
	assert.Empty(t, id)
	assert.Zero(t, h.reg.Len())
	assert.Empty(t, refused.Sent())
	assert.Equal(t, 2, h.obs.Count(metrics.EventSessionOpen), "a refused connection never opens a session")
}

