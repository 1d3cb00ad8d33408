package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inkwell-ai/mediaflow/media"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.HealthCheckInterval = 0

	m, err := NewManager(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m, mr
}

func TestManager_SetGet(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", time.Minute))

	val, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestManager_GetMiss(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Get(context.Background(), "absent")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_JSONRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	require.NoError(t, m.SetJSON(ctx, "j", payload{Name: "a", Count: 2}, time.Minute))

	var got payload
	require.NoError(t, m.GetJSON(ctx, "j", &got))
	assert.Equal(t, payload{Name: "a", Count: 2}, got)
}

func TestManager_OutcomeCache(t *testing.T) {
	m, mr := newTestManager(t)

	// Nothing cached yet.
	_, ok := m.GetOutcome("runway", "task-1")
	assert.False(t, ok)

	// Non-terminal outcomes are never cached.
	m.PutOutcome("runway", "task-1", &media.GenerationOutcome{
		Status:  media.StatusProcessing,
		TaskRef: "task-1",
	})
	_, ok = m.GetOutcome("runway", "task-1")
	assert.False(t, ok)

	terminal := &media.GenerationOutcome{
		Success:     true,
		Status:      media.StatusCompleted,
		TaskRef:     "task-1",
		ArtifactURL: "https://cdn.example.com/out.mp4",
	}
	m.PutOutcome("runway", "task-1", terminal)

	got, ok := m.GetOutcome("runway", "task-1")
	require.True(t, ok)
	assert.Equal(t, terminal, got)

	// Entries are namespaced per provider.
	_, ok = m.GetOutcome("veo", "task-1")
	assert.False(t, ok)

	// Terminal outcomes expire with the configured TTL.
	mr.FastForward(25 * time.Hour)
	_, ok = m.GetOutcome("runway", "task-1")
	assert.False(t, ok)
}

func TestManager_ClosedReturnsError(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Close())

	err := m.Set(context.Background(), "k", "v", time.Minute)
	assert.Error(t, err)

	_, err = m.Get(context.Background(), "k")
	assert.Error(t, err)

	// Close is idempotent.
	assert.NoError(t, m.Close())
}

func TestManager_ConnectFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:1"

	_, err := NewManager(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestMemory_OutcomeCache(t *testing.T) {
	m := NewMemory()

	_, ok := m.GetOutcome("runway", "t")
	assert.False(t, ok)

	m.PutOutcome("runway", "t", &media.GenerationOutcome{Status: media.StatusProcessing})
	_, ok = m.GetOutcome("runway", "t")
	assert.False(t, ok)

	m.PutOutcome("runway", "t", &media.GenerationOutcome{
		Success: true,
		Status:  media.StatusCompleted,
		TaskRef: "t",
	})
	got, ok := m.GetOutcome("runway", "t")
	require.True(t, ok)
	assert.True(t, got.Success)

	// The returned outcome is a copy, not shared state.
	got.Success = false
	again, _ := m.GetOutcome("runway", "t")
	assert.True(t, again.Success)
}
