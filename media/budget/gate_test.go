package budget

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/inkwell-ai/mediaflow/media"
)

func newTestGate(cfg Config) *Gate {
	return NewGate(cfg, nil, nil, zap.NewNop())
}

func TestGate_CheckBudgetAllowsWithinLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultDailyLimit = 10.0
	g := newTestGate(cfg)

	check := g.CheckBudget("runway", media.OpVideoGenerate)
	assert.True(t, check.Allowed)
	assert.Equal(t, 0.0, check.DailySpent)
	assert.Equal(t, 10.0, check.DailyLimit)
}

func TestGate_CheckBudgetBlocksProjectedOverspend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultDailyLimit = 1.0
	cfg.Prices = map[media.OperationKind]float64{media.OpVideoGenerate: 0.50}
	g := newTestGate(cfg)

	// First call fits exactly, second would push spend past the limit.
	g.TrackCost("runway", media.OpVideoGenerate, 0.50, "", nil)
	check := g.CheckBudget("runway", media.OpVideoGenerate)
	assert.True(t, check.Allowed)

	g.TrackCost("runway", media.OpVideoGenerate, 0.50, "", nil)
	check = g.CheckBudget("runway", media.OpVideoGenerate)
	assert.False(t, check.Allowed)
	assert.Contains(t, check.Reason, "daily budget exceeded")
	assert.Equal(t, 1.0, check.DailySpent)
}

func TestGate_CheckBudgetIsPerProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultDailyLimit = 1.0
	cfg.Prices = map[media.OperationKind]float64{media.OpVideoGenerate: 0.60}
	g := newTestGate(cfg)

	g.TrackCost("runway", media.OpVideoGenerate, 0.60, "", nil)

	assert.False(t, g.CheckBudget("runway", media.OpVideoGenerate).Allowed)
	assert.True(t, g.CheckBudget("veo", media.OpVideoGenerate).Allowed)
}

func TestGate_ProviderDailyLimitOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultDailyLimit = 50.0
	cfg.ProviderDailyLimits = map[string]float64{"kling": 0.10}
	cfg.Prices = map[media.OperationKind]float64{media.OpVideoGenerate: 0.35}
	g := newTestGate(cfg)

	assert.False(t, g.CheckBudget("kling", media.OpVideoGenerate).Allowed)
	assert.True(t, g.CheckBudget("runway", media.OpVideoGenerate).Allowed)
}

func TestGate_ZeroLimitDisablesGate(t *testing.T) {
	cfg := Config{DefaultDailyLimit: 0}
	g := newTestGate(cfg)

	g.TrackCost("runway", media.OpVideoGenerate, 1000.0, "", nil)
	check := g.CheckBudget("runway", media.OpVideoGenerate)
	assert.True(t, check.Allowed)
}

func TestGate_DailyRollover(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultDailyLimit = 1.0
	cfg.Prices = map[media.OperationKind]float64{media.OpVideoGenerate: 0.50}
	g := newTestGate(cfg)

	current := time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return current }

	g.TrackCost("runway", media.OpVideoGenerate, 0.90, "", nil)
	assert.False(t, g.CheckBudget("runway", media.OpVideoGenerate).Allowed)

	// Crossing the UTC day boundary resets the counters.
	current = current.Add(2 * time.Hour)
	check := g.CheckBudget("runway", media.OpVideoGenerate)
	assert.True(t, check.Allowed)
	assert.Equal(t, 0.0, check.DailySpent)
}

func TestGate_EstimatedCost(t *testing.T) {
	cfg := Config{
		Prices: map[media.OperationKind]float64{
			media.OpVideoGenerate: 0.50,
		},
		ProviderPrices: map[string]map[media.OperationKind]float64{
			"kling": {media.OpVideoGenerate: 0.35},
		},
	}
	g := newTestGate(cfg)

	assert.Equal(t, 0.35, g.EstimatedCost("kling", media.OpVideoGenerate))
	assert.Equal(t, 0.50, g.EstimatedCost("runway", media.OpVideoGenerate))
	assert.Equal(t, 0.0, g.EstimatedCost("runway", media.OpSpeechSynthesize))
}

func TestGate_ApprovalLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireApproval = true
	g := newTestGate(cfg)

	// First sight of a content ID registers it as pending.
	check := g.CheckContentApproval("campaign-42")
	assert.False(t, check.Allowed)
	assert.Contains(t, check.Reason, "awaiting approval")
	assert.Equal(t, ApprovalPending, g.Approvals()["campaign-42"])

	g.Approve("campaign-42")
	assert.True(t, g.CheckContentApproval("campaign-42").Allowed)

	g.Reject("campaign-42")
	check = g.CheckContentApproval("campaign-42")
	assert.False(t, check.Allowed)
	assert.Contains(t, check.Reason, "rejected")
}

func TestGate_ApprovalDisabled(t *testing.T) {
	g := newTestGate(DefaultConfig())

	assert.True(t, g.CheckContentApproval("anything").Allowed)
	assert.True(t, g.CheckContentApproval("").Allowed)
}

func TestGate_Usage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultDailyLimit = 2.0
	g := newTestGate(cfg)

	g.TrackCost("runway", media.OpVideoGenerate, 0.50, "client-1", nil)
	g.TrackCost("runway", media.OpVideoExtend, 0.45, "client-1", nil)

	usage := g.Usage()
	require.Len(t, usage, 1)
	assert.Equal(t, "runway", usage[0].ProviderID)
	assert.InDelta(t, 0.95, usage[0].Spent, 1e-9)
	assert.InDelta(t, 1.05, usage[0].Remaining, 1e-9)
}

func TestGate_TrackCostIgnoresNonPositive(t *testing.T) {
	g := newTestGate(DefaultConfig())

	g.TrackCost("runway", media.OpVideoGenerate, 0, "", nil)
	g.TrackCost("runway", media.OpVideoGenerate, -1, "", nil)

	assert.Empty(t, g.Usage())
}

func TestGate_PersistsCostLedger(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	g := NewGate(DefaultConfig(), db, nil, zap.NewNop())
	require.NoError(t, g.AutoMigrate())

	g.TrackCost("runway", media.OpVideoGenerate, 0.50, "client-1",
		map[string]string{"request_id": "req-1", "task_ref": "task-9"})

	require.Eventually(t, func() bool {
		var count int64
		db.Model(&CostEntry{}).Count(&count)
		return count == 1
	}, 2*time.Second, 10*time.Millisecond)

	var entry CostEntry
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, "runway", entry.ProviderID)
	assert.Equal(t, "video.generate", entry.Operation)
	assert.Equal(t, 0.50, entry.Amount)
	assert.Equal(t, "client-1", entry.ClientID)
	assert.Contains(t, entry.Metadata, "task-9")
}

func TestGate_NilLogger(t *testing.T) {
	g := NewGate(DefaultConfig(), nil, nil, nil)

	require.NotPanics(t, func() {
		g.TrackCost("runway", media.OpVideoGenerate, 0.25, "client-1", nil)
	})
	assert.True(t, g.CheckBudget("runway", media.OpVideoGenerate).Allowed)
}
