package main

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/inkwell-ai/mediaflow/config"
	"github.com/inkwell-ai/mediaflow/internal/database"
	"github.com/inkwell-ai/mediaflow/media/budget"
	"github.com/inkwell-ai/mediaflow/media/health"
)

func TestNewServerMigratesPersistenceTables(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	pool, err := database.NewPoolManager(db, database.DefaultPoolConfig(), zap.NewNop())
	require.NoError(t, err)
	defer pool.Close()

	cfg := config.DefaultConfig()
	srv, err := NewServer(cfg, zap.NewNop(), pool)
	require.NoError(t, err)
	require.NotNil(t, srv)

	require.True(t, db.Migrator().HasTable(&health.HealthRecord{}),
		"health_records must exist so recorded observations persist")
	require.True(t, db.Migrator().HasTable(&budget.CostEntry{}),
		"cost_entries must exist so accepted spends reach the ledger")

	record := health.HealthRecord{ProviderID: "runway", Success: true}
	require.NoError(t, db.Create(&record).Error)
	entry := budget.CostEntry{ProviderID: "runway", Amount: 0.25}
	require.NoError(t, db.Create(&entry).Error)
}
