package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	return db
}

type poolRecord struct {
	ID    uint `gorm:"primaryKey"`
	Value string
}

func TestNewPoolManager(t *testing.T) {
	db := setupTestDB(t)

	config := PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}

	manager, err := NewPoolManager(db, config, zap.NewNop())
	require.NoError(t, err)
	defer manager.Close()

	assert.NotNil(t, manager.DB())
	assert.Equal(t, config, manager.config)
	assert.Equal(t, 10, manager.Stats().MaxOpenConnections)
}

func TestNewPoolManager_NilDB(t *testing.T) {
	_, err := NewPoolManager(nil, DefaultPoolConfig(), zap.NewNop())
	assert.Error(t, err)
}

func TestPoolManager_Ping(t *testing.T) {
	db := setupTestDB(t)

	manager, err := NewPoolManager(db, DefaultPoolConfig(), zap.NewNop())
	require.NoError(t, err)
	defer manager.Close()

	assert.NoError(t, manager.Ping(context.Background()))
}

func TestPoolManager_ClosedOperations(t *testing.T) {
	db := setupTestDB(t)

	manager, err := NewPoolManager(db, DefaultPoolConfig(), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, manager.Close())
	assert.NoError(t, manager.Close(), "close is idempotent")

	assert.Error(t, manager.Ping(context.Background()))
	assert.Error(t, manager.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		return nil
	}))
}

func TestPoolManager_WithTransaction(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.AutoMigrate(&poolRecord{}))

	manager, err := NewPoolManager(db, DefaultPoolConfig(), zap.NewNop())
	require.NoError(t, err)
	defer manager.Close()

	err = manager.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&poolRecord{Value: "a"}).Error
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&poolRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPoolManager_WithTransactionRollback(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.AutoMigrate(&poolRecord{}))

	manager, err := NewPoolManager(db, DefaultPoolConfig(), zap.NewNop())
	require.NoError(t, err)
	defer manager.Close()

	sentinel := errors.New("boom")
	err = manager.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&poolRecord{Value: "a"}).Error; err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	var count int64
	require.NoError(t, db.Model(&poolRecord{}).Count(&count).Error)
	assert.Equal(t, int64(0), count, "failed transaction leaves no rows")
}

func TestPoolManager_WithTransactionRetry_NonRetryable(t *testing.T) {
	db := setupTestDB(t)

	manager, err := NewPoolManager(db, DefaultPoolConfig(), zap.NewNop())
	require.NoError(t, err)
	defer manager.Close()

	calls := 0
	err = manager.WithTransactionRetry(context.Background(), 3, func(tx *gorm.DB) error {
		calls++
		return errors.New("constraint violation")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "non-retryable error stops immediately")
}

func TestPoolManager_WithTransactionRetry_Retryable(t *testing.T) {
	db := setupTestDB(t)

	manager, err := NewPoolManager(db, DefaultPoolConfig(), zap.NewNop())
	require.NoError(t, err)
	defer manager.Close()

	calls := 0
	err = manager.WithTransactionRetry(context.Background(), 3, func(tx *gorm.DB) error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPoolManager_GetStats(t *testing.T) {
	db := setupTestDB(t)

	cfg := DefaultPoolConfig()
	cfg.MaxOpenConns = 7
	manager, err := NewPoolManager(db, cfg, zap.NewNop())
	require.NoError(t, err)
	defer manager.Close()

	stats := manager.GetStats()
	assert.Equal(t, 7, stats.MaxOpenConnections)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"deadlock", errors.New("deadlock detected"), true},
		{"bad connection", errors.New("driver: bad connection"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"constraint", errors.New("UNIQUE constraint failed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, isRetryableError(tt.err))
		})
	}
}
