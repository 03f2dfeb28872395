package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/charlesng35/cmsauth/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Exec("SELECT 1").Error)
	require.NoError(t, Ping(context.Background(), db))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestOpenAppliesPoolLimits(t *testing.T) {
	db, err := Open(Config{
		Driver: "sqlite",
		DSN:    MemoryDSN(t.Name()),
		Pool:   PoolConfig{MaxOpen: 3, MaxIdle: 2, ConnMaxLifetime: time.Minute, ConnectTimeout: time.Second},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.Equal(t, 3, sqlDB.Stats().MaxOpenConnections)
}

func TestAutoMigrateCreatesAuthTables(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrate(db))

	migrator := db.Migrator()
	require.True(t, migrator.HasTable(&models.User{}))
	require.True(t, migrator.HasTable("auth_sessions"))
	require.True(t, migrator.HasTable(&models.LoginEvent{}))
	require.True(t, migrator.HasTable(&models.CacheEntry{}))
	require.True(t, migrator.HasIndex(&models.Session{}, "RefreshExpiresAt"))
}

func TestAutoMigrateRejectsNilHandle(t *testing.T) {
	require.Error(t, AutoMigrate(nil))
}

func TestDuplicateKeyIsTranslated(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	now := time.Now().UTC()
	row := models.Session{
		SessionID:        "dup",
		UserID:           1,
		RoleClass:        "member",
		AccessToken:      "a",
		AccessExpiresAt:  now,
		RefreshToken:     "r",
		RefreshExpiresAt: now,
	}
	require.NoError(t, db.Create(&row).Error)

	again := row
	err := db.Create(&again).Error
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestMemoryDSNSanitisesName(t *testing.T) {
	require.Equal(t, "file:TestX_sub_case?mode=memory&cache=shared&_foreign_keys=1", MemoryDSN("TestX/sub case"))
}

func TestGormLogLevel(t *testing.T) {
	require.Equal(t, gormlogger.Silent, gormLogLevel(""))
	require.Equal(t, gormlogger.Error, gormLogLevel("error"))
	require.Equal(t, gormlogger.Warn, gormLogLevel("WARN"))
	require.Equal(t, gormlogger.Info, gormLogLevel("debug"))
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite", DSN: MemoryDSN(t.Name()), Pool: PoolConfig{MaxOpen: 1}})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = Close(db)
	})

	return db
}
