package bootstrap

import (
	"context"
	"testing"

	"yatube/internal/database"
	"yatube/internal/models"
	"yatube/internal/seed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared&_foreign_keys=on"),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func TestPrepare_SeedsGroups(t *testing.T) {
	db := openDB(t, "bootstrap_seed")
	builtIn, err := seed.BuiltInGroups()
	require.NoError(t, err)

	require.NoError(t, Prepare(context.Background(), db, Options{SeedGroups: true}))
	require.NoError(t, Prepare(context.Background(), db, Options{SeedGroups: true}))

	var n int64
	require.NoError(t, db.Model(&models.Group{}).Count(&n).Error)
	assert.Equal(t, int64(len(builtIn)), n)
}

func TestPrepare_Disabled(t *testing.T) {
	db := openDB(t, "bootstrap_noop")

	require.NoError(t, Prepare(context.Background(), db, Options{}))

	var n int64
	require.NoError(t, db.Model(&models.Group{}).Count(&n).Error)
	assert.Zero(t, n)
}
