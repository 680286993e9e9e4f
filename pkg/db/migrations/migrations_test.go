package migrations

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/mwantia/imgtag/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return db
}

func TestMigrator_MigrateCreatesSchema(t *testing.T) {
	ctx := t.Context()
	db := newTestDB(t)
	m := NewMigrator(db)

	require.NoError(t, m.Migrate(ctx))

	assert.True(t, db.Migrator().HasTable(&models.Image{}))
	assert.True(t, db.Migrator().HasTable(&models.Tag{}))
	assert.True(t, db.Migrator().HasTable(&models.ImageTag{}))
	assert.True(t, db.Migrator().HasIndex(&models.ImageTag{}, "idx_image_tag"))
}

func TestMigrator_MigrateIsIdempotent(t *testing.T) {
	ctx := t.Context()
	m := NewMigrator(newTestDB(t))

	require.NoError(t, m.Migrate(ctx))
	require.NoError(t, m.Migrate(ctx))

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, len(allMigrations()))
	for _, status := range statuses {
		assert.True(t, status.Applied, "migration %d not applied", status.Version)
	}
}

func TestMigrator_RemovesOrphanedAssociations(t *testing.T) {
	ctx := t.Context()
	db := newTestDB(t)
	m := NewMigrator(db)

	// Apply only the initial schema, then insert rows without foreign key enforcement
	m.migrations = allMigrations()[:1]
	require.NoError(t, m.Migrate(ctx))

	require.NoError(t, db.Exec("PRAGMA foreign_keys = OFF").Error)
	require.NoError(t, db.Create(&models.Image{Path: "/a.png", Name: "a.png"}).Error)
	require.NoError(t, db.Create(&models.Tag{Name: "x"}).Error)
	require.NoError(t, db.Create(&models.ImageTag{ImageID: 1, TagID: 1}).Error)
	require.NoError(t, db.Create(&models.ImageTag{ImageID: 42, TagID: 1}).Error)

	m.migrations = allMigrations()
	require.NoError(t, m.Migrate(ctx))

	var remaining []models.ImageTag
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, uint(1), remaining[0].ImageID)
}

func TestMigrator_Rollback(t *testing.T) {
	ctx := t.Context()
	db := newTestDB(t)
	m := NewMigrator(db)

	require.NoError(t, m.Migrate(ctx))
	require.NoError(t, m.Rollback(ctx)) // version 2
	require.NoError(t, m.Rollback(ctx)) // version 1

	assert.False(t, db.Migrator().HasTable(&models.Image{}))

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	for _, status := range statuses {
		assert.False(t, status.Applied)
	}

	assert.Error(t, m.Rollback(ctx))
}
