package store

import (
	"path/filepath"
	"testing"

	config "github.com/mwantia/imgtag/internal/config/server"
	"github.com/mwantia/imgtag/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_RequiresPath(t *testing.T) {
	_, err := NewSQLiteStore(SQLiteConfig{})
	assert.Error(t, err)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := t.Context()
	path := filepath.Join(t.TempDir(), "library.db")

	s, err := NewSQLiteStore(SQLiteConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.SetParams(ctx, "/lib/a.png", "foo bar"))
	require.NoError(t, s.CreateTag(ctx, "x"))
	require.NoError(t, s.AttachTag(ctx, "/lib/a.png", "x"))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(SQLiteConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Migrate(ctx))
	defer s.Close()

	require.NoError(t, s.Health(ctx))

	tags, err := s.GetImageTags(ctx, "/lib/a.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, tags)

	paths, err := s.SearchParams(ctx, "foo")
	require.NoError(t, err)
	assert.Equal(t, []string{"/lib/a.png"}, paths)
}

func TestSQLiteStore_ForeignKeysCascade(t *testing.T) {
	ctx := t.Context()
	s, err := NewSQLiteStore(SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Migrate(ctx))
	defer s.Close()

	require.NoError(t, s.UpsertImage(ctx, "/lib/a.png"))
	require.NoError(t, s.CreateTag(ctx, "x"))
	require.NoError(t, s.AttachTag(ctx, "/lib/a.png", "x"))

	// Deleting outside of RemoveImage still drops the association
	require.NoError(t, s.DB().Exec("DELETE FROM images WHERE path = ?", "/lib/a.png").Error)

	var count int64
	require.NoError(t, s.DB().Model(&models.ImageTag{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSQLiteStore_ForeignKeysOnEveryConnection(t *testing.T) {
	ctx := t.Context()
	s, err := NewSQLiteStore(SQLiteConfig{Path: filepath.Join(t.TempDir(), "library.db")})
	require.NoError(t, err)
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Migrate(ctx))
	defer s.Close()

	require.NoError(t, s.UpsertImage(ctx, "/lib/a.png"))
	require.NoError(t, s.CreateTag(ctx, "x"))
	require.NoError(t, s.AttachTag(ctx, "/lib/a.png", "x"))

	// Without idle connections every statement below runs on a freshly opened connection
	sqlDB, err := s.DB().DB()
	require.NoError(t, err)
	sqlDB.SetMaxIdleConns(0)

	var enabled int
	require.NoError(t, s.DB().Raw("PRAGMA foreign_keys").Scan(&enabled).Error)
	assert.Equal(t, 1, enabled)

	require.NoError(t, s.DB().Exec("DELETE FROM tags WHERE name = ?", "x").Error)

	var count int64
	require.NoError(t, s.DB().Model(&models.ImageTag{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, ":memory:?_pragma=foreign_keys(1)", dsn(":memory:"))
	assert.Equal(t, "file:lib.db?mode=ro&_pragma=foreign_keys(1)", dsn("file:lib.db?mode=ro"))
}

func TestNewStoreFromConfig(t *testing.T) {
	s, err := NewStoreFromConfig(config.MetadataServerConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = NewStoreFromConfig(config.MetadataServerConfig{
		Type:   "sqlite",
		SQLite: config.MetadataSQLiteConfig{Path: ":memory:", LogLevel: "warn"},
	})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	s.Close()

	_, err = NewStoreFromConfig(config.MetadataServerConfig{Type: "sqlite"})
	assert.Error(t, err)

	_, err = NewStoreFromConfig(config.MetadataServerConfig{Type: "postgres"})
	assert.Error(t, err)
}
