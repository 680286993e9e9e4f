package store

import (
	"fmt"
	"strings"

	config "github.com/mwantia/imgtag/internal/config/server"
	"gorm.io/gorm/logger"
)

// NewStoreFromConfig creates a LibraryStore implementation based on the metadata config type.
func NewStoreFromConfig(cfg config.MetadataServerConfig) (LibraryStore, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "sqlite":
		if cfg.SQLite.Path == "" {
			return nil, fmt.Errorf("metadata.sqlite.path required for sqlite store")
		}
		return NewSQLiteStore(SQLiteConfig{
			Path:     cfg.SQLite.Path,
			LogLevel: parseLogLevel(cfg.SQLite.LogLevel),
		})
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown metadata store type: %s", cfg.Type)
	}
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}
