package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mwantia/imgtag/pkg/db/migrations"
	"github.com/mwantia/imgtag/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SQLiteStore implements LibraryStore using SQLite
type SQLiteStore struct {
	db   *gorm.DB
	path string
}

// DB returns the underlying GORM database instance
func (s *SQLiteStore) DB() *gorm.DB {
	return s.db
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path     string
	LogLevel logger.LogLevel
}

// NewSQLiteStore creates a new SQLite-backed library store
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	// Default to silent logging
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}

	db, err := gorm.Open(sqlite.Open(dsn(cfg.Path)), &gorm.Config{
		Logger:         logger.Default.LogMode(cfg.LogLevel),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open sqlite database: %v", ErrStorageUnavailable, err)
	}

	return &SQLiteStore{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Connect initializes the database connection
func (s *SQLiteStore) Connect(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("%w: failed to get database instance: %v", ErrStorageUnavailable, err)
	}

	// Every operation serializes on a single connection that is never recycled,
	// which keeps an in-memory database alive for the store's lifetime
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return nil
}

// dsn enables foreign keys through the driver, so the pragma applies to every new connection
func dsn(path string) string {
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return path + separator + "_pragma=foreign_keys(1)"
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return migrations.NewMigrator(s.db).Migrate(ctx)
}

// Health checks database connectivity
func (s *SQLiteStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Image operations

func (s *SQLiteStore) UpsertImage(ctx context.Context, path string) error {
	if path == "" {
		return constraintViolation("image path must not be empty")
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "path"}}, DoNothing: true}).
		Create(models.NewImage(path)).Error
	if err != nil {
		return fmt.Errorf("failed to upsert image '%s': %w", path, translateError(err))
	}
	return nil
}

// UpsertImageWithParams only sets params when the image is created; an existing row is left untouched.
func (s *SQLiteStore) UpsertImageWithParams(ctx context.Context, path, params string) error {
	if path == "" {
		return constraintViolation("image path must not be empty")
	}

	image := models.NewImage(path)
	image.Params = &params

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "path"}}, DoNothing: true}).
		Create(image).Error
	if err != nil {
		return fmt.Errorf("failed to upsert image '%s': %w", path, translateError(err))
	}
	return nil
}

// SetParams creates the image with params or overwrites the params of an existing row.
func (s *SQLiteStore) SetParams(ctx context.Context, path, params string) error {
	if path == "" {
		return constraintViolation("image path must not be empty")
	}

	image := models.NewImage(path)
	image.Params = &params

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}},
			DoUpdates: clause.AssignmentColumns([]string{"params", "updated_at"}),
		}).
		Create(image).Error
	if err != nil {
		return fmt.Errorf("failed to set params for '%s': %w", path, translateError(err))
	}
	return nil
}

func (s *SQLiteStore) GetParams(ctx context.Context, path string) (*string, error) {
	var image models.Image
	result := s.db.WithContext(ctx).
		Select("params").
		Where("path = ?", path).
		Limit(1).
		Find(&image)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get params for '%s': %w", path, translateError(result.Error))
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return image.Params, nil
}

func (s *SQLiteStore) GetImage(ctx context.Context, path string) (*models.Image, error) {
	var image models.Image
	err := s.db.WithContext(ctx).Where("path = ?", path).First(&image).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get image '%s': %w", path, translateError(err))
	}
	return &image, nil
}

func (s *SQLiteStore) ListImages(ctx context.Context) ([]models.Image, error) {
	images := make([]models.Image, 0)
	err := s.db.WithContext(ctx).Order("path ASC").Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", translateError(err))
	}
	return images, nil
}

// RelocateImage moves the row at oldPath to newPath without changing its identity or associations.
func (s *SQLiteStore) RelocateImage(ctx context.Context, oldPath, newPath string) error {
	if newPath == "" {
		return constraintViolation("image path must not be empty")
	}
	if oldPath == newPath {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, found, err := resolveImageID(tx, oldPath)
		if err != nil || !found {
			return err
		}

		var conflicts int64
		if err := tx.Model(&models.Image{}).
			Where("path = ? AND id <> ?", newPath, id).
			Count(&conflicts).Error; err != nil {
			return err
		}
		if conflicts > 0 {
			return constraintViolation("image path '%s' already belongs to another image", newPath)
		}

		return tx.Model(&models.Image{ID: id}).Updates(map[string]any{
			"path": newPath,
			"name": models.ImageName(newPath),
		}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to relocate image '%s': %w", oldPath, translateError(err))
	}
	return nil
}

// RemoveImage deletes the image row and all of its associations.
func (s *SQLiteStore) RemoveImage(ctx context.Context, path string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, found, err := resolveImageID(tx, path)
		if err != nil || !found {
			return err
		}

		if err := tx.Where("image_id = ?", id).Delete(&models.ImageTag{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Image{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("failed to remove image '%s': %w", path, translateError(err))
	}
	return nil
}

// Tag operations

func (s *SQLiteStore) CreateTag(ctx context.Context, name string) error {
	if name == "" {
		return constraintViolation("tag name must not be empty")
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&models.Tag{Name: name}).Error
	if err != nil {
		return fmt.Errorf("failed to create tag '%s': %w", name, translateError(err))
	}
	return nil
}

func (s *SQLiteStore) ListTags(ctx context.Context) ([]string, error) {
	names := make([]string, 0)
	err := s.db.WithContext(ctx).
		Model(&models.Tag{}).
		Order("name ASC").
		Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", translateError(err))
	}
	return names, nil
}

func (s *SQLiteStore) TagCounts(ctx context.Context) ([]models.TagCount, error) {
	counts := make([]models.TagCount, 0)
	err := s.db.WithContext(ctx).
		Model(&models.Tag{}).
		Select("tags.name AS name, COUNT(image_tags.id) AS count").
		Joins("LEFT JOIN image_tags ON image_tags.tag_id = tags.id").
		Group("tags.id, tags.name").
		Order("tags.name ASC").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count tags: %w", translateError(err))
	}
	return counts, nil
}

// Association operations

// AttachTag associates an existing tag with an existing image. If either the path
// or the tag name does not resolve, nothing is written and no error is returned.
func (s *SQLiteStore) AttachTag(ctx context.Context, path, tag string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		imageID, found, err := resolveImageID(tx, path)
		if err != nil || !found {
			return err
		}
		tagID, found, err := resolveTagID(tx, tag)
		if err != nil || !found {
			return err
		}
		return insertImageTag(tx, imageID, tagID)
	})
	if err != nil {
		return fmt.Errorf("failed to attach tag '%s' to '%s': %w", tag, path, translateError(err))
	}
	return nil
}

// AttachTagByID is the id-keyed variant of AttachTag with the same no-op semantics.
func (s *SQLiteStore) AttachTagByID(ctx context.Context, imageID, tagID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var images, tags int64
		if err := tx.Model(&models.Image{}).Where("id = ?", imageID).Count(&images).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Tag{}).Where("id = ?", tagID).Count(&tags).Error; err != nil {
			return err
		}
		if images == 0 || tags == 0 {
			return nil
		}
		return insertImageTag(tx, imageID, tagID)
	})
	if err != nil {
		return fmt.Errorf("failed to attach tag %d to image %d: %w", tagID, imageID, translateError(err))
	}
	return nil
}

func (s *SQLiteStore) DetachTag(ctx context.Context, path, tag string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		imageID, found, err := resolveImageID(tx, path)
		if err != nil || !found {
			return err
		}
		tagID, found, err := resolveTagID(tx, tag)
		if err != nil || !found {
			return err
		}
		return tx.Where("image_id = ? AND tag_id = ?", imageID, tagID).Delete(&models.ImageTag{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to detach tag '%s' from '%s': %w", tag, path, translateError(err))
	}
	return nil
}

func (s *SQLiteStore) DetachTagByID(ctx context.Context, imageID, tagID uint) error {
	err := s.db.WithContext(ctx).
		Where("image_id = ? AND tag_id = ?", imageID, tagID).
		Delete(&models.ImageTag{}).Error
	if err != nil {
		return fmt.Errorf("failed to detach tag %d from image %d: %w", tagID, imageID, translateError(err))
	}
	return nil
}

func (s *SQLiteStore) GetImageTags(ctx context.Context, path string) ([]string, error) {
	names := make([]string, 0)
	err := s.db.WithContext(ctx).
		Model(&models.Tag{}).
		Joins("INNER JOIN image_tags ON image_tags.tag_id = tags.id").
		Joins("INNER JOIN images ON images.id = image_tags.image_id").
		Where("images.path = ?", path).
		Order("tags.name ASC").
		Pluck("tags.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get tags of '%s': %w", path, translateError(err))
	}
	return names, nil
}

func (s *SQLiteStore) GetImageTagsByID(ctx context.Context, imageID uint) ([]string, error) {
	names := make([]string, 0)
	err := s.db.WithContext(ctx).
		Model(&models.Tag{}).
		Joins("INNER JOIN image_tags ON image_tags.tag_id = tags.id").
		Where("image_tags.image_id = ?", imageID).
		Order("tags.name ASC").
		Pluck("tags.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get tags of image %d: %w", imageID, translateError(err))
	}
	return names, nil
}

func resolveImageID(tx *gorm.DB, path string) (uint, bool, error) {
	var image models.Image
	result := tx.Select("id").Where("path = ?", path).Limit(1).Find(&image)
	if result.Error != nil {
		return 0, false, result.Error
	}
	return image.ID, result.RowsAffected > 0, nil
}

func resolveTagID(tx *gorm.DB, name string) (uint, bool, error) {
	var tag models.Tag
	result := tx.Select("id").Where("name = ?", name).Limit(1).Find(&tag)
	if result.Error != nil {
		return 0, false, result.Error
	}
	return tag.ID, result.RowsAffected > 0, nil
}

func insertImageTag(tx *gorm.DB, imageID, tagID uint) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "image_id"}, {Name: "tag_id"}},
		DoNothing: true,
	}).Create(&models.ImageTag{ImageID: imageID, TagID: tagID}).Error
}

var _ LibraryStore = (*SQLiteStore)(nil)
