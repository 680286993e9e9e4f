package models

import "time"

// ImageTag represents a single image-tag membership
type ImageTag struct {
	ID      uint `gorm:"primaryKey"`
	ImageID uint `gorm:"not null;uniqueIndex:idx_image_tag,priority:1"`
	TagID   uint `gorm:"not null;uniqueIndex:idx_image_tag,priority:2;index:idx_image_tags_tag"`

	CreatedAt time.Time
}
