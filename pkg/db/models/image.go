package models

import (
	"path/filepath"
	"time"
)

const unknownImageName = "unknown"

// Image represents a tracked image file and its raw generation parameters
type Image struct {
	ID     uint    `gorm:"primaryKey" json:"id"`
	Path   string  `gorm:"type:text;not null;uniqueIndex" json:"path"`
	Name   string  `gorm:"type:text;not null;index:idx_image_name" json:"name"`
	Params *string `gorm:"type:text" json:"params,omitempty"` // Raw parameter blob, nil if never extracted

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	ImageTags []ImageTag `gorm:"foreignKey:ImageID;constraint:OnDelete:CASCADE" json:"-"`
}

// NewImage creates an image row for path with its display name derived from the final path segment
func NewImage(path string) *Image {
	return &Image{
		Path: path,
		Name: ImageName(path),
	}
}

// ImageName returns the display label of an image path
func ImageName(path string) string {
	name := filepath.Base(path)
	if name == "." || name == string(filepath.Separator) {
		return unknownImageName
	}
	return name
}
