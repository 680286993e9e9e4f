package models

import "time"

// Tag represents a unique, case-sensitive tag name
type Tag struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"type:text;not null;uniqueIndex"`

	CreatedAt time.Time

	// Relationships
	ImageTags []ImageTag `gorm:"foreignKey:TagID;constraint:OnDelete:CASCADE"`
}

// TagCount pairs a tag name with the number of images associated to it
type TagCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}
