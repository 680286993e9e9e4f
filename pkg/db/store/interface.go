package store

import (
	"context"

	"github.com/mwantia/imgtag/pkg/db/models"
)

// LibraryStore defines the interface for image, tag and association storage
// and the tag and parameter searches over them.
//
// Mutations that target a missing row are no-ops, not errors. Searches return
// image paths ordered by image name descending, ties broken by image id ascending.
type LibraryStore interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	Health(ctx context.Context) error

	// Image operations
	UpsertImage(ctx context.Context, path string) error
	UpsertImageWithParams(ctx context.Context, path, params string) error
	SetParams(ctx context.Context, path, params string) error
	GetParams(ctx context.Context, path string) (*string, error)
	GetImage(ctx context.Context, path string) (*models.Image, error)
	ListImages(ctx context.Context) ([]models.Image, error)
	RelocateImage(ctx context.Context, oldPath, newPath string) error
	RemoveImage(ctx context.Context, path string) error

	// Tag operations
	CreateTag(ctx context.Context, name string) error
	ListTags(ctx context.Context) ([]string, error)
	TagCounts(ctx context.Context) ([]models.TagCount, error)

	// Association operations
	AttachTag(ctx context.Context, path, tag string) error
	AttachTagByID(ctx context.Context, imageID, tagID uint) error
	DetachTag(ctx context.Context, path, tag string) error
	DetachTagByID(ctx context.Context, imageID, tagID uint) error
	GetImageTags(ctx context.Context, path string) ([]string, error)
	GetImageTagsByID(ctx context.Context, imageID uint) ([]string, error)

	// Search operations
	SearchAnyTags(ctx context.Context, tags []string) ([]string, error)
	SearchAllTags(ctx context.Context, tags []string) ([]string, error)
	SearchTagsAdvanced(ctx context.Context, positive, negative []string) ([]string, error)
	SearchParams(ctx context.Context, query string) ([]string, error)
}
