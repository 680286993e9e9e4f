package store

import (
	"context"
	"fmt"

	"github.com/mwantia/imgtag/pkg/db/models"
	"gorm.io/gorm"
)

// tagMatchCount counts how many of an image's associations point at a tag in the bound name set.
const tagMatchCount = `(SELECT COUNT(DISTINCT image_tags.tag_id) FROM image_tags
	INNER JOIN tags ON tags.id = image_tags.tag_id
	WHERE image_tags.image_id = images.id AND tags.name IN ?)`

// SearchAnyTags returns every image carrying at least one of the tags.
// An empty tag set matches nothing.
func (s *SQLiteStore) SearchAnyTags(ctx context.Context, tags []string) ([]string, error) {
	names := uniqueNames(tags)
	if len(names) == 0 {
		return []string{}, nil
	}

	paths, err := s.searchImages(ctx, withAnyTag(names))
	if err != nil {
		return nil, fmt.Errorf("failed to search any of %v: %w", names, err)
	}
	return paths, nil
}

// SearchAllTags returns every image whose tag set is a superset of tags.
// An empty tag set places no constraint and matches every image.
func (s *SQLiteStore) SearchAllTags(ctx context.Context, tags []string) ([]string, error) {
	paths, err := s.searchImages(ctx, withAllTags(uniqueNames(tags)))
	if err != nil {
		return nil, fmt.Errorf("failed to search all of %v: %w", tags, err)
	}
	return paths, nil
}

// SearchTagsAdvanced returns every image carrying all positive tags and none of the negative tags.
// Both sets are counted independently per image.
func (s *SQLiteStore) SearchTagsAdvanced(ctx context.Context, positive, negative []string) ([]string, error) {
	paths, err := s.searchImages(ctx,
		withAllTags(uniqueNames(positive)),
		withoutTags(uniqueNames(negative)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search with %v excluding %v: %w", positive, negative, err)
	}
	return paths, nil
}

// SearchParams returns every image whose params contain query as a case-sensitive substring.
// Images without params never match; an empty query matches every image with params.
func (s *SQLiteStore) SearchParams(ctx context.Context, query string) ([]string, error) {
	paths, err := s.searchImages(ctx, withParamsContaining(query))
	if err != nil {
		return nil, fmt.Errorf("failed to search params for '%s': %w", query, err)
	}
	return paths, nil
}

func (s *SQLiteStore) searchImages(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) ([]string, error) {
	paths := make([]string, 0)
	err := s.db.WithContext(ctx).
		Model(&models.Image{}).
		Scopes(scopes...).
		Order("images.name DESC").
		Order("images.id ASC").
		Pluck("images.path", &paths).Error
	if err != nil {
		return nil, translateError(err)
	}
	return paths, nil
}

func withAnyTag(names []string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(tagMatchCount+" > 0", names)
	}
}

func withAllTags(names []string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(names) == 0 {
			return db
		}
		return db.Where(tagMatchCount+" = ?", names, len(names))
	}
}

func withoutTags(names []string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(names) == 0 {
			return db
		}
		return db.Where(tagMatchCount+" = 0", names)
	}
}

// instr avoids LIKE, which folds ASCII case and treats % and _ as wildcards
func withParamsContaining(query string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("images.params IS NOT NULL AND instr(images.params, ?) > 0", query)
	}
}

// uniqueNames reduces a tag list to a set, preserving first occurrence order
func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	result := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		result = append(result, name)
	}
	return result
}
