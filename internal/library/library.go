// Package library ties the metadata store to the filesystem: it ingests image files,
// extracts their generation parameters and keeps tags and paths in sync.
package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	config "github.com/mwantia/imgtag/internal/config/server"
	"github.com/mwantia/imgtag/internal/metadata"
	"github.com/mwantia/imgtag/internal/prompt"
	"github.com/mwantia/imgtag/pkg/db/store"
	"github.com/mwantia/imgtag/pkg/log"
)

type Library struct {
	store     store.LibraryStore
	log       log.LoggerService
	extractor metadata.Extractor
	cfg       config.LibraryServerConfig

	extensions map[string]struct{}
}

// New creates a library over an already connected and migrated store.
// A nil extractor disables parameter extraction.
func New(s store.LibraryStore, logger log.LoggerService, extractor metadata.Extractor, cfg config.LibraryServerConfig) *Library {
	extensions := cfg.Extensions
	if len(extensions) == 0 {
		extensions = config.DefaultExtensions
	}

	lib := &Library{
		store:      s,
		log:        logger,
		extractor:  extractor,
		cfg:        cfg,
		extensions: make(map[string]struct{}, len(extensions)),
	}
	for _, ext := range extensions {
		lib.extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return lib
}

func (l *Library) Store() store.LibraryStore {
	return l.store
}

// Accepts reports whether path has one of the configured image extensions
func (l *Library) Accepts(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	_, ok := l.extensions[ext]
	return ok
}

// IngestFile records the image at path, storing its embedded parameters when the
// extractor finds any. With auto-tagging enabled every prompt token becomes a tag;
// a tag that cannot be attached is logged and skipped, since the image itself is recorded.
func (l *Library) IngestFile(ctx context.Context, path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve '%s': %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat '%s': %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("'%s' is a directory", path)
	}

	params, ok := "", false
	if l.extractor != nil {
		params, ok, err = l.extractor.Extract(path)
		if err != nil {
			return fmt.Errorf("failed to extract parameters: %w", err)
		}
	}

	if !ok {
		if err := l.store.UpsertImage(ctx, path); err != nil {
			return fmt.Errorf("failed to record '%s': %w", path, err)
		}
		l.log.Debug("Recorded '%s'", path)
		return nil
	}

	if err := l.store.SetParams(ctx, path, params); err != nil {
		return fmt.Errorf("failed to record '%s': %w", path, err)
	}
	l.log.Debug("Recorded '%s' with %d bytes of parameters", path, len(params))

	if !l.cfg.AutoTag {
		return nil
	}
	for _, tag := range prompt.Tags(params) {
		if err := l.TagImage(ctx, path, tag); err != nil {
			l.log.Warn("Skipping tag '%s' of '%s': %v", tag, path, err)
		}
	}
	return nil
}

// TagImage attaches tag to the image at path, creating the tag on first use.
// Like AttachTag it does nothing when the image is not tracked.
func (l *Library) TagImage(ctx context.Context, path, tag string) error {
	if err := l.store.CreateTag(ctx, tag); err != nil {
		return fmt.Errorf("failed to create tag '%s': %w", tag, err)
	}
	if err := l.store.AttachTag(ctx, path, tag); err != nil {
		return fmt.Errorf("failed to tag '%s' with '%s': %w", path, tag, err)
	}
	l.log.Debug("Tagged '%s' with '%s'", path, tag)
	return nil
}

func (l *Library) UntagImage(ctx context.Context, path, tag string) error {
	if err := l.store.DetachTag(ctx, path, tag); err != nil {
		return fmt.Errorf("failed to untag '%s' from '%s': %w", tag, path, err)
	}
	l.log.Debug("Removed tag '%s' from '%s'", tag, path)
	return nil
}

// Untrack forgets the image at path. When path names a directory every image
// below it is forgotten as well, since a removed directory reports only itself.
func (l *Library) Untrack(ctx context.Context, path string) (int, error) {
	images, err := l.store.ListImages(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list images: %w", err)
	}

	prefix := strings.TrimSuffix(path, string(filepath.Separator)) + string(filepath.Separator)
	removed := 0
	for _, image := range images {
		if image.Path != path && !strings.HasPrefix(image.Path, prefix) {
			continue
		}
		if err := l.store.RemoveImage(ctx, image.Path); err != nil {
			return removed, fmt.Errorf("failed to remove '%s': %w", image.Path, err)
		}
		l.log.Info("Untracked '%s'", image.Path)
		removed++
	}
	return removed, nil
}

// Move changes the path of a tracked image, keeping its parameters and tags.
// When oldPath names a directory every image below it is moved along.
func (l *Library) Move(ctx context.Context, oldPath, newPath string) error {
	images, err := l.store.ListImages(ctx)
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}

	prefix := strings.TrimSuffix(oldPath, string(filepath.Separator)) + string(filepath.Separator)
	for _, image := range images {
		target := newPath
		if image.Path != oldPath {
			rest, ok := strings.CutPrefix(image.Path, prefix)
			if !ok {
				continue
			}
			target = filepath.Join(newPath, rest)
		}

		if err := l.store.RelocateImage(ctx, image.Path, target); err != nil {
			return fmt.Errorf("failed to move '%s' to '%s': %w", image.Path, target, err)
		}
		l.log.Info("Moved '%s' to '%s'", image.Path, target)
	}
	return nil
}
