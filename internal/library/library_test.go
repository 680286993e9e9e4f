package library

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	config "github.com/mwantia/imgtag/internal/config/server"
	"github.com/mwantia/imgtag/pkg/db/store"
	"github.com/mwantia/imgtag/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExtractor answers by file name
type fakeExtractor map[string]string

var errCorrupt = errors.New("corrupt")

func (f fakeExtractor) Extract(path string) (string, bool, error) {
	params, ok := f[filepath.Base(path)]
	if params == "corrupt" {
		return "", false, errCorrupt
	}
	return params, ok, nil
}

func newTestLibrary(t *testing.T, extractor fakeExtractor, autoTag bool) (*Library, store.LibraryStore) {
	t.Helper()

	defaults := config.GetServerDefault()
	cfg := defaults.Library
	cfg.AutoTag = autoTag

	s := store.NewMemoryStore()
	logger := log.NewLoggerServiceTo("test", defaults.Log, io.Discard)
	return New(s, logger, extractor, cfg), s
}

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
}

func TestLibrary_Accepts(t *testing.T) {
	lib, _ := newTestLibrary(t, nil, false)

	assert.True(t, lib.Accepts("/a/b.png"))
	assert.True(t, lib.Accepts("/a/b.JPEG"))
	assert.True(t, lib.Accepts("clip.webm"))
	assert.False(t, lib.Accepts("/a/notes.txt"))
	assert.False(t, lib.Accepts("/a/png"))
}

func TestLibrary_IngestFileStoresParams(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.png", "b.jpg")
	lib, s := newTestLibrary(t, fakeExtractor{"a.png": "giraffe, music Negative prompt: ugly"}, false)

	require.NoError(t, lib.IngestFile(t.Context(), filepath.Join(root, "a.png")))
	require.NoError(t, lib.IngestFile(t.Context(), filepath.Join(root, "b.jpg")))

	params, err := s.GetParams(t.Context(), filepath.Join(root, "a.png"))
	require.NoError(t, err)
	require.NotNil(t, params)
	assert.Equal(t, "giraffe, music Negative prompt: ugly", *params)

	params, err = s.GetParams(t.Context(), filepath.Join(root, "b.jpg"))
	require.NoError(t, err)
	assert.Nil(t, params)

	tags, err := s.ListTags(t.Context())
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestLibrary_IngestFileAutoTags(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.png")
	path := filepath.Join(root, "a.png")
	lib, s := newTestLibrary(t, fakeExtractor{"a.png": "((giraffe)), music, , giraffe Negative prompt: ugly"}, true)

	require.NoError(t, lib.IngestFile(t.Context(), path))

	tags, err := s.GetImageTags(t.Context(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"giraffe", "music"}, tags)

	paths, err := s.SearchAllTags(t.Context(), []string{"giraffe", "music"})
	require.NoError(t, err)
	assert.Equal(t, []string{path}, paths)
}

func TestLibrary_IngestFileErrors(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "bad.png")
	lib, s := newTestLibrary(t, fakeExtractor{"bad.png": "corrupt"}, false)

	assert.ErrorIs(t, lib.IngestFile(t.Context(), filepath.Join(root, "bad.png")), errCorrupt)
	assert.Error(t, lib.IngestFile(t.Context(), filepath.Join(root, "missing.png")))
	assert.Error(t, lib.IngestFile(t.Context(), root))

	images, err := s.ListImages(t.Context())
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestLibrary_IngestDirectoryContinuesPastFailures(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.png", "bad.png", "notes.txt", "nested/c.webp")
	lib, s := newTestLibrary(t, fakeExtractor{"bad.png": "corrupt", "a.png": "cat"}, false)

	report, err := lib.IngestDirectory(t.Context(), root, true)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, report.RunID)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 2, report.Ingested)
	assert.Equal(t, 1, report.Failed)

	images, err := s.ListImages(t.Context())
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, filepath.Join(root, "a.png"), images[0].Path)
	assert.Equal(t, filepath.Join(root, "nested", "c.webp"), images[1].Path)
}

func TestLibrary_IngestDirectoryNonRecursive(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.png", "nested/b.png")
	lib, _ := newTestLibrary(t, nil, false)

	report, err := lib.IngestDirectory(t.Context(), root, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Ingested)

	_, err = lib.IngestDirectory(t.Context(), filepath.Join(root, "missing"), true)
	assert.Error(t, err)
}

func TestLibrary_TagImage(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.png")
	path := filepath.Join(root, "a.png")
	lib, s := newTestLibrary(t, nil, false)
	require.NoError(t, lib.IngestFile(t.Context(), path))

	require.NoError(t, lib.TagImage(t.Context(), path, "cat"))
	require.NoError(t, lib.TagImage(t.Context(), path, "cat"))

	// Untracked images are not created by tagging, but the tag is
	require.NoError(t, lib.TagImage(t.Context(), filepath.Join(root, "other.png"), "dog"))

	counts, err := s.TagCounts(t.Context())
	require.NoError(t, err)
	assert.Len(t, counts, 2)
	assert.Equal(t, "cat", counts[0].Name)
	assert.Equal(t, int64(1), counts[0].Count)
	assert.Equal(t, "dog", counts[1].Name)
	assert.Equal(t, int64(0), counts[1].Count)

	require.NoError(t, lib.UntagImage(t.Context(), path, "cat"))
	tags, err := s.GetImageTags(t.Context(), path)
	require.NoError(t, err)
	assert.Empty(t, tags)

	assert.ErrorIs(t, lib.TagImage(t.Context(), path, ""), store.ErrConstraintViolation)
}

func TestLibrary_UntrackDirectory(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "keep.png", "sub/a.png", "sub/deeper/b.png", "subway.png")
	lib, s := newTestLibrary(t, nil, false)

	_, err := lib.IngestDirectory(t.Context(), root, true)
	require.NoError(t, err)

	removed, err := lib.Untrack(t.Context(), filepath.Join(root, "sub"))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = lib.Untrack(t.Context(), filepath.Join(root, "keep.png"))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	images, err := s.ListImages(t.Context())
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, filepath.Join(root, "subway.png"), images[0].Path)
}

func TestLibrary_Move(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.png", "b.png")
	a, b := filepath.Join(root, "a.png"), filepath.Join(root, "b.png")
	lib, s := newTestLibrary(t, nil, false)

	_, err := lib.IngestDirectory(t.Context(), root, true)
	require.NoError(t, err)
	require.NoError(t, lib.TagImage(t.Context(), a, "cat"))

	assert.ErrorIs(t, lib.Move(t.Context(), a, b), store.ErrConstraintViolation)

	moved := filepath.Join(root, "renamed.png")
	require.NoError(t, lib.Move(t.Context(), a, moved))

	tags, err := s.GetImageTags(t.Context(), moved)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, tags)

	image, err := s.GetImage(t.Context(), moved)
	require.NoError(t, err)
	assert.Equal(t, "renamed.png", image.Name)
}

// rejectingStore refuses to create one tag name
type rejectingStore struct {
	store.LibraryStore
	reject string
}

func (r *rejectingStore) CreateTag(ctx context.Context, name string) error {
	if name == r.reject {
		return store.ErrConstraintViolation
	}
	return r.LibraryStore.CreateTag(ctx, name)
}

func TestLibrary_IngestFileSkipsFailingTags(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.png")
	path := filepath.Join(root, "a.png")

	defaults := config.GetServerDefault()
	cfg := defaults.Library
	cfg.AutoTag = true

	s := &rejectingStore{LibraryStore: store.NewMemoryStore(), reject: "music"}
	lib := New(s, log.NewLoggerServiceTo("test", defaults.Log, io.Discard),
		fakeExtractor{"a.png": "giraffe, music, hat"}, cfg)

	require.NoError(t, lib.IngestFile(t.Context(), path))

	tags, err := s.GetImageTags(t.Context(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"giraffe", "hat"}, tags)

	report, err := lib.IngestDirectory(t.Context(), root, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Ingested)
	assert.Zero(t, report.Failed)
}

func TestLibrary_MoveDirectory(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "old/a.png", "old/deeper/b.png", "older.png")
	lib, s := newTestLibrary(t, nil, false)

	_, err := lib.IngestDirectory(t.Context(), root, true)
	require.NoError(t, err)
	require.NoError(t, lib.TagImage(t.Context(), filepath.Join(root, "old", "deeper", "b.png"), "cat"))

	require.NoError(t, lib.Move(t.Context(), filepath.Join(root, "old"), filepath.Join(root, "new")))

	images, err := s.ListImages(t.Context())
	require.NoError(t, err)
	paths := make([]string, len(images))
	for i, image := range images {
		paths[i] = image.Path
	}
	assert.Equal(t, []string{
		filepath.Join(root, "new", "a.png"),
		filepath.Join(root, "new", "deeper", "b.png"),
		filepath.Join(root, "older.png"),
	}, paths)

	tags, err := s.GetImageTags(t.Context(), filepath.Join(root, "new", "deeper", "b.png"))
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, tags)
}
