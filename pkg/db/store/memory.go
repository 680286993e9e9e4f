package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mwantia/imgtag/pkg/db/models"
	"github.com/tidwall/btree"
)

// MemoryStore implements LibraryStore in process memory.
// B-trees keep images ordered by path and tags ordered by name, so listings need no sorting.
type MemoryStore struct {
	mu sync.RWMutex

	images *btree.Map[string, *memoryImage] // path -> image
	byID   map[uint]*memoryImage
	tags   *btree.Map[string, uint] // name -> tag id
	names  map[uint]string          // tag id -> name

	nextImageID uint
	nextTagID   uint
}

type memoryImage struct {
	image models.Image
	tags  map[uint]struct{}
}

// NewMemoryStore creates an empty in-memory library store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		images: btree.NewMap[string, *memoryImage](0),
		byID:   make(map[uint]*memoryImage),
		tags:   btree.NewMap[string, uint](0),
		names:  make(map[uint]string),
	}
}

func (m *MemoryStore) Connect(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) Migrate(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) Health(ctx context.Context) error {
	return nil
}

// Image operations

func (m *MemoryStore) UpsertImage(ctx context.Context, path string) error {
	if path == "" {
		return constraintViolation("image path must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.insertImage(path)
	return nil
}

func (m *MemoryStore) UpsertImageWithParams(ctx context.Context, path, params string) error {
	if path == "" {
		return constraintViolation("image path must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, created := m.insertImage(path); created {
		entry.image.Params = &params
	}
	return nil
}

func (m *MemoryStore) SetParams(ctx context.Context, path, params string) error {
	if path == "" {
		return constraintViolation("image path must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, _ := m.insertImage(path)
	entry.image.Params = &params
	entry.image.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) GetParams(ctx context.Context, path string) (*string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.images.Get(path)
	if !ok || entry.image.Params == nil {
		return nil, nil
	}
	params := *entry.image.Params
	return &params, nil
}

func (m *MemoryStore) GetImage(ctx context.Context, path string) (*models.Image, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.images.Get(path)
	if !ok {
		return nil, ErrNotFound
	}
	image := entry.snapshot()
	return &image, nil
}

func (m *MemoryStore) ListImages(ctx context.Context) ([]models.Image, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	images := make([]models.Image, 0, m.images.Len())
	m.images.Scan(func(_ string, entry *memoryImage) bool {
		images = append(images, entry.snapshot())
		return true
	})
	return images, nil
}

func (m *MemoryStore) RelocateImage(ctx context.Context, oldPath, newPath string) error {
	if newPath == "" {
		return constraintViolation("image path must not be empty")
	}
	if oldPath == newPath {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.images.Get(oldPath)
	if !ok {
		return nil
	}
	if _, taken := m.images.Get(newPath); taken {
		return constraintViolation("image path '%s' already belongs to another image", newPath)
	}

	m.images.Delete(oldPath)
	entry.image.Path = newPath
	entry.image.Name = models.ImageName(newPath)
	entry.image.UpdatedAt = time.Now().UTC()
	m.images.Set(newPath, entry)
	return nil
}

func (m *MemoryStore) RemoveImage(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.images.Delete(path)
	if ok {
		delete(m.byID, entry.image.ID)
	}
	return nil
}

// Tag operations

func (m *MemoryStore) CreateTag(ctx context.Context, name string) error {
	if name == "" {
		return constraintViolation("tag name must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tags.Get(name); ok {
		return nil
	}
	m.nextTagID++
	m.tags.Set(name, m.nextTagID)
	m.names[m.nextTagID] = name
	return nil
}

func (m *MemoryStore) ListTags(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, m.tags.Len())
	m.tags.Scan(func(name string, _ uint) bool {
		names = append(names, name)
		return true
	})
	return names, nil
}

func (m *MemoryStore) TagCounts(ctx context.Context) ([]models.TagCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	usage := make(map[uint]int64, m.tags.Len())
	for _, entry := range m.byID {
		for id := range entry.tags {
			usage[id]++
		}
	}

	counts := make([]models.TagCount, 0, m.tags.Len())
	m.tags.Scan(func(name string, id uint) bool {
		counts = append(counts, models.TagCount{Name: name, Count: usage[id]})
		return true
	})
	return counts, nil
}

// Association operations

func (m *MemoryStore) AttachTag(ctx context.Context, path, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.images.Get(path)
	if !ok {
		return nil
	}
	id, ok := m.tags.Get(tag)
	if !ok {
		return nil
	}
	entry.tags[id] = struct{}{}
	return nil
}

func (m *MemoryStore) AttachTagByID(ctx context.Context, imageID, tagID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.byID[imageID]
	if !ok {
		return nil
	}
	if _, ok := m.names[tagID]; !ok {
		return nil
	}
	entry.tags[tagID] = struct{}{}
	return nil
}

func (m *MemoryStore) DetachTag(ctx context.Context, path, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.images.Get(path)
	if !ok {
		return nil
	}
	if id, ok := m.tags.Get(tag); ok {
		delete(entry.tags, id)
	}
	return nil
}

func (m *MemoryStore) DetachTagByID(ctx context.Context, imageID, tagID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.byID[imageID]; ok {
		delete(entry.tags, tagID)
	}
	return nil
}

func (m *MemoryStore) GetImageTags(ctx context.Context, path string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.images.Get(path)
	if !ok {
		return []string{}, nil
	}
	return m.tagNames(entry), nil
}

func (m *MemoryStore) GetImageTagsByID(ctx context.Context, imageID uint) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.byID[imageID]
	if !ok {
		return []string{}, nil
	}
	return m.tagNames(entry), nil
}

// Search operations

func (m *MemoryStore) SearchAnyTags(ctx context.Context, tags []string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := uniqueNames(tags)
	return m.search(func(entry *memoryImage) bool {
		return m.matchCount(entry, names) > 0
	}), nil
}

func (m *MemoryStore) SearchAllTags(ctx context.Context, tags []string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := uniqueNames(tags)
	return m.search(func(entry *memoryImage) bool {
		return m.matchCount(entry, names) == len(names)
	}), nil
}

func (m *MemoryStore) SearchTagsAdvanced(ctx context.Context, positive, negative []string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	include := uniqueNames(positive)
	exclude := uniqueNames(negative)
	return m.search(func(entry *memoryImage) bool {
		return m.matchCount(entry, include) == len(include) && m.matchCount(entry, exclude) == 0
	}), nil
}

func (m *MemoryStore) SearchParams(ctx context.Context, query string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.search(func(entry *memoryImage) bool {
		return entry.image.Params != nil && strings.Contains(*entry.image.Params, query)
	}), nil
}

// insertImage returns the entry at path, creating it when absent. Caller holds the write lock.
func (m *MemoryStore) insertImage(path string) (*memoryImage, bool) {
	if entry, ok := m.images.Get(path); ok {
		return entry, false
	}

	m.nextImageID++
	now := time.Now().UTC()

	entry := &memoryImage{
		image: *models.NewImage(path),
		tags:  make(map[uint]struct{}),
	}
	entry.image.ID = m.nextImageID
	entry.image.CreatedAt = now
	entry.image.UpdatedAt = now

	m.images.Set(path, entry)
	m.byID[entry.image.ID] = entry
	return entry, true
}

func (m *MemoryStore) matchCount(entry *memoryImage, names []string) int {
	count := 0
	for _, name := range names {
		id, ok := m.tags.Get(name)
		if !ok {
			continue
		}
		if _, ok := entry.tags[id]; ok {
			count++
		}
	}
	return count
}

func (m *MemoryStore) tagNames(entry *memoryImage) []string {
	names := make([]string, 0, len(entry.tags))
	for id := range entry.tags {
		names = append(names, m.names[id])
	}
	sort.Strings(names)
	return names
}

func (m *MemoryStore) search(match func(*memoryImage) bool) []string {
	matched := make([]*memoryImage, 0)
	for _, entry := range m.byID {
		if match(entry) {
			matched = append(matched, entry)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].image.Name != matched[j].image.Name {
			return matched[i].image.Name > matched[j].image.Name
		}
		return matched[i].image.ID < matched[j].image.ID
	})

	paths := make([]string, len(matched))
	for i, entry := range matched {
		paths[i] = entry.image.Path
	}
	return paths
}

func (e *memoryImage) snapshot() models.Image {
	image := e.image
	if e.image.Params != nil {
		params := *e.image.Params
		image.Params = &params
	}
	return image
}

var _ LibraryStore = (*MemoryStore)(nil)
