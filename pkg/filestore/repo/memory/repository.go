package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-filestore/pkg/filestore"
)

// Repository implements filestore.Repository using in-memory storage
type Repository struct {
	mu    sync.RWMutex
	files map[uuid.UUID]*filestore.File

	// originals maps content hash -> id of the single original record,
	// guarding the one-original-per-hash invariant under the same lock
	// as the insert.
	originals map[string]uuid.UUID
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		files:     make(map[uuid.UUID]*filestore.File),
		originals: make(map[string]uuid.UUID),
	}
}

func (r *Repository) CreateFile(ctx context.Context, file *filestore.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Hash lookup and insert run under one lock so two concurrent
	// identical uploads cannot both become originals.
	if originalID, exists := r.originals[file.ContentHash]; exists {
		file.IsOriginal = false
		file.Content = nil
		id := originalID
		file.OriginalFileID = &id
	} else {
		file.IsOriginal = true
		file.OriginalFileID = nil
		r.originals[file.ContentHash] = file.ID
	}

	fileCopy := *file
	if fileCopy.Content != nil {
		// Clone the bytes so callers mutating their upload buffer after the
		// create cannot mutate the stored original.
		fileCopy.Content = append([]byte(nil), file.Content...)
	}
	r.files[file.ID] = &fileCopy

	return nil
}

func (r *Repository) GetFile(ctx context.Context, id uuid.UUID) (*filestore.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	file, exists := r.files[id]
	if !exists {
		return nil, filestore.ErrFileNotFound
	}

	// Return a copy to prevent external modifications
	fileCopy := *file
	return &fileCopy, nil
}

func (r *Repository) GetOriginalFile(ctx context.Context, contentHash string) (*filestore.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.originals[contentHash]
	if !exists {
		return nil, filestore.ErrFileNotFound
	}
	file, exists := r.files[id]
	if !exists {
		return nil, filestore.ErrFileNotFound
	}

	fileCopy := *file
	return &fileCopy, nil
}

func (r *Repository) ListFiles(ctx context.Context, filters filestore.ListFilters) ([]*filestore.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates map[uuid.UUID]bool
	if filters.IDs != nil {
		candidates = make(map[uuid.UUID]bool, len(filters.IDs))
		for _, id := range filters.IDs {
			candidates[id] = true
		}
	}

	result := []*filestore.File{}
	for _, file := range r.files {
		if candidates != nil && !candidates[file.ID] {
			continue
		}
		if !matchesFilters(file, filters) {
			continue
		}
		fileCopy := *file
		fileCopy.Content = nil
		result = append(result, &fileCopy)
	}

	// Sort by created_at descending
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *Repository) DeleteFile(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, exists := r.files[id]
	if !exists {
		return filestore.ErrFileNotFound
	}

	delete(r.files, id)

	if file.IsOriginal {
		delete(r.originals, file.ContentHash)
		// Cascade: remove every duplicate referencing this original.
		for dupID, dup := range r.files {
			if dup.OriginalFileID != nil && *dup.OriginalFileID == id {
				delete(r.files, dupID)
			}
		}
	}

	return nil
}

func (r *Repository) StorageSavings(ctx context.Context) (int64, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var bytesSaved, duplicateCount int64
	for _, file := range r.files {
		if !file.IsOriginal {
			bytesSaved += file.Size
			duplicateCount++
		}
	}

	return bytesSaved, duplicateCount, nil
}

func matchesFilters(file *filestore.File, filters filestore.ListFilters) bool {
	if filters.NameContains != "" &&
		!strings.Contains(strings.ToLower(file.Name), strings.ToLower(filters.NameContains)) {
		return false
	}
	if filters.MinSize != nil && file.Size < *filters.MinSize {
		return false
	}
	if filters.MaxSize != nil && file.Size > *filters.MaxSize {
		return false
	}
	if filters.ContentType != "" && file.ContentType != filters.ContentType {
		return false
	}
	if filters.CreatedFrom != nil && file.CreatedAt.Before(*filters.CreatedFrom) {
		return false
	}
	if filters.CreatedTo != nil && file.CreatedAt.After(*filters.CreatedTo) {
		return false
	}
	return true
}
