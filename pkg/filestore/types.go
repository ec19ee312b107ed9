package filestore

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// File represents a stored file record. Exactly one record per distinct
// ContentHash physically stores the bytes (IsOriginal); later uploads of
// identical content are recorded as duplicates referencing that original.
type File struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Content     []byte    `json:"-"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	ContentHash string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	IsOriginal  bool      `json:"is_original"`

	// OriginalFileID references the original record when IsOriginal is
	// false; nil otherwise.
	OriginalFileID *uuid.UUID `json:"original_file_id,omitempty"`
}

// Extension returns the lowercased suffix after the last dot of the file
// name, or "" when the name carries none.
func (f *File) Extension() string {
	idx := strings.LastIndex(f.Name, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(f.Name[idx+1:])
}

// SearchDocument is the lightweight projection of a file indexed for name
// search. It carries no content bytes and no hash.
type SearchDocument struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
	Extension   string    `json:"extension"`
}

// NewSearchDocument builds the index projection for a file.
func NewSearchDocument(f *File) *SearchDocument {
	return &SearchDocument{
		ID:          f.ID,
		Name:        f.Name,
		Size:        f.Size,
		ContentType: f.ContentType,
		CreatedAt:   f.CreatedAt,
		Extension:   f.Extension(),
	}
}

// ListFilters defines filtering options for listing files. All supplied
// filters are combined with AND semantics.
type ListFilters struct {
	// IDs restricts the listing to a candidate set. A nil slice means no
	// restriction; an empty non-nil slice matches nothing.
	IDs []uuid.UUID

	// NameContains filters by case-insensitive substring match on Name.
	NameContains string

	MinSize     *int64
	MaxSize     *int64
	ContentType string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// QueryResult is one page of a metadata query.
type QueryResult struct {
	Files       []*File `json:"results"`
	Total       int     `json:"total"`
	Pages       int     `json:"pages"`
	CurrentPage int     `json:"current_page"`
}

// StorageSavings reports the storage reclaimed by deduplication: the sum
// of declared sizes over all duplicate records.
type StorageSavings struct {
	BytesSaved         int64  `json:"bytes_saved"`
	HumanReadableSaved string `json:"human_readable_saved"`
	DuplicateCount     int64  `json:"duplicate_count"`
}

// FormatSize renders a byte count with binary unit scaling and one decimal
// place, e.g. "1.5 MB".
func FormatSize(size int64) string {
	value := float64(size)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if value < 1024.0 {
			return fmt.Sprintf("%.1f %s", value, unit)
		}
		value /= 1024.0
	}
	return fmt.Sprintf("%.1f PB", value)
}
