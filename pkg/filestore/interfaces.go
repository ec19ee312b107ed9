package filestore

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for file record persistence. It is the
// single source of truth and sole writer of durable state.
type Repository interface {
	// CreateFile persists file, deciding original-vs-duplicate for its
	// ContentHash atomically with respect to concurrent identical uploads.
	// When an original with the same hash already exists, the record is
	// stored as a duplicate: content cleared, IsOriginal false and
	// OriginalFileID set. The decision is reflected back into file.
	CreateFile(ctx context.Context, file *File) error

	// GetFile returns the record including its content bytes, or
	// ErrFileNotFound.
	GetFile(ctx context.Context, id uuid.UUID) (*File, error)

	// GetOriginalFile returns the single original record for a content
	// hash, or ErrFileNotFound.
	GetOriginalFile(ctx context.Context, contentHash string) (*File, error)

	// ListFiles returns records matching all supplied filters, newest
	// first. Content bytes are not populated.
	ListFiles(ctx context.Context, filters ListFilters) ([]*File, error)

	// DeleteFile removes the record. Deleting an original also removes
	// every duplicate referencing it, in the same atomic operation.
	// Returns ErrFileNotFound when the record is absent.
	DeleteFile(ctx context.Context, id uuid.UUID) error

	// StorageSavings returns the sum of declared sizes over all duplicate
	// records and their count.
	StorageSavings(ctx context.Context) (bytesSaved int64, duplicateCount int64, err error)
}

// SearchIndex defines the interface for the optional secondary name index.
// It is a best-effort collaborator: implementations return errors, and the
// service layer is the single place that logs and discards them.
type SearchIndex interface {
	// Index upserts the projection keyed by its ID.
	Index(ctx context.Context, doc *SearchDocument) error

	// Delete removes the projection for the given file ID.
	Delete(ctx context.Context, id uuid.UUID) error

	// SearchByName returns the IDs of files whose name matches the query
	// under the index's native text-match semantics. The returned slice is
	// non-nil; empty means no matches.
	SearchByName(ctx context.Context, query string) ([]uuid.UUID, error)
}
