package filestore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Defaults applied by New when the corresponding option is not supplied.
const (
	// DefaultMaxUploadSize is the upload size limit in bytes.
	DefaultMaxUploadSize int64 = 10 << 20

	// DefaultPageSize is the page length used when a query does not
	// specify one.
	DefaultPageSize = 10

	// DefaultSearchTimeout bounds every search index call so an
	// unreachable index cannot stall ingestion or queries.
	DefaultSearchTimeout = 5 * time.Second
)

// Service defines the main interface for the simple-filestore library
type Service interface {
	// Ingest validates an upload, fingerprints it, stores it as an
	// original or duplicate, and indexes it best-effort.
	Ingest(ctx context.Context, req IngestRequest) (*File, error)

	// GetFile returns a file record by ID.
	GetFile(ctx context.Context, id uuid.UUID) (*File, error)

	// Delete removes a file, cascading from an original to its
	// duplicates, and best-effort removes it from the search index.
	Delete(ctx context.Context, id uuid.UUID) error

	// Download returns the file's content bytes plus its record. For a
	// duplicate the bytes are resolved through its original.
	Download(ctx context.Context, id uuid.UUID) ([]byte, *File, error)

	// Query composes a paginated result set from the search index when
	// usable, or the repository directly otherwise.
	Query(ctx context.Context, req QueryRequest) (*QueryResult, error)

	// StorageSavings reports the bytes reclaimed by deduplication.
	StorageSavings(ctx context.Context) (*StorageSavings, error)

	// MaxUploadSize returns the configured upload size limit in bytes,
	// letting transports reject oversized payloads before reading them.
	MaxUploadSize() int64
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithSearchIndex sets the optional search index. Without it, queries go
// straight to the repository.
func WithSearchIndex(index SearchIndex) Option {
	return func(s *service) {
		s.search = index
	}
}

// WithMaxUploadSize sets the upload size limit in bytes
func WithMaxUploadSize(maxSize int64) Option {
	return func(s *service) {
		s.maxUploadSize = maxSize
	}
}

// WithSearchTimeout bounds individual search index calls
func WithSearchTimeout(timeout time.Duration) Option {
	return func(s *service) {
		s.searchTimeout = timeout
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		maxUploadSize: DefaultMaxUploadSize,
		searchTimeout: DefaultSearchTimeout,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, errRepositoryRequired
	}

	return s, nil
}
