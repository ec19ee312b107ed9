package filestore

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrFileNotFound indicates no file record exists for the requested ID
	ErrFileNotFound = errors.New("file not found")

	// ErrNoContent indicates an ingest request carried no payload bytes
	ErrNoContent = errors.New("no file provided")

	// ErrBrokenReference indicates a duplicate whose original record is
	// missing. Cascade deletion keeps this unreachable in normal operation;
	// when observed it is surfaced as an internal error, never ignored.
	ErrBrokenReference = errors.New("duplicate references a missing original file")

	// ErrInvalidPage indicates a page number outside the valid range
	ErrInvalidPage = errors.New("invalid page number")

	// ErrSearchUnavailable indicates the search index could not be reached
	ErrSearchUnavailable = errors.New("search index unavailable")
)

// SizeLimitError reports an upload whose declared size exceeds the
// configured maximum.
type SizeLimitError struct {
	MaxSize  int64
	FileSize int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("file size %d exceeds maximum limit of %d bytes", e.FileSize, e.MaxSize)
}

// FileError represents an error related to file operations
type FileError struct {
	FileID uuid.UUID
	Op     string
	Err    error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file operation %s failed for file %s: %v", e.Op, e.FileID, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
