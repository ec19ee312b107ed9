package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var errRepositoryRequired = errors.New("repository is required")

// sniffLen is how many leading bytes participate in MIME detection.
const sniffLen = 2048

// service implements the Service interface
type service struct {
	repository    Repository
	search        SearchIndex
	maxUploadSize int64
	searchTimeout time.Duration
}

func (s *service) Ingest(ctx context.Context, req IngestRequest) (*File, error) {
	// Size is validated against the declared value before hashing so an
	// oversized payload is rejected without fingerprinting it.
	if req.DeclaredSize > s.maxUploadSize {
		return nil, &SizeLimitError{MaxSize: s.maxUploadSize, FileSize: req.DeclaredSize}
	}
	if len(req.Data) == 0 {
		return nil, ErrNoContent
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = detectContentType(req.Data)
	}

	sum := sha256.Sum256(req.Data)

	now := time.Now().UTC()
	file := &File{
		ID:          uuid.New(),
		Name:        req.Name,
		Content:     req.Data,
		Size:        req.DeclaredSize,
		ContentType: contentType,
		ContentHash: hex.EncodeToString(sum[:]),
		CreatedAt:   now,
		UpdatedAt:   now,
		IsOriginal:  true,
	}

	// The repository downgrades the record to a duplicate when an
	// original with the same hash already exists.
	if err := s.repository.CreateFile(ctx, file); err != nil {
		return nil, &FileError{FileID: file.ID, Op: "ingest", Err: err}
	}

	s.indexFile(ctx, file)

	return file, nil
}

func (s *service) GetFile(ctx context.Context, id uuid.UUID) (*File, error) {
	return s.repository.GetFile(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repository.GetFile(ctx, id); err != nil {
		return err
	}

	if s.search != nil {
		sctx, cancel := context.WithTimeout(ctx, s.searchTimeout)
		if err := s.search.Delete(sctx, id); err != nil {
			slog.Error("Failed to delete file from search index", "file_id", id, "err", err)
		}
		cancel()
	}

	if err := s.repository.DeleteFile(ctx, id); err != nil {
		return &FileError{FileID: id, Op: "delete", Err: err}
	}

	return nil
}

func (s *service) Download(ctx context.Context, id uuid.UUID) ([]byte, *File, error) {
	file, err := s.repository.GetFile(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if file.IsOriginal {
		return file.Content, file, nil
	}

	if file.OriginalFileID == nil {
		return nil, nil, &FileError{FileID: id, Op: "download", Err: ErrBrokenReference}
	}
	original, err := s.repository.GetFile(ctx, *file.OriginalFileID)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return nil, nil, &FileError{FileID: id, Op: "download", Err: ErrBrokenReference}
		}
		return nil, nil, err
	}

	return original.Content, file, nil
}

func (s *service) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	page := req.Page
	if page == 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	filters := req.Filters
	switch {
	case req.Search != "" && s.search != nil:
		ids, err := s.searchByName(ctx, req.Search)
		if err != nil {
			// Fall back to repository substring search. The fallback is
			// transparent: same response shape, no error surfaced.
			slog.Warn("Search index query failed, falling back to repository search",
				"query", req.Search, "err", err)
			filters.NameContains = req.Search
		} else {
			filters.IDs = ids
		}
	case req.Search != "":
		filters.NameContains = req.Search
	}

	files, err := s.repository.ListFiles(ctx, filters)
	if err != nil {
		return nil, err
	}

	total := len(files)
	pages := (total + pageSize - 1) / pageSize
	if pages == 0 {
		// An empty result set still has one (empty) page.
		pages = 1
	}
	if page < 1 || page > pages {
		return nil, ErrInvalidPage
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}

	return &QueryResult{
		Files:       files[start:end],
		Total:       total,
		Pages:       pages,
		CurrentPage: page,
	}, nil
}

func (s *service) MaxUploadSize() int64 {
	return s.maxUploadSize
}

func (s *service) StorageSavings(ctx context.Context) (*StorageSavings, error) {
	bytesSaved, duplicateCount, err := s.repository.StorageSavings(ctx)
	if err != nil {
		return nil, err
	}

	return &StorageSavings{
		BytesSaved:         bytesSaved,
		HumanReadableSaved: FormatSize(bytesSaved),
		DuplicateCount:     duplicateCount,
	}, nil
}

// indexFile writes the search projection for file. Failures are logged
// and discarded: ingestion never depends on the index.
func (s *service) indexFile(ctx context.Context, file *File) {
	if s.search == nil {
		return
	}

	sctx, cancel := context.WithTimeout(ctx, s.searchTimeout)
	defer cancel()

	if err := s.search.Index(sctx, NewSearchDocument(file)); err != nil {
		slog.Error("Failed to index file in search index", "file_id", file.ID, "err", err)
	}
}

func (s *service) searchByName(ctx context.Context, query string) ([]uuid.UUID, error) {
	sctx, cancel := context.WithTimeout(ctx, s.searchTimeout)
	defer cancel()

	ids, err := s.search.SearchByName(sctx, query)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return ids, nil
}

// detectContentType sniffs the MIME type from the first 2048 bytes.
func detectContentType(data []byte) string {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return mimetype.Detect(data).String()
}
