package filestore_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-filestore/pkg/filestore"
	"github.com/tendant/simple-filestore/pkg/filestore/repo/memory"
)

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []filestore.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []filestore.Option{},
			expectError: true,
		},
		{
			name: "with repository should succeed",
			options: []filestore.Option{
				filestore.WithRepository(memory.New()),
			},
			expectError: false,
		},
		{
			name: "with repository and search index should succeed",
			options: []filestore.Option{
				filestore.WithRepository(memory.New()),
				filestore.WithSearchIndex(newStubSearchIndex()),
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := filestore.New(tt.options...)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func setupTestService(t *testing.T, options ...filestore.Option) filestore.Service {
	options = append([]filestore.Option{filestore.WithRepository(memory.New())}, options...)

	svc, err := filestore.New(options...)
	require.NoError(t, err)
	require.NotNil(t, svc)

	return svc
}

func ingest(t *testing.T, svc filestore.Service, name string, data []byte) *filestore.File {
	t.Helper()
	file, err := svc.Ingest(context.Background(), filestore.IngestRequest{
		Name:         name,
		ContentType:  "text/plain",
		DeclaredSize: int64(len(data)),
		Data:         data,
	})
	require.NoError(t, err)
	require.NotNil(t, file)
	return file
}

func TestIngestDeduplication(t *testing.T) {
	svc := setupTestService(t)

	t.Run("identical payloads share one original", func(t *testing.T) {
		a := ingest(t, svc, "a.txt", []byte("hello"))
		assert.True(t, a.IsOriginal)
		assert.Nil(t, a.OriginalFileID)
		assert.Len(t, a.ContentHash, 64)

		b := ingest(t, svc, "b.txt", []byte("hello"))
		assert.False(t, b.IsOriginal)
		require.NotNil(t, b.OriginalFileID)
		assert.Equal(t, a.ID, *b.OriginalFileID)
		assert.Equal(t, a.ContentHash, b.ContentHash)
		assert.Equal(t, int64(5), b.Size)
	})

	t.Run("distinct payloads are both originals", func(t *testing.T) {
		c := ingest(t, svc, "c.txt", []byte("first payload"))
		d := ingest(t, svc, "d.txt", []byte("second payload"))

		assert.True(t, c.IsOriginal)
		assert.True(t, d.IsOriginal)
		assert.NotEqual(t, c.ContentHash, d.ContentHash)
	})
}

func TestIngestValidation(t *testing.T) {
	svc := setupTestService(t, filestore.WithMaxUploadSize(16))
	ctx := context.Background()

	t.Run("empty payload", func(t *testing.T) {
		_, err := svc.Ingest(ctx, filestore.IngestRequest{Name: "empty.txt"})
		assert.ErrorIs(t, err, filestore.ErrNoContent)
	})

	t.Run("oversized payload", func(t *testing.T) {
		_, err := svc.Ingest(ctx, filestore.IngestRequest{
			Name:         "big.bin",
			DeclaredSize: 17,
			Data:         make([]byte, 17),
		})

		var sizeErr *filestore.SizeLimitError
		require.ErrorAs(t, err, &sizeErr)
		assert.Equal(t, int64(16), sizeErr.MaxSize)
		assert.Equal(t, int64(17), sizeErr.FileSize)
	})

	t.Run("rejected uploads create no records", func(t *testing.T) {
		result, err := svc.Query(ctx, filestore.QueryRequest{})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Total)
	})
}

func TestIngestContentTypeDetection(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	t.Run("sniffed when not supplied", func(t *testing.T) {
		// PNG magic bytes
		data := []byte("\x89PNG\r\n\x1a\npadding so the payload is not empty")
		file, err := svc.Ingest(ctx, filestore.IngestRequest{
			Name:         "image.png",
			DeclaredSize: int64(len(data)),
			Data:         data,
		})
		require.NoError(t, err)
		assert.Equal(t, "image/png", file.ContentType)
	})

	t.Run("declared type wins", func(t *testing.T) {
		data := []byte("plain text")
		file, err := svc.Ingest(ctx, filestore.IngestRequest{
			Name:         "notes.md",
			ContentType:  "text/markdown",
			DeclaredSize: int64(len(data)),
			Data:         data,
		})
		require.NoError(t, err)
		assert.Equal(t, "text/markdown", file.ContentType)
	})
}

func TestDeleteCascade(t *testing.T) {
	ctx := context.Background()

	t.Run("deleting an original removes its duplicates", func(t *testing.T) {
		svc := setupTestService(t)
		original := ingest(t, svc, "a.txt", []byte("shared"))
		dup1 := ingest(t, svc, "b.txt", []byte("shared"))
		dup2 := ingest(t, svc, "c.txt", []byte("shared"))

		require.NoError(t, svc.Delete(ctx, original.ID))

		for _, id := range []uuid.UUID{original.ID, dup1.ID, dup2.ID} {
			_, err := svc.GetFile(ctx, id)
			assert.ErrorIs(t, err, filestore.ErrFileNotFound)
		}
	})

	t.Run("deleting a duplicate leaves the original", func(t *testing.T) {
		svc := setupTestService(t)
		original := ingest(t, svc, "a.txt", []byte("shared"))
		dup := ingest(t, svc, "b.txt", []byte("shared"))

		require.NoError(t, svc.Delete(ctx, dup.ID))

		_, err := svc.GetFile(ctx, dup.ID)
		assert.ErrorIs(t, err, filestore.ErrFileNotFound)
		_, err = svc.GetFile(ctx, original.ID)
		assert.NoError(t, err)
	})

	t.Run("unknown id", func(t *testing.T) {
		svc := setupTestService(t)
		err := svc.Delete(ctx, uuid.New())
		assert.ErrorIs(t, err, filestore.ErrFileNotFound)
	})
}

func TestDownload(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	payload := []byte("download me")
	original := ingest(t, svc, "a.txt", payload)
	dup := ingest(t, svc, "b.txt", payload)

	t.Run("original", func(t *testing.T) {
		content, file, err := svc.Download(ctx, original.ID)
		require.NoError(t, err)
		assert.Equal(t, payload, content)
		assert.Equal(t, original.ID, file.ID)
	})

	t.Run("duplicate resolves through original", func(t *testing.T) {
		content, file, err := svc.Download(ctx, dup.ID)
		require.NoError(t, err)
		assert.Equal(t, payload, content)
		assert.Equal(t, dup.ID, file.ID)
		assert.False(t, file.IsOriginal)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, _, err := svc.Download(ctx, uuid.New())
		assert.ErrorIs(t, err, filestore.ErrFileNotFound)
	})
}

func TestDownloadBrokenReference(t *testing.T) {
	orphanID := uuid.New()
	missingID := uuid.New()
	repo := &brokenRepository{
		orphan: &filestore.File{
			ID:             orphanID,
			Name:           "orphan.txt",
			IsOriginal:     false,
			OriginalFileID: &missingID,
		},
	}

	svc, err := filestore.New(filestore.WithRepository(repo))
	require.NoError(t, err)

	_, _, err = svc.Download(context.Background(), orphanID)
	assert.ErrorIs(t, err, filestore.ErrBrokenReference)
}

func TestQueryPagination(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	for i := 0; i < 16; i++ {
		ingest(t, svc, fmt.Sprintf("file-%02d.txt", i), []byte(fmt.Sprintf("payload %d", i)))
	}

	t.Run("first page", func(t *testing.T) {
		result, err := svc.Query(ctx, filestore.QueryRequest{Page: 1})
		require.NoError(t, err)
		assert.Len(t, result.Files, 10)
		assert.Equal(t, 16, result.Total)
		assert.Equal(t, 2, result.Pages)
		assert.Equal(t, 1, result.CurrentPage)
	})

	t.Run("last page", func(t *testing.T) {
		result, err := svc.Query(ctx, filestore.QueryRequest{Page: 2})
		require.NoError(t, err)
		assert.Len(t, result.Files, 6)
		assert.Equal(t, 2, result.CurrentPage)
	})

	t.Run("page beyond the last is invalid", func(t *testing.T) {
		_, err := svc.Query(ctx, filestore.QueryRequest{Page: 3})
		assert.ErrorIs(t, err, filestore.ErrInvalidPage)
	})

	t.Run("newest first", func(t *testing.T) {
		result, err := svc.Query(ctx, filestore.QueryRequest{Page: 1})
		require.NoError(t, err)
		assert.Equal(t, "file-15.txt", result.Files[0].Name)
	})

	t.Run("empty store has one empty page", func(t *testing.T) {
		empty := setupTestService(t)
		result, err := empty.Query(ctx, filestore.QueryRequest{Page: 1})
		require.NoError(t, err)
		assert.Empty(t, result.Files)
		assert.Equal(t, 0, result.Total)
		assert.Equal(t, 1, result.Pages)
	})
}

func TestQueryFilters(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	small := ingest(t, svc, "Report.pdf", []byte("ab"))
	large := ingest(t, svc, "archive.zip", []byte("abcdefghij"))

	t.Run("size bounds", func(t *testing.T) {
		minSize := int64(5)
		result, err := svc.Query(ctx, filestore.QueryRequest{
			Filters: filestore.ListFilters{MinSize: &minSize},
		})
		require.NoError(t, err)
		require.Len(t, result.Files, 1)
		assert.Equal(t, large.ID, result.Files[0].ID)
	})

	t.Run("case-insensitive name substring", func(t *testing.T) {
		result, err := svc.Query(ctx, filestore.QueryRequest{Search: "report"})
		require.NoError(t, err)
		require.Len(t, result.Files, 1)
		assert.Equal(t, small.ID, result.Files[0].ID)
	})

	t.Run("content type equality", func(t *testing.T) {
		result, err := svc.Query(ctx, filestore.QueryRequest{
			Filters: filestore.ListFilters{ContentType: "text/plain"},
		})
		require.NoError(t, err)
		assert.Len(t, result.Files, 2)
	})
}

func TestQuerySearchIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("index results restrict the listing", func(t *testing.T) {
		index := newStubSearchIndex()
		svc := setupTestService(t, filestore.WithSearchIndex(index))

		match := ingest(t, svc, "quarterly report.pdf", []byte("one"))
		ingest(t, svc, "holiday photo.jpg", []byte("two"))

		index.results = []uuid.UUID{match.ID}
		result, err := svc.Query(ctx, filestore.QueryRequest{Search: "report"})
		require.NoError(t, err)
		require.Len(t, result.Files, 1)
		assert.Equal(t, match.ID, result.Files[0].ID)
	})

	t.Run("empty index result matches nothing", func(t *testing.T) {
		index := newStubSearchIndex()
		svc := setupTestService(t, filestore.WithSearchIndex(index))
		ingest(t, svc, "report.pdf", []byte("one"))

		index.results = []uuid.UUID{}
		result, err := svc.Query(ctx, filestore.QueryRequest{Search: "nothing"})
		require.NoError(t, err)
		assert.Empty(t, result.Files)
		assert.Equal(t, 0, result.Total)
	})

	t.Run("failing index falls back to substring match", func(t *testing.T) {
		index := newStubSearchIndex()
		svc := setupTestService(t, filestore.WithSearchIndex(index))

		match := ingest(t, svc, "quarterly report.pdf", []byte("one"))
		ingest(t, svc, "holiday photo.jpg", []byte("two"))

		index.searchErr = errors.New("connection refused")
		withIndex, err := svc.Query(ctx, filestore.QueryRequest{Search: "report"})
		require.NoError(t, err)

		plain := setupTestService(t)
		// Rebuild the same records without any index configured.
		plainMatch := ingest(t, plain, "quarterly report.pdf", []byte("one"))
		ingest(t, plain, "holiday photo.jpg", []byte("two"))
		direct, err := plain.Query(ctx, filestore.QueryRequest{Search: "report"})
		require.NoError(t, err)

		require.Len(t, withIndex.Files, 1)
		require.Len(t, direct.Files, 1)
		assert.Equal(t, match.ID, withIndex.Files[0].ID)
		assert.Equal(t, plainMatch.ID, direct.Files[0].ID)
		assert.Equal(t, withIndex.Total, direct.Total)
	})

	t.Run("index failures never fail ingestion", func(t *testing.T) {
		index := newStubSearchIndex()
		index.indexErr = errors.New("cluster down")
		svc := setupTestService(t, filestore.WithSearchIndex(index))

		file := ingest(t, svc, "resilient.txt", []byte("still stored"))
		_, err := svc.GetFile(ctx, file.ID)
		assert.NoError(t, err)
	})

	t.Run("successful ingest indexes a projection", func(t *testing.T) {
		index := newStubSearchIndex()
		svc := setupTestService(t, filestore.WithSearchIndex(index))

		file := ingest(t, svc, "indexed.txt", []byte("payload"))
		doc, ok := index.docs[file.ID]
		require.True(t, ok)
		assert.Equal(t, "indexed.txt", doc.Name)
		assert.Equal(t, "txt", doc.Extension)
	})

	t.Run("delete removes the projection best-effort", func(t *testing.T) {
		index := newStubSearchIndex()
		svc := setupTestService(t, filestore.WithSearchIndex(index))

		file := ingest(t, svc, "gone.txt", []byte("payload"))
		index.deleteErr = errors.New("cluster down")
		require.NoError(t, svc.Delete(ctx, file.ID))

		_, err := svc.GetFile(ctx, file.ID)
		assert.ErrorIs(t, err, filestore.ErrFileNotFound)
	})
}

func TestStorageSavings(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		savings, err := svc.StorageSavings(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), savings.BytesSaved)
		assert.Equal(t, "0.0 B", savings.HumanReadableSaved)
		assert.Equal(t, int64(0), savings.DuplicateCount)
	})

	t.Run("duplicates accumulate", func(t *testing.T) {
		payload := []byte("twelve bytes")
		ingest(t, svc, "a.txt", payload)
		ingest(t, svc, "b.txt", payload)
		ingest(t, svc, "c.txt", payload)

		savings, err := svc.StorageSavings(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(24), savings.BytesSaved)
		assert.Equal(t, int64(2), savings.DuplicateCount)
		assert.Equal(t, "24.0 B", savings.HumanReadableSaved)
	})
}

// stubSearchIndex is a controllable in-memory SearchIndex for tests.
type stubSearchIndex struct {
	docs      map[uuid.UUID]*filestore.SearchDocument
	results   []uuid.UUID
	indexErr  error
	deleteErr error
	searchErr error
}

func newStubSearchIndex() *stubSearchIndex {
	return &stubSearchIndex{docs: make(map[uuid.UUID]*filestore.SearchDocument)}
}

func (s *stubSearchIndex) Index(ctx context.Context, doc *filestore.SearchDocument) error {
	if s.indexErr != nil {
		return s.indexErr
	}
	s.docs[doc.ID] = doc
	return nil
}

func (s *stubSearchIndex) Delete(ctx context.Context, id uuid.UUID) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.docs, id)
	return nil
}

func (s *stubSearchIndex) SearchByName(ctx context.Context, query string) ([]uuid.UUID, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.results, nil
}

// brokenRepository serves a duplicate whose original is missing, which the
// cascade invariant makes unreachable through the real repositories.
type brokenRepository struct {
	orphan *filestore.File
}

func (r *brokenRepository) CreateFile(ctx context.Context, file *filestore.File) error {
	return nil
}

func (r *brokenRepository) GetFile(ctx context.Context, id uuid.UUID) (*filestore.File, error) {
	if id == r.orphan.ID {
		return r.orphan, nil
	}
	return nil, filestore.ErrFileNotFound
}

func (r *brokenRepository) GetOriginalFile(ctx context.Context, contentHash string) (*filestore.File, error) {
	return nil, filestore.ErrFileNotFound
}

func (r *brokenRepository) ListFiles(ctx context.Context, filters filestore.ListFilters) ([]*filestore.File, error) {
	return []*filestore.File{}, nil
}

func (r *brokenRepository) DeleteFile(ctx context.Context, id uuid.UUID) error {
	return filestore.ErrFileNotFound
}

func (r *brokenRepository) StorageSavings(ctx context.Context) (int64, int64, error) {
	return 0, 0, nil
}
