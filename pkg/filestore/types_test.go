package filestore_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/tendant/simple-filestore/pkg/filestore"
)

func TestFileExtension(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		expected string
	}{
		{"simple extension", "report.pdf", "pdf"},
		{"uppercase is lowered", "ARCHIVE.ZIP", "zip"},
		{"multiple dots", "backup.tar.gz", "gz"},
		{"no extension", "README", ""},
		{"trailing dot", "weird.", ""},
		{"hidden file", ".gitignore", "gitignore"},
		{"empty name", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := filestore.File{Name: tt.fileName}
			assert.Equal(t, tt.expected, f.Extension())
		})
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name     string
		size     int64
		expected string
	}{
		{"zero", 0, "0.0 B"},
		{"bytes", 512, "512.0 B"},
		{"exact kilobyte", 1024, "1.0 KB"},
		{"fractional kilobytes", 1536, "1.5 KB"},
		{"megabytes", 5 * 1024 * 1024, "5.0 MB"},
		{"gigabytes", 3 * 1024 * 1024 * 1024, "3.0 GB"},
		{"terabytes", 2 * 1024 * 1024 * 1024 * 1024, "2.0 TB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, filestore.FormatSize(tt.size))
		})
	}
}

func TestNewSearchDocument(t *testing.T) {
	created := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	file := &filestore.File{
		ID:          uuid.New(),
		Name:        "quarterly report.pdf",
		Size:        2048,
		ContentType: "application/pdf",
		CreatedAt:   created,
	}

	doc := filestore.NewSearchDocument(file)

	assert.Equal(t, file.ID, doc.ID)
	assert.Equal(t, "quarterly report.pdf", doc.Name)
	assert.Equal(t, int64(2048), doc.Size)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "pdf", doc.Extension)
	assert.Equal(t, created, doc.CreatedAt)
}
