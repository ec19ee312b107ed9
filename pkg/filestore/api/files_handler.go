package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-filestore/pkg/filestore"
)

// dateLayout is the format accepted for the date_from/date_to filters.
const dateLayout = "2006-01-02"

// FilesHandler handles file upload and management API endpoints using
// pkg/filestore
type FilesHandler struct {
	service  filestore.Service
	basePath string
}

// NewFilesHandler creates a handler whose download links are rooted at
// basePath (e.g. "/files"). basePath must match where Routes is mounted.
func NewFilesHandler(service filestore.Service, basePath string) *FilesHandler {
	return &FilesHandler{
		service:  service,
		basePath: basePath,
	}
}

// Routes returns the router for files endpoints
func (h *FilesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListFiles)
	r.Post("/", h.UploadFile)
	r.Get("/storage_savings", h.StorageSavings)
	r.Get("/{file_id}", h.GetFile)
	r.Delete("/{file_id}", h.DeleteFile)
	r.Get("/{file_id}/download", h.DownloadFile)
	return r
}

// Health is the liveness endpoint, mounted outside the files routes.
func Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "healthy"})
}

type errorResponse struct {
	Error string `json:"error"`
}

// sizeLimitResponse mirrors the upload size violation payload.
type sizeLimitResponse struct {
	Error    string `json:"error"`
	MaxSize  int64  `json:"max_size"`
	FileSize int64  `json:"file_size"`
}

// FileResponse is the serialized form of a file record. URL and
// OriginalFileURL are absolute download links derived from the request.
type FileResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Size            int64     `json:"size"`
	ContentType     string    `json:"content_type"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	URL             string    `json:"url"`
	OriginalFileURL *string   `json:"original_file_url"`
	IsOriginal      bool      `json:"is_original"`
}

// ListFilesResponse is one page of query results.
type ListFilesResponse struct {
	Results     []FileResponse `json:"results"`
	Total       int            `json:"total"`
	Pages       int            `json:"pages"`
	CurrentPage int            `json:"current_page"`
}

// ListFiles returns a filtered, paginated listing, searching by name when
// the search parameter is present.
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	req := filestore.QueryRequest{
		Search: r.URL.Query().Get("search"),
	}

	if v := r.URL.Query().Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, errorResponse{Error: "Invalid page"})
			return
		}
		req.Page = page
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		pageSize, err := strconv.Atoi(v)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, errorResponse{Error: "Invalid page_size"})
			return
		}
		req.PageSize = pageSize
	}

	if v := r.URL.Query().Get("min_size"); v != "" {
		minSize, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, errorResponse{Error: "Invalid min_size"})
			return
		}
		req.Filters.MinSize = &minSize
	}
	if v := r.URL.Query().Get("max_size"); v != "" {
		maxSize, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, errorResponse{Error: "Invalid max_size"})
			return
		}
		req.Filters.MaxSize = &maxSize
	}
	req.Filters.ContentType = r.URL.Query().Get("type")

	if v := r.URL.Query().Get("date_from"); v != "" {
		from, err := time.Parse(dateLayout, v)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, errorResponse{Error: "Invalid date_from"})
			return
		}
		req.Filters.CreatedFrom = &from
	}
	if v := r.URL.Query().Get("date_to"); v != "" {
		to, err := time.Parse(dateLayout, v)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, errorResponse{Error: "Invalid date_to"})
			return
		}
		// date_to is inclusive of the whole day
		end := to.Add(24*time.Hour - time.Nanosecond)
		req.Filters.CreatedTo = &end
	}

	result, err := h.service.Query(r.Context(), req)
	if err != nil {
		if errors.Is(err, filestore.ErrInvalidPage) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, errorResponse{Error: "Invalid page number"})
			return
		}
		slog.Error("Failed to list files", "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: "Failed to list files"})
		return
	}

	results := make([]FileResponse, 0, len(result.Files))
	for _, file := range result.Files {
		results = append(results, h.fileResponse(r, file))
	}

	render.JSON(w, r, ListFilesResponse{
		Results:     results,
		Total:       result.Total,
		Pages:       result.Pages,
		CurrentPage: result.CurrentPage,
	})
}

// UploadFile ingests a multipart upload from the "file" form field
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	upload, header, err := r.FormFile("file")
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: "No file provided"})
		return
	}
	defer upload.Close()

	// Reject on the transport-reported size before reading the payload.
	if header.Size > h.service.MaxUploadSize() {
		h.renderSizeLimit(w, r, h.service.MaxUploadSize(), header.Size)
		return
	}

	data, err := io.ReadAll(upload)
	if err != nil {
		slog.Error("Failed to read upload", "name", header.Filename, "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: "Failed to read file"})
		return
	}

	file, err := h.service.Ingest(r.Context(), filestore.IngestRequest{
		Name:         header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		DeclaredSize: header.Size,
		Data:         data,
	})
	if err != nil {
		var sizeErr *filestore.SizeLimitError
		switch {
		case errors.As(err, &sizeErr):
			h.renderSizeLimit(w, r, sizeErr.MaxSize, sizeErr.FileSize)
		case errors.Is(err, filestore.ErrNoContent):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, errorResponse{Error: "No file provided"})
		default:
			slog.Error("Failed to ingest file", "name", header.Filename, "err", err)
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, errorResponse{Error: "Failed to store file"})
		}
		return
	}

	slog.Info("File ingested", "file_id", file.ID, "name", file.Name, "is_original", file.IsOriginal)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, h.fileResponse(r, file))
}

// GetFile returns a single serialized file record
func (h *FilesHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.fileID(w, r)
	if !ok {
		return
	}

	file, err := h.service.GetFile(r.Context(), id)
	if err != nil {
		if errors.Is(err, filestore.ErrFileNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, errorResponse{Error: "File not found"})
			return
		}
		slog.Error("Failed to get file", "file_id", id, "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: "Failed to get file"})
		return
	}

	render.JSON(w, r, h.fileResponse(r, file))
}

// DeleteFile removes a record, cascading from an original to its
// duplicates
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.fileID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, filestore.ErrFileNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, errorResponse{Error: "File not found"})
			return
		}
		slog.Error("Failed to delete file", "file_id", id, "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: "Failed to delete file"})
		return
	}

	slog.Info("File deleted", "file_id", id)
	render.NoContent(w, r)
}

// DownloadFile streams the file's bytes, resolving duplicates through
// their original
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.fileID(w, r)
	if !ok {
		return
	}

	content, file, err := h.service.Download(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, filestore.ErrFileNotFound):
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, errorResponse{Error: "File not found"})
		case errors.Is(err, filestore.ErrBrokenReference):
			slog.Error("Duplicate references a missing original", "file_id", id, "err", err)
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, errorResponse{Error: "File content unavailable"})
		default:
			slog.Error("Failed to download file", "file_id", id, "err", err)
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, errorResponse{Error: "Failed to download file"})
		}
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	w.Write(content)
}

// StorageSavings reports the bytes reclaimed by deduplication
func (h *FilesHandler) StorageSavings(w http.ResponseWriter, r *http.Request) {
	savings, err := h.service.StorageSavings(r.Context())
	if err != nil {
		slog.Error("Failed to compute storage savings", "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: "Failed to compute storage savings"})
		return
	}

	render.JSON(w, r, savings)
}

func (h *FilesHandler) renderSizeLimit(w http.ResponseWriter, r *http.Request, maxSize, fileSize int64) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, sizeLimitResponse{
		Error:    fmt.Sprintf("File size exceeds maximum limit of %.1fMB", float64(maxSize)/(1024*1024)),
		MaxSize:  maxSize,
		FileSize: fileSize,
	})
}

// fileID parses the file_id URL parameter. An unparseable ID behaves like
// an unknown one.
func (h *FilesHandler) fileID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "file_id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse{Error: "File not found"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *FilesHandler) fileResponse(r *http.Request, file *filestore.File) FileResponse {
	resp := FileResponse{
		ID:          file.ID,
		Name:        file.Name,
		Size:        file.Size,
		ContentType: file.ContentType,
		CreatedAt:   file.CreatedAt,
		UpdatedAt:   file.UpdatedAt,
		URL:         h.downloadURL(r, file.ID),
		IsOriginal:  file.IsOriginal,
	}
	if file.OriginalFileID != nil {
		url := h.downloadURL(r, *file.OriginalFileID)
		resp.OriginalFileURL = &url
	}
	return resp
}

func (h *FilesHandler) downloadURL(r *http.Request, id uuid.UUID) string {
	return fmt.Sprintf("%s%s/%s/download", requestBaseURL(r), h.basePath, id)
}

func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
