package filestore

// Request/Response DTOs

// IngestRequest contains parameters for ingesting an upload.
//
// DeclaredSize is the size reported by the transport (e.g. the multipart
// part size), recorded as-is on the resulting record. It is permitted to
// diverge from len(Data) by caller contract and is never recomputed.
// ContentType, when empty, is sniffed from the first 2048 bytes of Data.
type IngestRequest struct {
	Name         string
	ContentType  string
	DeclaredSize int64
	Data         []byte
}

// QueryRequest contains parameters for a metadata query.
//
// Page is 1-indexed; zero means the first page. PageSize falls back to
// DefaultPageSize when not positive.
type QueryRequest struct {
	Search   string
	Filters  ListFilters
	Page     int
	PageSize int
}
