// Package filestore provides a deduplicating file storage library with
// pluggable repository and search index backends.
//
// It exposes a single Service interface that orchestrates upload ingestion
// (SHA-256 content fingerprinting and the original-vs-duplicate decision),
// metadata queries with name search and attribute filters, downloads that
// resolve a duplicate's bytes through its original, and deletion with
// cascade from an original to its duplicates. Repository implementations
// (memory, Postgres) and the Elasticsearch index client are provided under
// subpackages.
//
// The repository is the single source of truth. The search index is a
// derived, best-effort collaborator: its failures are logged and swallowed,
// and queries transparently fall back to direct repository filtering when
// it is unavailable.
package filestore
