// Package elastic implements filestore.SearchIndex backed by an
// Elasticsearch cluster. Files are indexed as lightweight projections and
// searched with a match query on the name field.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
	"github.com/tendant/simple-filestore/pkg/filestore"
)

// DefaultIndexName is the index used when Config.IndexName is empty.
const DefaultIndexName = "files"

// maxSearchHits bounds how many candidate IDs a name search returns.
// Without an explicit size Elasticsearch returns only its first 10 hits,
// silently truncating the candidate set before pagination.
const maxSearchHits = 1000

// Config holds connection settings for the search index.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	IndexName string
}

// Index implements filestore.SearchIndex using Elasticsearch
type Index struct {
	client *elasticsearch.Client
	index  string
}

// New creates a new Elasticsearch-backed search index client
func New(cfg Config) (*Index, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("at least one elasticsearch address is required")
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	indexName := cfg.IndexName
	if indexName == "" {
		indexName = DefaultIndexName
	}

	return &Index{client: client, index: indexName}, nil
}

func (i *Index) Index(ctx context.Context, doc *filestore.SearchDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode search document: %w", err)
	}

	res, err := i.client.Index(i.index, bytes.NewReader(body),
		i.client.Index.WithDocumentID(doc.ID.String()),
		i.client.Index.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", filestore.ErrSearchUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing file %s failed: %s", doc.ID, res.Status())
	}

	return nil
}

func (i *Index) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := i.client.Delete(i.index, id.String(),
		i.client.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", filestore.ErrSearchUnavailable, err)
	}
	defer res.Body.Close()

	// A missing document is fine: removal is best-effort and the document
	// may never have been indexed.
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("deleting file %s from index failed: %s", id, res.Status())
	}

	return nil
}

func (i *Index) SearchByName(ctx context.Context, query string) ([]uuid.UUID, error) {
	var buf bytes.Buffer
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"name": query,
			},
		},
	}
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("failed to encode search query: %w", err)
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.index),
		i.client.Search.WithBody(&buf),
		i.client.Search.WithSize(maxSearchHits))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", filestore.ErrSearchUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search for %q failed: %s", query, res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil {
			// Foreign documents in the index are skipped rather than
			// failing the whole query.
			continue
		}
		ids = append(ids, id)
	}

	return ids, nil
}
