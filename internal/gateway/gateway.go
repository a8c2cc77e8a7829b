package gateway

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrDocumentNotFound is returned by Get when the index holds no document
// with the requested id.
var ErrDocumentNotFound = errors.New("document not found")

// Settings describes the schema configuration applied to one index.
type Settings struct {
	FilterableAttributes []string
	SearchableAttributes []string
	SortableAttributes   []string
	DisplayedAttributes  []string
	RankingRules         []string
	MaxValuesPerFacet    int
}

// SearchRequest carries the parameters of one search execution.
type SearchRequest struct {
	Query   string
	Filters []string
	Facets  []string
	Sort    []string
	Limit   int64
	Offset  int64
}

// SearchResult is the engine response for one search execution.
type SearchResult struct {
	Hits               []json.RawMessage           `json:"hits"`
	FacetDistribution  map[string]map[string]int64 `json:"facet_distribution,omitempty"`
	EstimatedTotalHits int64                       `json:"estimated_total_hits"`
	ProcessingTimeMs   int64                       `json:"processing_time_ms"`
}

// IndexGateway is the narrow client over the search engine. All index
// mutation in the sync pipeline goes through one instance of this interface,
// constructed at startup and passed by dependency injection.
//
// Documents cross this boundary as raw JSON serialized from the typed
// ProductDoc/CategoryDoc structs; the gateway never builds documents itself.
type IndexGateway interface {
	// EnsureIndex creates the named index with the given primary key if it
	// does not already exist.
	EnsureIndex(ctx context.Context, name, primaryKey string) error

	// Configure applies schema settings to the named index.
	Configure(ctx context.Context, name string, settings Settings) error

	// Upsert writes the documents to the index. Re-indexing an existing id
	// overwrites rather than duplicates.
	Upsert(ctx context.Context, name string, docs []json.RawMessage) error

	// Delete removes the documents with the given ids. Missing ids are not
	// an error.
	Delete(ctx context.Context, name string, ids []string) error

	// Get retrieves a single document by id, or ErrDocumentNotFound.
	Get(ctx context.Context, name, id string) (json.RawMessage, error)

	// Clear removes every document from the index, keeping its settings.
	Clear(ctx context.Context, name string) error

	// Search executes a raw/faceted query against the index.
	Search(ctx context.Context, name string, req SearchRequest) (*SearchResult, error)

	// Ping checks that the engine is reachable.
	Ping(ctx context.Context) error
}
