package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/teilehaus/searchsync/internal/gateway"
)

// Gateway is an in-memory implementation of gateway.IndexGateway used in
// tests and local development. Search support is intentionally naive: a
// substring match over the document's string fields plus exact-match filters
// of the form `field = "value"`.
type Gateway struct {
	mu      sync.RWMutex
	indexes map[string]*index
}

type index struct {
	primaryKey string
	settings   gateway.Settings
	docs       map[string]json.RawMessage
	order      []string
}

// New creates an empty in-memory gateway.
func New() *Gateway {
	return &Gateway{indexes: make(map[string]*index)}
}

func (g *Gateway) Ping(_ context.Context) error { return nil }

// EnsureIndex creates the named index if it does not exist.
func (g *Gateway) EnsureIndex(_ context.Context, name, primaryKey string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.indexes[name]; !ok {
		g.indexes[name] = &index{
			primaryKey: primaryKey,
			docs:       make(map[string]json.RawMessage),
		}
	}
	return nil
}

// Configure stores the settings; the in-memory search does not apply them.
func (g *Gateway) Configure(_ context.Context, name string, s gateway.Settings) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.index(name).settings = s
	return nil
}

// Settings returns the most recently configured settings, for assertions.
func (g *Gateway) Settings(name string) gateway.Settings {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.index(name).settings
}

// Upsert stores the documents keyed by their primary key field.
func (g *Gateway) Upsert(_ context.Context, name string, docs []json.RawMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := g.index(name)
	for _, doc := range docs {
		id, err := documentID(doc, idx.primaryKey)
		if err != nil {
			return err
		}
		if _, exists := idx.docs[id]; !exists {
			idx.order = append(idx.order, id)
		}
		idx.docs[id] = doc
	}
	return nil
}

// Delete removes the documents with the given ids; missing ids are ignored.
func (g *Gateway) Delete(_ context.Context, name string, ids []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := g.index(name)
	for _, id := range ids {
		if _, ok := idx.docs[id]; !ok {
			continue
		}
		delete(idx.docs, id)
		for i, existing := range idx.order {
			if existing == id {
				idx.order = append(idx.order[:i], idx.order[i+1:]...)
				break
			}
		}
	}
	return nil
}

// Get retrieves one document by id.
func (g *Gateway) Get(_ context.Context, name, id string) (json.RawMessage, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	doc, ok := g.index(name).docs[id]
	if !ok {
		return nil, gateway.ErrDocumentNotFound
	}
	return doc, nil
}

// Clear removes every document, keeping the settings.
func (g *Gateway) Clear(_ context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := g.index(name)
	idx.docs = make(map[string]json.RawMessage)
	idx.order = nil
	return nil
}

// Search matches the query as a lowercase substring over all string fields
// and applies `field = "value"` filters, then paginates in insertion order.
func (g *Gateway) Search(_ context.Context, name string, req gateway.SearchRequest) (*gateway.SearchResult, error) {
	start := time.Now()

	g.mu.RLock()
	defer g.mu.RUnlock()

	idx := g.index(name)
	queryLower := strings.ToLower(req.Query)

	var matched []json.RawMessage
	var decoded []map[string]any
	for _, id := range idx.order {
		raw := idx.docs[id]
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("memory search: decode document %q: %w", id, err)
		}
		if !matches(doc, queryLower, req.Filters) {
			continue
		}
		matched = append(matched, raw)
		decoded = append(decoded, doc)
	}

	total := int64(len(matched))

	var facets map[string]map[string]int64
	if len(req.Facets) > 0 {
		facets = facetCounts(decoded, req.Facets)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := req.Offset
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return &gateway.SearchResult{
		Hits:               matched[offset:end],
		FacetDistribution:  facets,
		EstimatedTotalHits: total,
		ProcessingTimeMs:   time.Since(start).Milliseconds(),
	}, nil
}

// Count returns the number of documents currently held by the index.
func (g *Gateway) Count(name string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.index(name).docs)
}

// IDs returns all document ids in insertion order, for assertions.
func (g *Gateway) IDs(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.index(name).order...)
}

// index returns the named index, creating it lazily so that tests do not
// have to call EnsureIndex first.
func (g *Gateway) index(name string) *index {
	idx, ok := g.indexes[name]
	if !ok {
		idx = &index{primaryKey: "id", docs: make(map[string]json.RawMessage)}
		g.indexes[name] = idx
	}
	return idx
}

func documentID(doc json.RawMessage, primaryKey string) (string, error) {
	var fields map[string]any
	if err := json.Unmarshal(doc, &fields); err != nil {
		return "", fmt.Errorf("memory upsert: decode document: %w", err)
	}
	id, ok := fields[primaryKey].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("memory upsert: document missing primary key %q", primaryKey)
	}
	return id, nil
}

func matches(doc map[string]any, queryLower string, filters []string) bool {
	if queryLower != "" && !containsText(doc, queryLower) {
		return false
	}
	for _, f := range filters {
		field, value, ok := parseFilter(f)
		if !ok {
			continue
		}
		if !fieldEquals(doc[field], value) {
			return false
		}
	}
	return true
}

func containsText(doc map[string]any, queryLower string) bool {
	for _, v := range doc {
		s, ok := v.(string)
		if ok && strings.Contains(strings.ToLower(s), queryLower) {
			return true
		}
	}
	return false
}

// parseFilter understands the `field = "value"` subset of the filter syntax.
func parseFilter(f string) (field, value string, ok bool) {
	parts := strings.SplitN(f, "=", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	field = strings.TrimSpace(parts[0])
	value = strings.Trim(strings.TrimSpace(parts[1]), `"`)
	return field, value, field != ""
}

func fieldEquals(v any, want string) bool {
	switch val := v.(type) {
	case string:
		return val == want
	case bool:
		return fmt.Sprintf("%t", val) == want
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", val), "0"), ".") == want
	case []any:
		for _, item := range val {
			if fieldEquals(item, want) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func facetCounts(docs []map[string]any, facets []string) map[string]map[string]int64 {
	out := make(map[string]map[string]int64, len(facets))
	for _, facet := range facets {
		out[facet] = make(map[string]int64)
	}
	for _, doc := range docs {
		for _, facet := range facets {
			switch v := doc[facet].(type) {
			case string:
				out[facet][v]++
			case bool:
				out[facet][fmt.Sprintf("%t", v)]++
			case []any:
				for _, item := range v {
					if s, ok := item.(string); ok {
						out[facet][s]++
					}
				}
			}
		}
	}
	return out
}
