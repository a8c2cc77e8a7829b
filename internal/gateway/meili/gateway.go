package meili

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/meilisearch/meilisearch-go"

	"github.com/teilehaus/searchsync/internal/gateway"
)

// Config holds the Meilisearch connection settings.
type Config struct {
	Host   string
	APIKey string

	// TaskTimeout bounds how long a single write waits for its index task to
	// reach a terminal state before the write is treated as failed.
	TaskTimeout time.Duration
}

// Gateway is the Meilisearch-backed implementation of gateway.IndexGateway.
//
// Meilisearch applies writes asynchronously through tasks; every mutating
// call here enqueues the task and then polls it to completion, so callers
// observe synchronous success-or-failure semantics.
type Gateway struct {
	client      *meilisearch.Client
	taskTimeout time.Duration
	logger      *slog.Logger
}

// New creates a Meilisearch gateway connected to the given host.
func New(cfg Config, logger *slog.Logger) *Gateway {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   cfg.Host,
		APIKey: cfg.APIKey,
	})

	timeout := cfg.TaskTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Gateway{
		client:      client,
		taskTimeout: timeout,
		logger:      logger,
	}
}

// Ping checks whether the Meilisearch instance is reachable and healthy.
func (g *Gateway) Ping(_ context.Context) error {
	if _, err := g.client.Health(); err != nil {
		return fmt.Errorf("meilisearch ping: %w", err)
	}
	return nil
}

// EnsureIndex creates the index with the given primary key if it does not exist.
func (g *Gateway) EnsureIndex(ctx context.Context, name, primaryKey string) error {
	_, err := g.client.GetIndex(name)
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("meilisearch get index %q: %w", name, err)
	}

	task, err := g.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        name,
		PrimaryKey: primaryKey,
	})
	if err != nil {
		return fmt.Errorf("meilisearch create index %q: %w", name, err)
	}
	if err := g.waitForTask(ctx, task.TaskUID); err != nil {
		return fmt.Errorf("meilisearch create index %q: %w", name, err)
	}

	g.logger.Info("search index created", slog.String("index", name), slog.String("primary_key", primaryKey))
	return nil
}

// Configure applies schema settings to the named index.
func (g *Gateway) Configure(ctx context.Context, name string, s gateway.Settings) error {
	settings := &meilisearch.Settings{
		FilterableAttributes: s.FilterableAttributes,
		SearchableAttributes: s.SearchableAttributes,
		SortableAttributes:   s.SortableAttributes,
		DisplayedAttributes:  s.DisplayedAttributes,
		RankingRules:         s.RankingRules,
	}
	if s.MaxValuesPerFacet > 0 {
		settings.Faceting = &meilisearch.Faceting{
			MaxValuesPerFacet: int64(s.MaxValuesPerFacet),
		}
	}

	task, err := g.client.Index(name).UpdateSettings(settings)
	if err != nil {
		return fmt.Errorf("meilisearch update settings %q: %w", name, err)
	}
	if err := g.waitForTask(ctx, task.TaskUID); err != nil {
		return fmt.Errorf("meilisearch update settings %q: %w", name, err)
	}

	g.logger.Info("search index configured", slog.String("index", name))
	return nil
}

// Upsert writes the documents to the index, overwriting existing ids.
func (g *Gateway) Upsert(ctx context.Context, name string, docs []json.RawMessage) error {
	if len(docs) == 0 {
		return nil
	}

	task, err := g.client.Index(name).AddDocuments(docs)
	if err != nil {
		return fmt.Errorf("meilisearch upsert %q: %w", name, err)
	}
	if err := g.waitForTask(ctx, task.TaskUID); err != nil {
		return fmt.Errorf("meilisearch upsert %q: %w", name, err)
	}

	g.logger.Debug("documents upserted", slog.String("index", name), slog.Int("count", len(docs)))
	return nil
}

// Delete removes the documents with the given ids. Ids not present in the
// index are ignored by the engine.
func (g *Gateway) Delete(ctx context.Context, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	task, err := g.client.Index(name).DeleteDocuments(ids)
	if err != nil {
		return fmt.Errorf("meilisearch delete %q: %w", name, err)
	}
	if err := g.waitForTask(ctx, task.TaskUID); err != nil {
		return fmt.Errorf("meilisearch delete %q: %w", name, err)
	}

	g.logger.Debug("documents deleted", slog.String("index", name), slog.Int("count", len(ids)))
	return nil
}

// Get retrieves one document by id.
func (g *Gateway) Get(_ context.Context, name, id string) (json.RawMessage, error) {
	var doc map[string]any
	if err := g.client.Index(name).GetDocument(id, nil, &doc); err != nil {
		if isNotFound(err) {
			return nil, gateway.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("meilisearch get document %q/%q: %w", name, id, err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("meilisearch get document %q/%q: marshal: %w", name, id, err)
	}
	return raw, nil
}

// Clear removes every document from the index, keeping the settings.
func (g *Gateway) Clear(ctx context.Context, name string) error {
	task, err := g.client.Index(name).DeleteAllDocuments()
	if err != nil {
		return fmt.Errorf("meilisearch clear %q: %w", name, err)
	}
	if err := g.waitForTask(ctx, task.TaskUID); err != nil {
		return fmt.Errorf("meilisearch clear %q: %w", name, err)
	}

	g.logger.Info("search index cleared", slog.String("index", name))
	return nil
}

// Search executes a raw/faceted query against the index.
func (g *Gateway) Search(_ context.Context, name string, req gateway.SearchRequest) (*gateway.SearchResult, error) {
	sr := &meilisearch.SearchRequest{
		Limit:  req.Limit,
		Offset: req.Offset,
		Facets: req.Facets,
		Sort:   req.Sort,
	}
	if len(req.Filters) > 0 {
		sr.Filter = req.Filters
	}

	resp, err := g.client.Index(name).Search(req.Query, sr)
	if err != nil {
		return nil, fmt.Errorf("meilisearch search %q: %w", name, err)
	}

	hits := make([]json.RawMessage, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		raw, err := json.Marshal(hit)
		if err != nil {
			return nil, fmt.Errorf("meilisearch search %q: marshal hit: %w", name, err)
		}
		hits = append(hits, raw)
	}

	result := &gateway.SearchResult{
		Hits:               hits,
		EstimatedTotalHits: resp.EstimatedTotalHits,
		ProcessingTimeMs:   resp.ProcessingTimeMs,
	}

	if resp.FacetDistribution != nil {
		raw, err := json.Marshal(resp.FacetDistribution)
		if err != nil {
			return nil, fmt.Errorf("meilisearch search %q: marshal facets: %w", name, err)
		}
		if err := json.Unmarshal(raw, &result.FacetDistribution); err != nil {
			return nil, fmt.Errorf("meilisearch search %q: decode facets: %w", name, err)
		}
	}

	return result, nil
}

// waitForTask polls the task until it reaches a terminal state, giving up
// after the configured task timeout.
func (g *Gateway) waitForTask(ctx context.Context, taskUID int64) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second

	_, err := backoff.Retry(ctx, func() (*meilisearch.Task, error) {
		task, err := g.client.GetTask(taskUID)
		if err != nil {
			return nil, err
		}
		switch task.Status {
		case meilisearch.TaskStatusSucceeded:
			return task, nil
		case meilisearch.TaskStatusFailed, meilisearch.TaskStatusCanceled:
			return nil, backoff.Permanent(fmt.Errorf("task %d %s: %s", taskUID, task.Status, task.Error.Message))
		default:
			return nil, fmt.Errorf("task %d still %s", taskUID, task.Status)
		}
	}, backoff.WithBackOff(bo), backoff.WithMaxElapsedTime(g.taskTimeout))

	return err
}

// isNotFound reports whether the error is a Meilisearch 404 response.
func isNotFound(err error) bool {
	var mErr *meilisearch.Error
	return errors.As(err, &mErr) && mErr.StatusCode == http.StatusNotFound
}
