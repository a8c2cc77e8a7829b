package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teilehaus/searchsync/internal/gateway"
)

// DefaultPageSize bounds one fetch-transform-upsert pass.
const DefaultPageSize = 50

// Document is one transformed entity ready for indexing. Body is the full
// serialized document; ID duplicates the document's primary key for diffing
// and compensation.
type Document struct {
	ID   string
	Body json.RawMessage
}

// Source produces index-ready documents for one entity kind. Implementations
// fetch a page of source entities and transform each one, skipping (and
// logging) entities whose transform fails rather than aborting the page.
type Source interface {
	// Kind names the entity kind for logs and metrics ("product", "category").
	Kind() string

	// Index is the search index this source writes to.
	Index() string

	// BuildPage fetches and transforms one page. With ids set it builds
	// exactly those entities (take/skip ignored); otherwise it pages the full
	// corpus. fetched is the number of source entities the page matched
	// before transform-level skips, and drives full-sync termination.
	BuildPage(ctx context.Context, ids []string, take, skip int) (docs []Document, fetched int, err error)
}

// Summary reports one orchestrator invocation.
type Summary struct {
	Kind     string
	Synced   int
	Skipped  int
	Batches  int
	Duration time.Duration
}

// CompensationError wraps a batch failure whose rollback also failed: the
// index may hold a partially written batch. It is fatal to the invoking
// operation.
type CompensationError struct {
	Cause    error
	Rollback error
	Index    string
	BatchIDs []string
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("sync batch failed on %s and compensation failed: %v (rollback: %v)", e.Index, e.Cause, e.Rollback)
}

func (e *CompensationError) Unwrap() error { return e.Cause }

// Orchestrator drives batched index synchronization: fetch a page, transform
// it, snapshot the pre-existing documents, upsert, and roll back on failure.
// Batches run strictly sequentially so index mutation order stays
// deterministic and memory stays bounded to one page.
type Orchestrator struct {
	gw       gateway.IndexGateway
	pageSize int
	logger   *slog.Logger
}

func NewOrchestrator(gw gateway.IndexGateway, pageSize int, logger *slog.Logger) *Orchestrator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Orchestrator{
		gw:       gw,
		pageSize: pageSize,
		logger:   logger,
	}
}

// SyncAll runs a full sync of the source's corpus, advancing an offset cursor
// until a page comes back short.
func (o *Orchestrator) SyncAll(ctx context.Context, src Source) (*Summary, error) {
	started := time.Now()
	summary := &Summary{Kind: src.Kind()}

	skip := 0
	for {
		docs, fetched, err := src.BuildPage(ctx, nil, o.pageSize, skip)
		if err != nil {
			o.observe(src, summary, started, "failed")
			return summary, fmt.Errorf("fetch %s page at offset %d: %w", src.Kind(), skip, err)
		}
		if fetched == 0 {
			break
		}

		if err := o.syncBatch(ctx, src, docs); err != nil {
			o.observe(src, summary, started, "failed")
			return summary, err
		}
		summary.Batches++
		summary.Synced += len(docs)
		summary.Skipped += fetched - len(docs)

		if fetched < o.pageSize {
			break
		}
		skip += o.pageSize
	}

	o.observe(src, summary, started, "succeeded")
	return summary, nil
}

// SyncIDs runs an incremental sync over exactly the given ids, chunked to the
// page size.
func (o *Orchestrator) SyncIDs(ctx context.Context, src Source, ids []string) (*Summary, error) {
	started := time.Now()
	summary := &Summary{Kind: src.Kind()}

	for start := 0; start < len(ids); start += o.pageSize {
		end := start + o.pageSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		docs, fetched, err := src.BuildPage(ctx, chunk, len(chunk), 0)
		if err != nil {
			o.observe(src, summary, started, "failed")
			return summary, fmt.Errorf("fetch %s ids: %w", src.Kind(), err)
		}

		if err := o.syncBatch(ctx, src, docs); err != nil {
			o.observe(src, summary, started, "failed")
			return summary, err
		}
		summary.Batches++
		summary.Synced += len(docs)
		if fetched > len(docs) {
			summary.Skipped += fetched - len(docs)
		}
	}

	o.observe(src, summary, started, "succeeded")
	return summary, nil
}

// syncBatch writes one transformed page: snapshot what already exists, upsert
// everything, and on failure restore the snapshots and delete what was new.
func (o *Orchestrator) syncBatch(ctx context.Context, src Source, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	index := src.Index()

	// Diffing: partition the batch into pre-existing ids (snapshot their
	// current content) and new ids (delete on rollback).
	snapshots := make([]json.RawMessage, 0, len(docs))
	newIDs := make([]string, 0, len(docs))
	for _, doc := range docs {
		current, err := o.gw.Get(ctx, index, doc.ID)
		switch {
		case err == nil:
			snapshots = append(snapshots, current)
		case errors.Is(err, gateway.ErrDocumentNotFound):
			newIDs = append(newIDs, doc.ID)
		default:
			return fmt.Errorf("diff %s batch: %w", src.Kind(), err)
		}
	}

	bodies := make([]json.RawMessage, len(docs))
	for i, doc := range docs {
		bodies[i] = doc.Body
	}

	if err := o.gw.Upsert(ctx, index, bodies); err != nil {
		syncBatchesTotal.WithLabelValues(src.Kind(), "failed").Inc()
		return o.compensate(ctx, src, docs, snapshots, newIDs, err)
	}

	syncBatchesTotal.WithLabelValues(src.Kind(), "succeeded").Inc()
	return nil
}

// compensate restores the index to its pre-batch state after a failed upsert.
func (o *Orchestrator) compensate(ctx context.Context, src Source, docs []Document, snapshots []json.RawMessage, newIDs []string, cause error) error {
	index := src.Index()
	o.logger.ErrorContext(ctx, "batch upsert failed, compensating",
		slog.String("kind", src.Kind()),
		slog.String("index", index),
		slog.Int("batch_size", len(docs)),
		slog.String("error", cause.Error()),
	)

	var rollback error
	if len(newIDs) > 0 {
		if err := o.gw.Delete(ctx, index, newIDs); err != nil {
			rollback = errors.Join(rollback, fmt.Errorf("delete new ids: %w", err))
		}
	}
	if len(snapshots) > 0 {
		if err := o.gw.Upsert(ctx, index, snapshots); err != nil {
			rollback = errors.Join(rollback, fmt.Errorf("restore snapshots: %w", err))
		}
	}

	if rollback != nil {
		compensationsTotal.WithLabelValues(src.Kind(), "failed").Inc()
		ids := make([]string, len(docs))
		for i, doc := range docs {
			ids[i] = doc.ID
		}
		return &CompensationError{Cause: cause, Rollback: rollback, Index: index, BatchIDs: ids}
	}

	compensationsTotal.WithLabelValues(src.Kind(), "succeeded").Inc()
	o.logger.InfoContext(ctx, "batch compensated",
		slog.String("kind", src.Kind()),
		slog.Int("restored", len(snapshots)),
		slog.Int("deleted", len(newIDs)),
	)
	return fmt.Errorf("sync %s batch: %w", src.Kind(), cause)
}

func (o *Orchestrator) observe(src Source, summary *Summary, started time.Time, result string) {
	summary.Duration = time.Since(started)
	syncDocumentsTotal.WithLabelValues(src.Kind()).Add(float64(summary.Synced))
	syncDuration.WithLabelValues(src.Kind(), result).Observe(summary.Duration.Seconds())
	o.logger.Info("sync finished",
		slog.String("kind", src.Kind()),
		slog.String("result", result),
		slog.Int("synced", summary.Synced),
		slog.Int("skipped", summary.Skipped),
		slog.Int("batches", summary.Batches),
		slog.Duration("duration", summary.Duration),
	)
}
