package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/teilehaus/searchsync/internal/catalog"
)

// ReconcilerConfig tunes the periodic catch-up job.
type ReconcilerConfig struct {
	// Window is the trailing mutation window each run covers. It must be
	// wider than the run interval so scheduling jitter cannot drop updates.
	Window time.Duration

	// ChunkSize bounds the id list of one orchestrator call.
	ChunkSize int

	// QueryPageSize bounds one page of the updated-products window query.
	QueryPageSize int
}

// Reconciler periodically re-syncs products the event stream may have
// missed. It queries products updated inside a trailing window and pushes
// them through the orchestrator; whenever anything was synced it then
// re-syncs the whole category corpus, because category visibility is a
// function of descendant product state and the affected set cannot be
// computed cheaply in reverse.
type Reconciler struct {
	catalog    catalog.Client
	orch       *Orchestrator
	products   Source
	categories Source
	cfg        ReconcilerConfig
	logger     *slog.Logger
	now        func() time.Time
}

func NewReconciler(c catalog.Client, orch *Orchestrator, products, categories Source, cfg ReconcilerConfig, logger *slog.Logger) *Reconciler {
	if cfg.Window <= 0 {
		cfg.Window = 10 * time.Minute
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 20
	}
	if cfg.QueryPageSize <= 0 {
		cfg.QueryPageSize = 100
	}
	return &Reconciler{
		catalog:    c,
		orch:       orch,
		products:   products,
		categories: categories,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one reconciliation pass. It never panics across its boundary;
// the scheduler keeps running regardless of what one pass does.
func (r *Reconciler) Run(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			reconcileRunsTotal.WithLabelValues("panic").Inc()
			r.logger.ErrorContext(ctx, "reconciliation panicked", slog.Any("panic", rec))
		}
	}()

	since := r.now().Add(-r.cfg.Window)

	ids, err := r.updatedProductIDs(ctx, since)
	if err != nil {
		reconcileRunsTotal.WithLabelValues("failed").Inc()
		r.logger.ErrorContext(ctx, "reconciliation window query failed",
			slog.Time("since", since),
			slog.String("error", err.Error()),
		)
		return
	}
	if len(ids) == 0 {
		reconcileRunsTotal.WithLabelValues("noop").Inc()
		return
	}

	synced := 0
	for start := 0; start < len(ids); start += r.cfg.ChunkSize {
		end := start + r.cfg.ChunkSize
		if end > len(ids) {
			end = len(ids)
		}

		summary, err := r.orch.SyncIDs(ctx, r.products, ids[start:end])
		if err != nil {
			r.logger.ErrorContext(ctx, "reconciliation product chunk failed",
				slog.Int("chunk_start", start),
				slog.String("error", err.Error()),
			)
			continue
		}
		synced += summary.Synced
	}

	if synced > 0 {
		// Any product change may flip a category's visibility anywhere up
		// the tree, so re-sync all categories rather than guessing.
		if _, err := r.orch.SyncAll(ctx, r.categories); err != nil {
			reconcileRunsTotal.WithLabelValues("failed").Inc()
			r.logger.ErrorContext(ctx, "reconciliation category sync failed",
				slog.String("error", err.Error()),
			)
			return
		}
	}

	reconcileRunsTotal.WithLabelValues("succeeded").Inc()
	r.logger.InfoContext(ctx, "reconciliation finished",
		slog.Time("since", since),
		slog.Int("candidates", len(ids)),
		slog.Int("synced", synced),
	)
}

// updatedProductIDs pages through all products updated since the given time.
func (r *Reconciler) updatedProductIDs(ctx context.Context, since time.Time) ([]string, error) {
	var ids []string
	skip := 0
	for {
		products, _, err := r.catalog.ListProducts(ctx,
			catalog.ProductFilter{UpdatedSince: &since},
			catalog.Page{Take: r.cfg.QueryPageSize, Skip: skip},
		)
		if err != nil {
			return nil, err
		}
		for _, p := range products {
			ids = append(ids, p.ID)
		}
		if len(products) < r.cfg.QueryPageSize {
			return ids, nil
		}
		skip += r.cfg.QueryPageSize
	}
}
