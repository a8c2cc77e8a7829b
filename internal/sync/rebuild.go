package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/teilehaus/searchsync/internal/gateway"
	apperrors "github.com/teilehaus/searchsync/pkg/errors"
)

// primaryKey is the document primary key on every index this service owns.
const primaryKey = "id"

// ErrRebuildInProgress rejects a rebuild or force-sync while another one is
// still running. Only one full-corpus pass may mutate the index at a time.
var ErrRebuildInProgress = apperrors.Conflict("a rebuild or full sync is already in progress")

// Rebuilder owns the full-corpus operations: schema reconfiguration,
// clear-and-rebuild, and forced full sync. Categories always sync before
// products, since product visibility references category state.
type Rebuilder struct {
	gw         gateway.IndexGateway
	orch       *Orchestrator
	categories Source
	products   Source
	logger     *slog.Logger

	inFlight atomic.Bool
}

func NewRebuilder(gw gateway.IndexGateway, orch *Orchestrator, categories, products Source, logger *slog.Logger) *Rebuilder {
	return &Rebuilder{
		gw:         gw,
		orch:       orch,
		categories: categories,
		products:   products,
		logger:     logger,
	}
}

// InProgress reports whether a rebuild or forced full sync is running.
func (r *Rebuilder) InProgress() bool {
	return r.inFlight.Load()
}

// Reconfigure ensures both indexes exist and reapplies their schema settings
// without touching documents.
func (r *Rebuilder) Reconfigure(ctx context.Context) error {
	indexes := []struct {
		name     string
		settings gateway.Settings
	}{
		{r.categories.Index(), CategoryIndexSettings()},
		{r.products.Index(), ProductIndexSettings()},
	}

	for _, idx := range indexes {
		if err := r.gw.EnsureIndex(ctx, idx.name, primaryKey); err != nil {
			return fmt.Errorf("ensure index %s: %w", idx.name, err)
		}
		if err := r.gw.Configure(ctx, idx.name, idx.settings); err != nil {
			return fmt.Errorf("configure index %s: %w", idx.name, err)
		}
	}

	r.logger.InfoContext(ctx, "index settings applied")
	return nil
}

// RebuildAll clears both indexes, reapplies settings, and full-syncs the
// category corpus followed by the product corpus. At most one rebuild or
// forced sync runs at a time; a second call returns ErrRebuildInProgress.
func (r *Rebuilder) RebuildAll(ctx context.Context) error {
	if !r.inFlight.CompareAndSwap(false, true) {
		return ErrRebuildInProgress
	}
	defer r.inFlight.Store(false)

	r.logger.InfoContext(ctx, "rebuild started")

	for _, index := range []string{r.categories.Index(), r.products.Index()} {
		if err := r.gw.Clear(ctx, index); err != nil {
			rebuildsTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("clear index %s: %w", index, err)
		}
	}
	if err := r.Reconfigure(ctx); err != nil {
		rebuildsTotal.WithLabelValues("failed").Inc()
		return err
	}

	if err := r.syncCorpus(ctx); err != nil {
		rebuildsTotal.WithLabelValues("failed").Inc()
		return err
	}

	rebuildsTotal.WithLabelValues("succeeded").Inc()
	r.logger.InfoContext(ctx, "rebuild finished")
	return nil
}

// ForceSync full-syncs both corpora in place, without clearing. Stale
// documents for deleted entities survive a force sync; only RebuildAll
// removes them.
func (r *Rebuilder) ForceSync(ctx context.Context) error {
	if !r.inFlight.CompareAndSwap(false, true) {
		return ErrRebuildInProgress
	}
	defer r.inFlight.Store(false)

	return r.syncCorpus(ctx)
}

func (r *Rebuilder) syncCorpus(ctx context.Context) error {
	if _, err := r.orch.SyncAll(ctx, r.categories); err != nil {
		return fmt.Errorf("sync categories: %w", err)
	}
	if _, err := r.orch.SyncAll(ctx, r.products); err != nil {
		return fmt.Errorf("sync products: %w", err)
	}
	return nil
}
