package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teilehaus/searchsync/internal/catalog"
	"github.com/teilehaus/searchsync/internal/gateway"
	"github.com/teilehaus/searchsync/internal/hierarchy"
	syncpkg "github.com/teilehaus/searchsync/internal/sync"
)

// DefaultChunkSize bounds one orchestrator call per trigger, keeping the
// index payload of a single event small.
const DefaultChunkSize = 10

// affectedPageSize bounds pages of the product queries that expand an event
// into its affected product set.
const affectedPageSize = 100

// Triggers turns domain events into the sync calls they imply. Each method
// computes the affected entity ids for one event class and pushes them
// through the orchestrator in fixed-size chunks.
type Triggers struct {
	catalog    catalog.Client
	resolver   *hierarchy.Resolver
	orch       *syncpkg.Orchestrator
	products   syncpkg.Source
	categories syncpkg.Source
	gw         gateway.IndexGateway
	chunkSize  int
	logger     *slog.Logger
}

func NewTriggers(c catalog.Client, resolver *hierarchy.Resolver, orch *syncpkg.Orchestrator, products, categories syncpkg.Source, gw gateway.IndexGateway, chunkSize int, logger *slog.Logger) *Triggers {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Triggers{
		catalog:    c,
		resolver:   resolver,
		orch:       orch,
		products:   products,
		categories: categories,
		gw:         gw,
		chunkSize:  chunkSize,
		logger:     logger,
	}
}

// ProductChanged re-syncs a single product.
func (t *Triggers) ProductChanged(ctx context.Context, productID string) error {
	return t.syncProducts(ctx, []string{productID})
}

// ProductDeleted removes the product's document from the index.
func (t *Triggers) ProductDeleted(ctx context.Context, productID string) error {
	if err := t.gw.Delete(ctx, t.products.Index(), []string{productID}); err != nil {
		return fmt.Errorf("delete product document %s: %w", productID, err)
	}
	return nil
}

// VariantChanged re-syncs the variant's owning product. When the event only
// carries the variant id the owner is resolved from the catalog.
func (t *Triggers) VariantChanged(ctx context.Context, variantID, productID string) error {
	if productID != "" {
		return t.syncProducts(ctx, []string{productID})
	}

	productIDs, err := t.catalog.ProductIDsForVariants(ctx, []string{variantID})
	if err != nil {
		return fmt.Errorf("resolve product for variant %s: %w", variantID, err)
	}
	if len(productIDs) == 0 {
		// The owning product is gone; nothing to sync.
		t.logger.InfoContext(ctx, "variant has no owning product, skipping",
			slog.String("variant_id", variantID))
		return nil
	}
	return t.syncProducts(ctx, productIDs)
}

// CategoryChanged re-syncs the category itself plus every product whose
// membership intersects the category's descendant set: a hierarchy change
// can alter the denormalized path of anything below it.
func (t *Triggers) CategoryChanged(ctx context.Context, categoryID string) error {
	if _, err := t.orch.SyncIDs(ctx, t.categories, []string{categoryID}); err != nil {
		return fmt.Errorf("sync category %s: %w", categoryID, err)
	}

	sess := t.resolver.NewSession()
	descendants, err := sess.DescendantIDs(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("expand descendants of %s: %w", categoryID, err)
	}

	productIDs, err := t.productIDsMatching(ctx, catalog.ProductFilter{CategoryIDs: descendants})
	if err != nil {
		return fmt.Errorf("list products under %s: %w", categoryID, err)
	}
	return t.syncProducts(ctx, productIDs)
}

// CategoryDeleted drops the category's document and re-syncs every product
// whose membership intersects the deleted subtree, so their denormalized
// paths stop referencing it. Membership rows on the catalog side may still
// point at the deleted id, which is exactly what the product filter matches.
func (t *Triggers) CategoryDeleted(ctx context.Context, categoryID string) error {
	if err := t.gw.Delete(ctx, t.categories.Index(), []string{categoryID}); err != nil {
		return fmt.Errorf("delete category document %s: %w", categoryID, err)
	}

	sess := t.resolver.NewSession()
	descendants, err := sess.DescendantIDs(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("expand descendants of %s: %w", categoryID, err)
	}

	productIDs, err := t.productIDsMatching(ctx, catalog.ProductFilter{CategoryIDs: descendants})
	if err != nil {
		return fmt.Errorf("list products under %s: %w", categoryID, err)
	}
	return t.syncProducts(ctx, productIDs)
}

// CollectionChanged re-syncs every product assigned to the collection.
func (t *Triggers) CollectionChanged(ctx context.Context, collectionID string) error {
	productIDs, err := t.productIDsMatching(ctx, catalog.ProductFilter{CollectionID: collectionID})
	if err != nil {
		return fmt.Errorf("list products in collection %s: %w", collectionID, err)
	}
	return t.syncProducts(ctx, productIDs)
}

// StockChanged re-syncs every product owning one of the given variants, for
// order and reservation events that move available quantity.
func (t *Triggers) StockChanged(ctx context.Context, variantIDs []string) error {
	if len(variantIDs) == 0 {
		return nil
	}

	productIDs, err := t.catalog.ProductIDsForVariants(ctx, variantIDs)
	if err != nil {
		return fmt.Errorf("resolve products for %d variants: %w", len(variantIDs), err)
	}
	return t.syncProducts(ctx, productIDs)
}

func (t *Triggers) syncProducts(ctx context.Context, ids []string) error {
	for start := 0; start < len(ids); start += t.chunkSize {
		end := start + t.chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		if _, err := t.orch.SyncIDs(ctx, t.products, ids[start:end]); err != nil {
			return fmt.Errorf("sync products: %w", err)
		}
	}
	return nil
}

func (t *Triggers) productIDsMatching(ctx context.Context, filter catalog.ProductFilter) ([]string, error) {
	var ids []string
	skip := 0
	for {
		products, _, err := t.catalog.ListProducts(ctx, filter, catalog.Page{Take: affectedPageSize, Skip: skip})
		if err != nil {
			return nil, err
		}
		for _, p := range products {
			ids = append(ids, p.ID)
		}
		if len(products) < affectedPageSize {
			return ids, nil
		}
		skip += affectedPageSize
	}
}
