package event

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilehaus/searchsync/internal/availability"
	"github.com/teilehaus/searchsync/internal/catalog"
	"github.com/teilehaus/searchsync/internal/domain"
	"github.com/teilehaus/searchsync/internal/gateway/memory"
	"github.com/teilehaus/searchsync/internal/hierarchy"
	syncpkg "github.com/teilehaus/searchsync/internal/sync"
	apperrors "github.com/teilehaus/searchsync/pkg/errors"
	"github.com/teilehaus/searchsync/pkg/kafka"
)

// fakeCatalog backs the trigger fixtures: a small category tree, products
// with memberships, and a variant ownership map.
type fakeCatalog struct {
	categories      []domain.CategoryNode
	products        []domain.ProductEntity
	variantProducts map[string]string
}

func (f *fakeCatalog) ListProducts(_ context.Context, filter catalog.ProductFilter, page catalog.Page) ([]domain.ProductEntity, int, error) {
	var matched []domain.ProductEntity
	for _, p := range f.products {
		if len(filter.IDs) > 0 && !containsStr(filter.IDs, p.ID) {
			continue
		}
		if len(filter.CategoryIDs) > 0 && !intersect(p.CategoryIDs, filter.CategoryIDs) {
			continue
		}
		if filter.CollectionID != "" && p.CollectionID != filter.CollectionID {
			continue
		}
		matched = append(matched, p)
	}
	return pageOf(matched, page), len(matched), nil
}

func (f *fakeCatalog) ListCategories(_ context.Context, filter catalog.CategoryFilter, page catalog.Page) ([]domain.CategoryNode, int, error) {
	var matched []domain.CategoryNode
	for _, c := range f.categories {
		if len(filter.IDs) > 0 && !containsStr(filter.IDs, c.ID) {
			continue
		}
		if filter.ParentID != nil && (c.ParentID == nil || *c.ParentID != *filter.ParentID) {
			continue
		}
		matched = append(matched, c)
	}
	return pageOf(matched, page), len(matched), nil
}

func (f *fakeCatalog) GetCategory(ctx context.Context, id string) (*domain.CategoryNode, error) {
	categories, _, _ := f.ListCategories(ctx, catalog.CategoryFilter{IDs: []string{id}}, catalog.Page{Take: 1})
	if len(categories) == 0 {
		return nil, apperrors.NotFound("category", id)
	}
	return &categories[0], nil
}

func (f *fakeCatalog) ProductIDsForVariants(_ context.Context, variantIDs []string) ([]string, error) {
	var ids []string
	seen := map[string]struct{}{}
	for _, vid := range variantIDs {
		pid, ok := f.variantProducts[vid]
		if !ok {
			continue
		}
		if _, dup := seen[pid]; dup {
			continue
		}
		seen[pid] = struct{}{}
		ids = append(ids, pid)
	}
	return ids, nil
}

func pageOf[T any](items []T, page catalog.Page) []T {
	if page.Skip >= len(items) {
		return nil
	}
	items = items[page.Skip:]
	if page.Take > 0 && len(items) > page.Take {
		items = items[:page.Take]
	}
	return items
}

func containsStr(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func intersect(a, b []string) bool {
	for _, s := range a {
		if containsStr(b, s) {
			return true
		}
	}
	return false
}

func strptr(s string) *string { return &s }

type fixture struct {
	handler *Handler
	gw      *memory.Gateway
	catalog *fakeCatalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	parent := strptr("cat_root")
	fc := &fakeCatalog{
		categories: []domain.CategoryNode{
			{ID: "cat_root", Name: "Mercedes Benz"},
			{ID: "cat_engine", Name: "Motor", ParentID: parent},
		},
		products: []domain.ProductEntity{
			{ID: "prod_1", Title: "Zylinderkopfdichtung", CategoryIDs: []string{"cat_engine"}},
			{ID: "prod_2", Title: "Bremsscheibe", CollectionID: "col_sale"},
		},
		variantProducts: map[string]string{
			"var_1": "prod_1",
			"var_2": "prod_2",
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := memory.New()
	resolver := hierarchy.NewResolver(fc, "sc_public", 500, logger)

	agg := availability.NewAggregator(stubInventory{}, "sc_public", logger)

	products := syncpkg.NewProductSource(fc, resolver, agg, "products", logger)
	categories := syncpkg.NewCategorySource(fc, resolver, "categories", logger)
	orch := syncpkg.NewOrchestrator(gw, 50, logger)
	triggers := NewTriggers(fc, resolver, orch, products, categories, gw, 10, logger)

	return &fixture{
		handler: NewHandler(triggers, logger),
		gw:      gw,
		catalog: fc,
	}
}

func envelope(t *testing.T, eventType string, payload any) *kafka.Event {
	t.Helper()
	e, err := kafka.NewEvent(eventType, "agg", "catalog", "test", payload)
	require.NoError(t, err)
	return e
}

func TestHandleProductUpdated(t *testing.T) {
	f := newFixture(t)

	err := f.handler.Handle(context.Background(), envelope(t, TypeProductUpdated, ProductPayload{ProductID: "prod_1"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"prod_1"}, f.gw.IDs("products"))
}

func TestHandleProductDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.gw.Upsert(ctx, "products", []json.RawMessage{
		json.RawMessage(`{"id":"prod_1","title":"stale"}`),
	}))

	err := f.handler.Handle(ctx, envelope(t, TypeProductDeleted, ProductPayload{ProductID: "prod_1"}))
	require.NoError(t, err)

	assert.Empty(t, f.gw.IDs("products"))
}

func TestHandleVariantUpdatedResolvesOwner(t *testing.T) {
	f := newFixture(t)

	err := f.handler.Handle(context.Background(), envelope(t, TypeVariantUpdated, VariantPayload{VariantID: "var_1"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"prod_1"}, f.gw.IDs("products"))
}

func TestHandleCategoryUpdatedSyncsSubtreeProducts(t *testing.T) {
	f := newFixture(t)

	err := f.handler.Handle(context.Background(), envelope(t, TypeCategoryUpdated, CategoryPayload{CategoryID: "cat_root"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"cat_root"}, f.gw.IDs("categories"))
	// prod_1 sits under cat_engine, a descendant of cat_root; prod_2 does not.
	assert.Equal(t, []string{"prod_1"}, f.gw.IDs("products"))
}

func TestHandleCategoryDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.gw.Upsert(ctx, "categories", []json.RawMessage{
		json.RawMessage(`{"id":"cat_engine","name":"Motor"}`),
	}))

	err := f.handler.Handle(ctx, envelope(t, TypeCategoryDeleted, CategoryPayload{CategoryID: "cat_engine"}))
	require.NoError(t, err)

	assert.Empty(t, f.gw.IDs("categories"))
}

func TestHandleCategoryDeletedResyncsMemberProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Index prod_1 with its denormalized cat_engine path, then delete the
	// category on the catalog side. Its membership row still references the
	// deleted id, which is how the affected products are found.
	require.NoError(t, f.gw.Upsert(ctx, "products", []json.RawMessage{
		json.RawMessage(`{"id":"prod_1","title":"Zylinderkopfdichtung","category_ids":["cat_root","cat_engine"]}`),
	}))
	f.catalog.categories = f.catalog.categories[:1]

	err := f.handler.Handle(ctx, envelope(t, TypeCategoryDeleted, CategoryPayload{CategoryID: "cat_engine"}))
	require.NoError(t, err)

	raw, err := f.gw.Get(ctx, "products", "prod_1")
	require.NoError(t, err)

	var doc struct {
		CategoryIDs []string `json:"category_ids"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.NotContains(t, doc.CategoryIDs, "cat_engine")
}

func TestHandleCollectionUpdated(t *testing.T) {
	f := newFixture(t)

	err := f.handler.Handle(context.Background(), envelope(t, TypeCollectionUpdated, CollectionPayload{CollectionID: "col_sale"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"prod_2"}, f.gw.IDs("products"))
}

func TestHandleOrderPlaced(t *testing.T) {
	f := newFixture(t)

	err := f.handler.Handle(context.Background(), envelope(t, TypeOrderPlaced, OrderPayload{
		OrderID: "ord_1",
		Items: []OrderItem{
			{VariantID: "var_1", Quantity: 2},
			{VariantID: "var_2", Quantity: 1},
			{VariantID: "var_1", Quantity: 3},
		},
	}))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"prod_1", "prod_2"}, f.gw.IDs("products"))
}

func TestHandleReservationChanged(t *testing.T) {
	f := newFixture(t)

	err := f.handler.Handle(context.Background(), envelope(t, TypeReservationChanged, ReservationPayload{
		ReservationID: "res_1",
		VariantID:     "var_2",
		Status:        "confirmed",
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"prod_2"}, f.gw.IDs("products"))
}

func TestHandleUnknownEventSkipped(t *testing.T) {
	f := newFixture(t)

	err := f.handler.Handle(context.Background(), envelope(t, "price_list.updated", map[string]string{"id": "pl_1"}))
	require.NoError(t, err)

	assert.Empty(t, f.gw.IDs("products"))
	assert.Empty(t, f.gw.IDs("categories"))
}

func TestHandleMalformedPayloadDropped(t *testing.T) {
	f := newFixture(t)
	e := envelope(t, TypeProductUpdated, nil)
	e.Data = json.RawMessage(`"not an object"`)

	err := f.handler.Handle(context.Background(), e)
	require.NoError(t, err)

	assert.Empty(t, f.gw.IDs("products"))
}

func TestHandleFallsBackToAggregateID(t *testing.T) {
	f := newFixture(t)
	e := envelope(t, TypeProductUpdated, ProductPayload{})
	e.AggregateID = "prod_2"

	err := f.handler.Handle(context.Background(), e)
	require.NoError(t, err)

	assert.Equal(t, []string{"prod_2"}, f.gw.IDs("products"))
}

// stubInventory reports fixed quantities.
type stubInventory struct{}

func (stubInventory) BatchAvailability(_ context.Context, variantIDs []string, _ string) (map[string]int, error) {
	out := make(map[string]int, len(variantIDs))
	for _, id := range variantIDs {
		out[id] = 1
	}
	return out, nil
}
