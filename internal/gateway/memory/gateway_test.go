package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilehaus/searchsync/internal/gateway"
)

func doc(parts string) json.RawMessage {
	return json.RawMessage(parts)
}

func TestUpsertAndGet(t *testing.T) {
	g := New()
	ctx := context.Background()

	require.NoError(t, g.Upsert(ctx, "products", []json.RawMessage{
		doc(`{"id":"prod_1","title":"Bremsscheibe"}`),
	}))

	got, err := g.Get(ctx, "products", "prod_1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"prod_1","title":"Bremsscheibe"}`, string(got))
}

func TestUpsert_ReplacesExisting(t *testing.T) {
	g := New()
	ctx := context.Background()

	require.NoError(t, g.Upsert(ctx, "products", []json.RawMessage{doc(`{"id":"prod_1","title":"old"}`)}))
	require.NoError(t, g.Upsert(ctx, "products", []json.RawMessage{doc(`{"id":"prod_1","title":"new"}`)}))

	got, err := g.Get(ctx, "products", "prod_1")
	require.NoError(t, err)
	assert.Contains(t, string(got), "new")
	assert.Equal(t, 1, g.Count("products"))
}

func TestUpsert_MissingPrimaryKey(t *testing.T) {
	g := New()
	err := g.Upsert(context.Background(), "products", []json.RawMessage{doc(`{"title":"no id"}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary key")
}

func TestGet_NotFound(t *testing.T) {
	g := New()
	_, err := g.Get(context.Background(), "products", "prod_missing")
	assert.ErrorIs(t, err, gateway.ErrDocumentNotFound)
}

func TestDelete_IgnoresMissing(t *testing.T) {
	g := New()
	ctx := context.Background()

	require.NoError(t, g.Upsert(ctx, "products", []json.RawMessage{
		doc(`{"id":"prod_1"}`),
		doc(`{"id":"prod_2"}`),
	}))
	require.NoError(t, g.Delete(ctx, "products", []string{"prod_1", "prod_missing"}))

	assert.Equal(t, []string{"prod_2"}, g.IDs("products"))
}

func TestClear_KeepsSettings(t *testing.T) {
	g := New()
	ctx := context.Background()

	settings := gateway.Settings{FilterableAttributes: []string{"is_available"}}
	require.NoError(t, g.Configure(ctx, "products", settings))
	require.NoError(t, g.Upsert(ctx, "products", []json.RawMessage{doc(`{"id":"prod_1"}`)}))

	require.NoError(t, g.Clear(ctx, "products"))

	assert.Equal(t, 0, g.Count("products"))
	assert.Equal(t, settings, g.Settings("products"))
}

func searchFixture(t *testing.T) *Gateway {
	t.Helper()
	g := New()
	require.NoError(t, g.Upsert(context.Background(), "products", []json.RawMessage{
		doc(`{"id":"prod_1","title":"Bremsscheibe vorne","is_available":true,"category_names":["Bremsen"]}`),
		doc(`{"id":"prod_2","title":"Bremsbelag hinten","is_available":false,"category_names":["Bremsen"]}`),
		doc(`{"id":"prod_3","title":"Zahnriemen","is_available":true,"category_names":["Motor"]}`),
	}))
	return g
}

func TestSearch_SubstringMatch(t *testing.T) {
	g := searchFixture(t)

	res, err := g.Search(context.Background(), "products", gateway.SearchRequest{Query: "brems"})
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.EstimatedTotalHits)
	require.Len(t, res.Hits, 2)
	assert.Contains(t, string(res.Hits[0]), "prod_1")
}

func TestSearch_Filter(t *testing.T) {
	g := searchFixture(t)

	res, err := g.Search(context.Background(), "products", gateway.SearchRequest{
		Filters: []string{`is_available = "true"`},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.EstimatedTotalHits)
	for _, hit := range res.Hits {
		assert.NotContains(t, string(hit), "prod_2")
	}
}

func TestSearch_ArrayFieldFilter(t *testing.T) {
	g := searchFixture(t)

	res, err := g.Search(context.Background(), "products", gateway.SearchRequest{
		Filters: []string{`category_names = "Motor"`},
	})
	require.NoError(t, err)

	require.Len(t, res.Hits, 1)
	assert.Contains(t, string(res.Hits[0]), "prod_3")
}

func TestSearch_Pagination(t *testing.T) {
	g := searchFixture(t)

	res, err := g.Search(context.Background(), "products", gateway.SearchRequest{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 2)
	assert.Equal(t, int64(3), res.EstimatedTotalHits)

	res, err = g.Search(context.Background(), "products", gateway.SearchRequest{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 1)

	res, err = g.Search(context.Background(), "products", gateway.SearchRequest{Limit: 2, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

func TestSearch_Facets(t *testing.T) {
	g := searchFixture(t)

	res, err := g.Search(context.Background(), "products", gateway.SearchRequest{
		Facets: []string{"category_names", "is_available"},
	})
	require.NoError(t, err)

	require.NotNil(t, res.FacetDistribution)
	assert.Equal(t, int64(2), res.FacetDistribution["category_names"]["Bremsen"])
	assert.Equal(t, int64(1), res.FacetDistribution["category_names"]["Motor"])
	assert.Equal(t, int64(2), res.FacetDistribution["is_available"]["true"])
}
