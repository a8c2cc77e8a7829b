package sync

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilehaus/searchsync/internal/gateway/memory"
)

func TestReconfigureAppliesSettings(t *testing.T) {
	gw := memory.New()
	r := NewRebuilder(gw, NewOrchestrator(gw, 50, testLogger()),
		&stubSource{kind: "category", index: "categories"},
		&stubSource{kind: "product", index: "products"},
		testLogger(),
	)

	require.NoError(t, r.Reconfigure(context.Background()))

	assert.Equal(t, ProductIndexSettings(), gw.Settings("products"))
	assert.Equal(t, CategoryIndexSettings(), gw.Settings("categories"))
}

func TestRebuildAllClearsAndResyncs(t *testing.T) {
	gw := memory.New()
	ctx := context.Background()

	// A stale document for an entity the catalog no longer has.
	require.NoError(t, gw.Upsert(ctx, "products", []json.RawMessage{
		json.RawMessage(`{"id":"prod_stale","title":"gone"}`),
	}))

	categories := &stubSource{kind: "category", index: "categories", docs: []Document{
		{ID: "cat_root", Body: json.RawMessage(`{"id":"cat_root","name":"Mercedes Benz"}`)},
	}}
	products := &stubSource{kind: "product", index: "products", docs: makeDocs(3)}
	r := NewRebuilder(gw, NewOrchestrator(gw, 50, testLogger()), categories, products, testLogger())

	require.NoError(t, r.RebuildAll(ctx))

	assert.ElementsMatch(t, []string{"prod_000", "prod_001", "prod_002"}, gw.IDs("products"))
	assert.Equal(t, []string{"cat_root"}, gw.IDs("categories"))
	assert.False(t, r.InProgress())
}

// blockingSource parks the first fetch until released, so a rebuild can be
// held in flight from a test.
type blockingSource struct {
	stubSource
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingSource) BuildPage(ctx context.Context, ids []string, take, skip int) ([]Document, int, error) {
	s.once.Do(func() {
		close(s.started)
		<-s.release
	})
	return s.stubSource.BuildPage(ctx, ids, take, skip)
}

func TestRebuildAllRejectsConcurrentRun(t *testing.T) {
	gw := memory.New()
	categories := &blockingSource{
		stubSource: stubSource{kind: "category", index: "categories"},
		started:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	products := &stubSource{kind: "product", index: "products"}
	r := NewRebuilder(gw, NewOrchestrator(gw, 50, testLogger()), categories, products, testLogger())

	done := make(chan error, 1)
	go func() { done <- r.RebuildAll(context.Background()) }()

	<-categories.started
	assert.True(t, r.InProgress())
	assert.ErrorIs(t, r.RebuildAll(context.Background()), ErrRebuildInProgress)
	assert.ErrorIs(t, r.ForceSync(context.Background()), ErrRebuildInProgress)

	close(categories.release)
	require.NoError(t, <-done)
	assert.False(t, r.InProgress())
}

func TestForceSyncKeepsStaleDocuments(t *testing.T) {
	gw := memory.New()
	ctx := context.Background()
	require.NoError(t, gw.Upsert(ctx, "products", []json.RawMessage{
		json.RawMessage(`{"id":"prod_stale","title":"gone"}`),
	}))

	categories := &stubSource{kind: "category", index: "categories"}
	products := &stubSource{kind: "product", index: "products", docs: makeDocs(2)}
	r := NewRebuilder(gw, NewOrchestrator(gw, 50, testLogger()), categories, products, testLogger())

	require.NoError(t, r.ForceSync(ctx))

	assert.ElementsMatch(t, []string{"prod_stale", "prod_000", "prod_001"}, gw.IDs("products"))
}
