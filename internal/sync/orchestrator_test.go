package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilehaus/searchsync/internal/gateway"
	"github.com/teilehaus/searchsync/internal/gateway/memory"
)

// stubSource serves a fixed document list, recording fetch calls.
type stubSource struct {
	kind  string
	index string
	docs  []Document

	fetchCalls int
	buildErr   error
}

func (s *stubSource) Kind() string  { return s.kind }
func (s *stubSource) Index() string { return s.index }

func (s *stubSource) BuildPage(_ context.Context, ids []string, take, skip int) ([]Document, int, error) {
	s.fetchCalls++
	if s.buildErr != nil {
		return nil, 0, s.buildErr
	}

	if len(ids) > 0 {
		var out []Document
		for _, doc := range s.docs {
			for _, id := range ids {
				if doc.ID == id {
					out = append(out, doc)
					break
				}
			}
		}
		return out, len(out), nil
	}

	if skip >= len(s.docs) {
		return nil, 0, nil
	}
	page := s.docs[skip:]
	if len(page) > take {
		page = page[:take]
	}
	return page, len(page), nil
}

func makeDocs(n int) []Document {
	docs := make([]Document, n)
	for i := range docs {
		id := fmt.Sprintf("prod_%03d", i)
		docs[i] = Document{ID: id, Body: json.RawMessage(fmt.Sprintf(`{"id":%q,"title":"part %d"}`, id, i))}
	}
	return docs
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSyncAllPagesExhaustively(t *testing.T) {
	gw := memory.New()
	src := &stubSource{kind: "product", index: "products", docs: makeDocs(125)}
	orch := NewOrchestrator(gw, 50, testLogger())

	summary, err := orch.SyncAll(context.Background(), src)
	require.NoError(t, err)

	// 50 + 50 + 25: the short page terminates without an extra fetch.
	assert.Equal(t, 3, src.fetchCalls)
	assert.Equal(t, 125, summary.Synced)
	assert.Equal(t, 3, summary.Batches)
	assert.Equal(t, 125, gw.Count("products"))
}

func TestSyncAllExactPageBoundary(t *testing.T) {
	gw := memory.New()
	src := &stubSource{kind: "product", index: "products", docs: makeDocs(100)}
	orch := NewOrchestrator(gw, 50, testLogger())

	summary, err := orch.SyncAll(context.Background(), src)
	require.NoError(t, err)

	// The third fetch returns the empty page that terminates the cursor.
	assert.Equal(t, 3, src.fetchCalls)
	assert.Equal(t, 100, summary.Synced)
	assert.Equal(t, 100, gw.Count("products"))
}

func TestSyncAllEmptyCorpus(t *testing.T) {
	gw := memory.New()
	src := &stubSource{kind: "product", index: "products"}
	orch := NewOrchestrator(gw, 50, testLogger())

	summary, err := orch.SyncAll(context.Background(), src)
	require.NoError(t, err)

	assert.Zero(t, summary.Synced)
	assert.Zero(t, summary.Batches)
}

func TestSyncAllIdempotent(t *testing.T) {
	gw := memory.New()
	src := &stubSource{kind: "product", index: "products", docs: makeDocs(7)}
	orch := NewOrchestrator(gw, 50, testLogger())

	_, err := orch.SyncAll(context.Background(), src)
	require.NoError(t, err)

	first := make(map[string]json.RawMessage)
	for _, id := range gw.IDs("products") {
		doc, err := gw.Get(context.Background(), "products", id)
		require.NoError(t, err)
		first[id] = doc
	}

	_, err = orch.SyncAll(context.Background(), src)
	require.NoError(t, err)

	assert.Len(t, gw.IDs("products"), 7)
	for id, before := range first {
		after, err := gw.Get(context.Background(), "products", id)
		require.NoError(t, err)
		assert.JSONEq(t, string(before), string(after))
	}
}

func TestSyncIDsChunked(t *testing.T) {
	gw := memory.New()
	src := &stubSource{kind: "product", index: "products", docs: makeDocs(5)}
	orch := NewOrchestrator(gw, 2, testLogger())

	ids := []string{"prod_000", "prod_001", "prod_002", "prod_003", "prod_004"}
	summary, err := orch.SyncIDs(context.Background(), src, ids)
	require.NoError(t, err)

	assert.Equal(t, 3, src.fetchCalls)
	assert.Equal(t, 5, summary.Synced)
	assert.Equal(t, 3, summary.Batches)
	assert.ElementsMatch(t, ids, gw.IDs("products"))
}

func TestSyncIDsEmpty(t *testing.T) {
	gw := memory.New()
	src := &stubSource{kind: "product", index: "products"}
	orch := NewOrchestrator(gw, 2, testLogger())

	summary, err := orch.SyncIDs(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Zero(t, summary.Synced)
	assert.Zero(t, src.fetchCalls)
}

func TestSyncAllFetchError(t *testing.T) {
	gw := memory.New()
	src := &stubSource{kind: "product", index: "products", buildErr: errors.New("catalog down")}
	orch := NewOrchestrator(gw, 50, testLogger())

	_, err := orch.SyncAll(context.Background(), src)
	require.Error(t, err)
	assert.Zero(t, gw.Count("products"))
}

// failingGateway delegates to a memory gateway but fails the Nth upsert.
type failingGateway struct {
	*memory.Gateway
	failOnUpsert   int
	upsertCalls    int
	failAllUpserts bool
	failDeletes    bool
}

func (f *failingGateway) Upsert(ctx context.Context, name string, docs []json.RawMessage) error {
	f.upsertCalls++
	if f.failAllUpserts || f.upsertCalls == f.failOnUpsert {
		return errors.New("index write rejected")
	}
	return f.Gateway.Upsert(ctx, name, docs)
}

func (f *failingGateway) Delete(ctx context.Context, name string, ids []string) error {
	if f.failDeletes {
		return errors.New("index delete rejected")
	}
	return f.Gateway.Delete(ctx, name, ids)
}

func TestCompensationRestoresPreBatchState(t *testing.T) {
	mem := memory.New()
	ctx := context.Background()

	// Two documents pre-exist with known content; a third id is new.
	preA := json.RawMessage(`{"id":"prod_a","title":"old a"}`)
	preB := json.RawMessage(`{"id":"prod_b","title":"old b"}`)
	require.NoError(t, mem.Upsert(ctx, "products", []json.RawMessage{preA, preB}))

	gw := &failingGateway{Gateway: mem, failOnUpsert: 1}
	src := &stubSource{kind: "product", index: "products", docs: []Document{
		{ID: "prod_a", Body: json.RawMessage(`{"id":"prod_a","title":"new a"}`)},
		{ID: "prod_b", Body: json.RawMessage(`{"id":"prod_b","title":"new b"}`)},
		{ID: "prod_c", Body: json.RawMessage(`{"id":"prod_c","title":"new c"}`)},
	}}
	orch := NewOrchestrator(gw, 50, testLogger())

	_, err := orch.SyncIDs(ctx, src, []string{"prod_a", "prod_b", "prod_c"})
	require.Error(t, err)

	var compErr *CompensationError
	assert.False(t, errors.As(err, &compErr), "rollback itself succeeded")

	gotA, err := mem.Get(ctx, "products", "prod_a")
	require.NoError(t, err)
	assert.JSONEq(t, string(preA), string(gotA))

	gotB, err := mem.Get(ctx, "products", "prod_b")
	require.NoError(t, err)
	assert.JSONEq(t, string(preB), string(gotB))

	_, err = mem.Get(ctx, "products", "prod_c")
	assert.ErrorIs(t, err, gateway.ErrDocumentNotFound)
}

func TestCompensationFailureIsFatal(t *testing.T) {
	mem := memory.New()
	ctx := context.Background()
	require.NoError(t, mem.Upsert(ctx, "products", []json.RawMessage{
		json.RawMessage(`{"id":"prod_a","title":"old a"}`),
	}))

	// Every upsert fails: the batch write and the snapshot restore.
	gw := &failingGateway{Gateway: mem, failAllUpserts: true, failDeletes: true}
	src := &stubSource{kind: "product", index: "products", docs: []Document{
		{ID: "prod_a", Body: json.RawMessage(`{"id":"prod_a","title":"new a"}`)},
		{ID: "prod_b", Body: json.RawMessage(`{"id":"prod_b","title":"new b"}`)},
	}}
	orch := NewOrchestrator(gw, 50, testLogger())

	_, err := orch.SyncIDs(ctx, src, []string{"prod_a", "prod_b"})
	require.Error(t, err)

	var compErr *CompensationError
	require.True(t, errors.As(err, &compErr))
	assert.Equal(t, "products", compErr.Index)
	assert.ElementsMatch(t, []string{"prod_a", "prod_b"}, compErr.BatchIDs)
	assert.Error(t, compErr.Rollback)
}
