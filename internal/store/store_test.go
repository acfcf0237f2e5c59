package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohik-agnext/docker-chatbot/internal/corpus"
)

func testSnapshot() *corpus.Snapshot {
	snap := &corpus.Snapshot{
		Version: 1,
		Namespaces: []corpus.Namespace{
			{Name: "excise_policy", Description: "liquor licensing", Keywords: []string{"liquor", "license"}},
			{Name: "ev_policy", Description: "electric vehicles", Keywords: []string{"electric", "vehicle"}},
		},
		Documents: []corpus.Document{
			{ID: "doc-excise", Title: "Excise Policy 2024-25", Namespace: "excise_policy"},
		},
		Chunks: []corpus.Chunk{
			{ID: "ex-1", DocumentID: "doc-excise", Namespace: "excise_policy",
				Granularity: corpus.GranularityClause, Text: "License fees are payable quarterly."},
			{ID: "ev-1", Namespace: "ev_policy",
				Granularity: corpus.GranularityFact, Text: "EV buyers receive a road tax rebate."},
		},
	}
	snap.ContentHash = snap.ComputeContentHash()
	return snap
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReplaceSnapshotAndResolve(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	snap := testSnapshot()

	require.NoError(t, s.ReplaceSnapshot(ctx, snap))

	chunks, err := s.GetChunks(ctx, []string{"ex-1", "ev-1", "missing"})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "License fees are payable quarterly.", chunks["ex-1"].Text)
	assert.Equal(t, corpus.GranularityFact, chunks["ev-1"].Granularity)
	_, found := chunks["missing"]
	assert.False(t, found)

	n, err := s.ChunkCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hash, err := s.GetState(ctx, StateCorpusHash)
	require.NoError(t, err)
	assert.Equal(t, snap.ContentHash, hash)
}

func TestReplaceSnapshotSwapsWholeCorpus(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.ReplaceSnapshot(ctx, testSnapshot()))

	next := &corpus.Snapshot{
		Version:    2,
		Namespaces: []corpus.Namespace{{Name: "industrial_policy"}},
		Chunks: []corpus.Chunk{
			{ID: "ind-1", Namespace: "industrial_policy",
				Granularity: corpus.GranularitySection, Text: "Subsidies for new industrial units."},
		},
	}
	next.ContentHash = next.ComputeContentHash()
	require.NoError(t, s.ReplaceSnapshot(ctx, next))

	chunks, err := s.GetChunks(ctx, []string{"ex-1", "ind-1"})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks, "ind-1")

	hash, err := s.GetState(ctx, StateCorpusHash)
	require.NoError(t, err)
	assert.Equal(t, next.ContentHash, hash)
}

func TestGetChunksEmptyInput(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	chunks, err := s.GetChunks(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestGetDocument(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.ReplaceSnapshot(ctx, testSnapshot()))

	d, ok, err := s.GetDocument(ctx, "doc-excise")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Excise Policy 2024-25", d.Title)

	_, ok, err = s.GetDocument(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNamespaceCounts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.ReplaceSnapshot(ctx, testSnapshot()))

	counts, err := s.NamespaceCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"excise_policy": 1, "ev_policy": 1}, counts)
}

func TestEngineState(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	// Fresh store: no corpus recorded yet.
	v, err := s.GetState(ctx, StateCorpusHash)
	require.NoError(t, err)
	assert.Empty(t, v)

	snap := testSnapshot()
	require.NoError(t, s.ReplaceSnapshot(ctx, snap))
	v, err = s.GetState(ctx, StateCorpusHash)
	require.NoError(t, err)
	assert.Equal(t, snap.ContentHash, v)
}
