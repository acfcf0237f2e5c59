package retrieval

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohik-agnext/docker-chatbot/internal/config"
	"github.com/mohik-agnext/docker-chatbot/internal/corpus"
	"github.com/mohik-agnext/docker-chatbot/internal/embed"
	rerrors "github.com/mohik-agnext/docker-chatbot/internal/errors"
	"github.com/mohik-agnext/docker-chatbot/internal/search"
	"github.com/mohik-agnext/docker-chatbot/internal/store"
	"github.com/mohik-agnext/docker-chatbot/internal/vector"
)

func testSnapshot() *corpus.Snapshot {
	return &corpus.Snapshot{
		Version: 1,
		Namespaces: []corpus.Namespace{
			{Name: "excise_policy", Keywords: []string{"liquor", "license", "vend"}},
			{Name: "ev_policy", Keywords: []string{"electric vehicle", "ev", "charging"}},
		},
		Documents: []corpus.Document{
			{ID: "doc-excise", Title: "Excise Policy", Namespace: "excise_policy"},
		},
		Chunks: []corpus.Chunk{
			{ID: "ex-1", DocumentID: "doc-excise", Namespace: "excise_policy",
				Granularity: corpus.GranularityClause,
				Text:        "Liquor vend licenses are allotted through e-tendering."},
			{ID: "ex-2", DocumentID: "doc-excise", Namespace: "excise_policy",
				Granularity: corpus.GranularityClause,
				Text:        "The license fee for liquor vends is payable quarterly."},
			{ID: "ev-1", Namespace: "ev_policy",
				Granularity: corpus.GranularityFact,
				Text:        "Electric vehicle buyers receive a road tax rebate."},
		},
	}
}

func writeSnapshot(t *testing.T, path string, snap *corpus.Snapshot) {
	t.Helper()
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

type testEnv struct {
	orch *Orchestrator
	cfg  *config.Config
	st   *store.Store
	path string
}

func newTestEnv(t *testing.T, vec vector.Client) *testEnv {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	writeSnapshot(t, path, testSnapshot())

	cfg := config.Default()
	cfg.Corpus.SnapshotPath = path
	cfg.Cache.ArtifactDir = filepath.Join(dir, "cache")
	cfg.Search.RequestTimeout = 2 * time.Second

	st, err := store.Open("")
	require.NoError(t, err)

	embedder, err := embed.NewCachedEmbedder(embed.NewStaticEmbedder(64), 32)
	require.NoError(t, err)

	orch := New(Options{
		Config:   cfg,
		Store:    st,
		Embedder: embedder,
		Vector:   vec,
	})
	t.Cleanup(func() { _ = orch.Close() })
	return &testEnv{orch: orch, cfg: cfg, st: st, path: path}
}

func TestRetrieveBeforeWarmup(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.orch.Retrieve(context.Background(), Request{Query: "liquor license"})
	require.Error(t, err)
	assert.Equal(t, rerrors.ErrCodeNotReady, rerrors.GetCode(err))
	assert.True(t, rerrors.IsRetryable(err))
	assert.False(t, env.orch.Ready())
}

func TestRetrieveHybrid(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, env.orch.Warmup(ctx))
	assert.True(t, env.orch.Ready())

	resp, err := env.orch.Retrieve(ctx, Request{Query: "liquor license fee"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	assert.False(t, resp.Degraded)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, []string{"excise_policy"}, resp.Namespaces)
	for i, r := range resp.Results {
		assert.Equal(t, i+1, r.Rank)
		assert.Equal(t, "excise_policy", r.Namespace)
		assert.NotEmpty(t, r.Text)
		assert.NotEmpty(t, r.Sources)
		if r.DocumentID != "" {
			assert.Equal(t, "Excise Policy", r.DocumentTitle)
		}
	}
}

func TestRetrieveCacheHit(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, env.orch.Warmup(ctx))

	first, err := env.orch.Retrieve(ctx, Request{Query: "liquor license fee"})
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	second, err := env.orch.Retrieve(ctx, Request{Query: "  LIQUOR   license fee "})
	require.NoError(t, err)
	assert.True(t, second.CacheHit, "normalized repeat should hit the cache")
	assert.Equal(t, first.Results, second.Results)

	stats, err := env.orch.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ResultCache.Hits)
}

func TestRetrieveEmptyQuery(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, env.orch.Warmup(ctx))

	for _, q := range []string{"", "   "} {
		resp, err := env.orch.Retrieve(ctx, Request{Query: q})
		require.NoError(t, err)
		assert.Empty(t, resp.Results)
		assert.False(t, resp.Degraded)
	}
}

func TestRetrieveExplicitNamespaces(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, env.orch.Warmup(ctx))

	// "rebate" lives in ev_policy; pinning excise keeps it out.
	resp, err := env.orch.Retrieve(ctx, Request{
		Query:      "road tax rebate",
		Namespaces: []string{"excise_policy"},
	})
	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.Equal(t, "excise_policy", r.Namespace)
	}

	// Unknown namespaces are dropped; all-unknown is a scope error.
	_, err = env.orch.Retrieve(ctx, Request{
		Query:      "anything",
		Namespaces: []string{"not_a_namespace"},
	})
	require.Error(t, err)
	assert.Equal(t, rerrors.ErrCodeScopeSelection, rerrors.GetCode(err))

	resp, err = env.orch.Retrieve(ctx, Request{
		Query:      "liquor license",
		Namespaces: []string{"not_a_namespace", "excise_policy"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"excise_policy"}, resp.Namespaces)
}

func TestRetrieveTopKClamped(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, env.orch.Warmup(ctx))

	resp, err := env.orch.Retrieve(ctx, Request{Query: "liquor license", TopK: 1})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)

	resp, err = env.orch.Retrieve(ctx, Request{Query: "liquor license", TopK: 10_000})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(resp.Results), env.cfg.Search.MaxTopK)
}

// failingVector always errors, simulating a down vector store.
type failingVector struct{}

func (failingVector) Query(context.Context, []float32, []string, int) ([]search.RankedResult, error) {
	return nil, rerrors.VectorBackendError("store unreachable", nil)
}
func (failingVector) Available(context.Context) bool { return false }
func (failingVector) Close() error                   { return nil }

func TestRetrieveDegradesToLexical(t *testing.T) {
	env := newTestEnv(t, failingVector{})
	ctx := context.Background()
	require.NoError(t, env.orch.Warmup(ctx))

	resp, err := env.orch.Retrieve(ctx, Request{Query: "liquor license fee"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	assert.True(t, resp.Degraded)
	assert.Equal(t, "vector", resp.DegradedReason)
	for _, r := range resp.Results {
		assert.Equal(t, []search.Source{search.SourceLexical}, r.Sources)
	}

	stats, err := env.orch.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Queries.DegradedCount)
	assert.False(t, stats.Backends.Vector)
}

func TestRetrieveVectorDownNoLexicalMatch(t *testing.T) {
	env := newTestEnv(t, failingVector{})
	ctx := context.Background()
	require.NoError(t, env.orch.Warmup(ctx))

	// Real terms, but nothing in the corpus matches them and the vector
	// store is down. The caller still gets a successful response: empty,
	// with the degraded flag as the only trace of the outage.
	resp, err := env.orch.Retrieve(ctx, Request{Query: "quantum entanglement"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.True(t, resp.Degraded)
	assert.Equal(t, "vector", resp.DegradedReason)
}

func TestMarkStaleTriggersRebuild(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, env.orch.Warmup(ctx))

	first, err := env.orch.Retrieve(ctx, Request{Query: "solar rooftop incentive"})
	require.NoError(t, err)
	firstHash := first.CorpusHash

	snap := testSnapshot()
	snap.Namespaces = append(snap.Namespaces, corpus.Namespace{
		Name: "renewable_policy", Keywords: []string{"solar", "rooftop"},
	})
	snap.Chunks = append(snap.Chunks, corpus.Chunk{
		ID: "re-1", Namespace: "renewable_policy",
		Granularity: corpus.GranularityFact,
		Text:        "Rooftop solar installations get a capital incentive.",
	})
	writeSnapshot(t, env.path, snap)

	env.orch.MarkStale()
	resp, err := env.orch.Retrieve(ctx, Request{Query: "solar rooftop incentive"})
	require.NoError(t, err)
	assert.NotEqual(t, firstHash, resp.CorpusHash)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "re-1", resp.Results[0].ChunkID)
}

func TestStaleRebuildRunsOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, env.orch.Warmup(ctx))

	before, err := env.orch.Retrieve(ctx, Request{Query: "liquor license"})
	require.NoError(t, err)

	// The first pass through the rebuild lock clears the flag; later passes
	// must not reload the snapshot even though the file changed underneath.
	env.orch.MarkStale()
	require.NoError(t, env.orch.rebuildIfStale(ctx))

	changed := testSnapshot()
	changed.Chunks[0].Text = "Liquor vend licenses are allotted by open auction."
	writeSnapshot(t, env.path, changed)
	require.NoError(t, env.orch.rebuildIfStale(ctx))

	after, err := env.orch.Retrieve(ctx, Request{Query: "liquor license"})
	require.NoError(t, err)
	assert.Equal(t, before.CorpusHash, after.CorpusHash)
}

func TestRebuildSkipsStoreReplaceWhenUnchanged(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, env.orch.Warmup(ctx))

	hash, err := env.st.GetState(ctx, store.StateCorpusHash)
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	// A stale signal with an unchanged snapshot leaves the store as is.
	env.orch.MarkStale()
	resp, err := env.orch.Retrieve(ctx, Request{Query: "liquor license"})
	require.NoError(t, err)
	assert.Equal(t, hash, resp.CorpusHash)

	n, err := env.st.ChunkCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStatsSnapshot(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, env.orch.Warmup(ctx))

	_, err := env.orch.Retrieve(ctx, Request{Query: "liquor license"})
	require.NoError(t, err)

	stats, err := env.orch.Stats(ctx)
	require.NoError(t, err)
	assert.True(t, stats.Ready)
	assert.NotEmpty(t, stats.CorpusHash)
	assert.Equal(t, 3, stats.ChunkCount)
	assert.Equal(t, int64(1), stats.Queries.TotalQueries)
	require.NotNil(t, stats.EmbeddingCache)
	assert.True(t, stats.Backends.Embedding)
	assert.True(t, stats.Backends.Vector)
}
