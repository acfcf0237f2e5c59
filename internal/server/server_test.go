package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohik-agnext/docker-chatbot/internal/config"
	"github.com/mohik-agnext/docker-chatbot/internal/corpus"
	"github.com/mohik-agnext/docker-chatbot/internal/embed"
	rerrors "github.com/mohik-agnext/docker-chatbot/internal/errors"
	"github.com/mohik-agnext/docker-chatbot/internal/retrieval"
	"github.com/mohik-agnext/docker-chatbot/internal/store"
)

func newTestServer(t *testing.T, warm bool) *Server {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")

	snap := &corpus.Snapshot{
		Version: 1,
		Namespaces: []corpus.Namespace{
			{Name: "excise_policy", Keywords: []string{"liquor", "license"}},
		},
		Chunks: []corpus.Chunk{
			{ID: "ex-1", Namespace: "excise_policy", Granularity: corpus.GranularityClause,
				Text: "The license fee for liquor vends is payable quarterly."},
		},
	}
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg := config.Default()
	cfg.Corpus.SnapshotPath = path
	cfg.Cache.ArtifactDir = filepath.Join(dir, "cache")

	st, err := store.Open("")
	require.NoError(t, err)

	orch := retrieval.New(retrieval.Options{
		Config:   cfg,
		Store:    st,
		Embedder: embed.NewStaticEmbedder(64),
	})
	t.Cleanup(func() { _ = orch.Close() })
	if warm {
		require.NoError(t, orch.Warmup(context.Background()))
	}
	return New(cfg, orch, nil)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSearchEndpoint(t *testing.T) {
	srv := newTestServer(t, true)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/search",
		retrieval.Request{Query: "liquor license fee"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []struct {
			ChunkID string `json:"chunk_id"`
			Text    string `json:"text"`
			Rank    int    `json:"rank"`
		} `json:"results"`
		Namespaces []string `json:"namespaces"`
		Degraded   bool     `json:"degraded"`
		CacheHit   bool     `json:"cache_hit"`
		TookMS     int64    `json:"took_ms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "ex-1", resp.Results[0].ChunkID)
	assert.Equal(t, []string{"excise_policy"}, resp.Namespaces)
	assert.False(t, resp.Degraded)
}

func TestSearchBeforeWarmupReturns503(t *testing.T) {
	srv := newTestServer(t, false)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/search",
		retrieval.Request{Query: "anything"})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	var body struct {
		Error struct {
			Code      string `json:"code"`
			Retryable bool   `json:"retryable"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, rerrors.ErrCodeNotReady, body.Error.Code)
	assert.True(t, body.Error.Retryable)
}

func TestSearchBadBody(t *testing.T) {
	srv := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchUnknownNamespace(t *testing.T) {
	srv := newTestServer(t, true)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/search",
		retrieval.Request{Query: "liquor", Namespaces: []string{"nope"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndReadiness(t *testing.T) {
	cold := newTestServer(t, false)
	rec := doJSON(t, cold.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, cold.Handler(), http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	warm := newTestServer(t, true)
	rec = doJSON(t, warm.Handler(), http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t, true)

	_ = doJSON(t, srv.Handler(), http.MethodPost, "/search",
		retrieval.Request{Query: "liquor license"})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		Ready      bool   `json:"ready"`
		CorpusHash string `json:"corpus_hash"`
		ChunkCount int    `json:"chunk_count"`
		Queries    struct {
			TotalQueries int64 `json:"total_queries"`
		} `json:"queries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.True(t, stats.Ready)
	assert.Equal(t, 1, stats.ChunkCount)
	assert.Equal(t, int64(1), stats.Queries.TotalQueries)
}
