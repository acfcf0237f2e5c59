package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohik-agnext/docker-chatbot/internal/corpus"
	"github.com/mohik-agnext/docker-chatbot/internal/embed"
	rerrors "github.com/mohik-agnext/docker-chatbot/internal/errors"
	"github.com/mohik-agnext/docker-chatbot/internal/search"
)

func TestLocalIndexQuery(t *testing.T) {
	ix := NewLocalIndex(3)
	require.NoError(t, ix.Add("excise_policy", "ex-1", []float32{1, 0, 0}))
	require.NoError(t, ix.Add("excise_policy", "ex-2", []float32{0, 1, 0}))
	require.NoError(t, ix.Add("ev_policy", "ev-1", []float32{0.9, 0.1, 0}))

	results, err := ix.Query(context.Background(), []float32{1, 0, 0}, []string{"excise_policy"}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "ex-1", results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	for i, r := range results {
		assert.Equal(t, i+1, r.Rank)
		assert.Equal(t, search.SourceVector, r.Source)
		assert.NotEqual(t, "ev-1", r.ChunkID, "namespace scoping must hold")
	}
}

func TestLocalIndexMultipleNamespaces(t *testing.T) {
	ix := NewLocalIndex(2)
	require.NoError(t, ix.Add("a", "a-1", []float32{1, 0}))
	require.NoError(t, ix.Add("b", "b-1", []float32{0.8, 0.6}))

	results, err := ix.Query(context.Background(), []float32{1, 0}, []string{"a", "b"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a-1", results[0].ChunkID)
	assert.Equal(t, "b-1", results[1].ChunkID)
}

func TestLocalIndexEmptyAndUnknownNamespace(t *testing.T) {
	ix := NewLocalIndex(2)
	results, err := ix.Query(context.Background(), []float32{1, 0}, []string{"missing"}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLocalIndexDimensionMismatch(t *testing.T) {
	ix := NewLocalIndex(3)
	err := ix.Add("a", "a-1", []float32{1, 0})
	require.Error(t, err)
	assert.Equal(t, rerrors.ErrCodeVectorBackend, rerrors.GetCode(err))

	_, err = ix.Query(context.Background(), []float32{1, 0}, []string{"a"}, 5)
	require.Error(t, err)
}

func TestBuildLocalIndexFromSnapshot(t *testing.T) {
	snap := &corpus.Snapshot{
		Version:    1,
		Namespaces: []corpus.Namespace{{Name: "excise_policy"}},
		Chunks: []corpus.Chunk{
			{ID: "ex-1", Namespace: "excise_policy", Granularity: corpus.GranularityClause,
				Text: "License fees are payable quarterly."},
			{ID: "ex-2", Namespace: "excise_policy", Granularity: corpus.GranularityClause,
				Text: "Dry days are notified by the administration."},
		},
	}
	snap.ContentHash = snap.ComputeContentHash()

	embedder := embed.NewStaticEmbedder(64)
	ix, err := BuildLocalIndex(context.Background(), snap, embedder)
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Count())

	qv, err := embedder.Embed(context.Background(), "license fees quarterly")
	require.NoError(t, err)
	results, err := ix.Query(context.Background(), qv, []string{"excise_policy"}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "ex-1", results[0].ChunkID)
}

func TestRemoteClientQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/query", r.URL.Path)
		var req queryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"excise_policy"}, req.Namespaces)
		assert.Equal(t, 2, req.TopK)
		_, _ = w.Write([]byte(`{"results":[{"chunk_id":"ex-2","score":0.91},{"chunk_id":"ex-1","score":0.75}]}`))
	}))
	defer srv.Close()

	c, err := NewRemoteClient(RemoteConfig{Endpoint: srv.URL, Timeout: time.Second})
	require.NoError(t, err)

	results, err := c.Query(context.Background(), []float32{1, 0}, []string{"excise_policy"}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "ex-2", results[0].ChunkID)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 2, results[1].Rank)
}

func TestRemoteClientRetriesOnce(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"chunk_id":"x","score":0.5}]}`))
	}))
	defer srv.Close()

	c, err := NewRemoteClient(RemoteConfig{Endpoint: srv.URL, RetryBackoff: time.Millisecond})
	require.NoError(t, err)

	results, err := c.Query(context.Background(), []float32{1}, nil, 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, int64(2), calls.Load())
}

func TestRemoteClientPersistentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewRemoteClient(RemoteConfig{Endpoint: srv.URL, RetryBackoff: time.Millisecond})
	require.NoError(t, err)

	_, err = c.Query(context.Background(), []float32{1}, nil, 1)
	require.Error(t, err)
	assert.Equal(t, rerrors.ErrCodeVectorBackend, rerrors.GetCode(err))
	assert.True(t, rerrors.IsRetryable(err))
	assert.False(t, c.Available(context.Background()))
}
