// Package retrieval wires selection, the two ranking sources, fusion,
// caching, and resolution into the engine's single entry point.
package retrieval

import (
	"time"

	"github.com/mohik-agnext/docker-chatbot/internal/cache"
	"github.com/mohik-agnext/docker-chatbot/internal/corpus"
	"github.com/mohik-agnext/docker-chatbot/internal/search"
	"github.com/mohik-agnext/docker-chatbot/internal/telemetry"
)

// Request is one retrieval query.
type Request struct {
	// Query is the user's question text.
	Query string `json:"query"`
	// Namespaces optionally pins the search scope. Empty means the
	// selector decides.
	Namespaces []string `json:"namespaces,omitempty"`
	// TopK is the requested result count; 0 means the configured default.
	TopK int `json:"top_k,omitempty"`
}

// Result is one resolved chunk in the fused ranking.
type Result struct {
	ChunkID       string             `json:"chunk_id"`
	DocumentID    string             `json:"document_id,omitempty"`
	DocumentTitle string             `json:"document_title,omitempty"`
	Namespace     string             `json:"namespace"`
	Granularity   corpus.Granularity `json:"granularity"`
	Text          string             `json:"text"`
	Score         float64            `json:"score"`
	Rank          int                `json:"rank"`
	Sources       []search.Source    `json:"sources"`
}

// Response is the outcome of one retrieval.
type Response struct {
	Query      string   `json:"query"`
	Namespaces []string `json:"namespaces"`
	Results    []Result `json:"results"`
	// Degraded is set when one ranking source failed and the results come
	// from the surviving source alone.
	Degraded bool `json:"degraded"`
	// DegradedReason names the failed source when Degraded is set.
	DegradedReason string `json:"degraded_reason,omitempty"`
	// CacheHit is set when the response was served from the result cache.
	CacheHit bool `json:"cache_hit"`
	// CorpusHash identifies the corpus version the results came from.
	CorpusHash string `json:"corpus_hash"`
	// Took is the server-side processing time.
	Took time.Duration `json:"took_ms"`
}

// Stats is the engine's operational snapshot, served by the stats surface.
type Stats struct {
	Ready           bool                `json:"ready"`
	CorpusHash      string              `json:"corpus_hash"`
	ChunkCount      int                 `json:"chunk_count"`
	NamespaceCounts map[string]int      `json:"namespace_counts"`
	Backends        BackendHealth       `json:"backends"`
	ResultCache     CacheStats          `json:"result_cache"`
	EmbeddingCache  *CacheStats         `json:"embedding_cache,omitempty"`
	Queries         *telemetry.Snapshot `json:"queries"`
}

// BackendHealth reports the reachability of the external ranking backends,
// as probed at stats time. A down vector backend means queries are being
// served lexical-only.
type BackendHealth struct {
	Embedding bool `json:"embedding"`
	Vector    bool `json:"vector"`
}

// CacheStats summarizes one cache's effectiveness.
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Entries int     `json:"entries,omitempty"`
}

func cacheStats(c *cache.Cache[*Response]) CacheStats {
	hits, misses := c.Stats()
	return CacheStats{
		Hits:    hits,
		Misses:  misses,
		HitRate: c.HitRate(),
		Entries: c.Len(),
	}
}
