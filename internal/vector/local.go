package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/mohik-agnext/docker-chatbot/internal/corpus"
	"github.com/mohik-agnext/docker-chatbot/internal/embed"
	rerrors "github.com/mohik-agnext/docker-chatbot/internal/errors"
	"github.com/mohik-agnext/docker-chatbot/internal/search"
)

// LocalIndex is an in-process HNSW vector index. One graph per namespace
// keeps scoping exact: a namespace query never has to over-fetch and
// post-filter a global graph.
type LocalIndex struct {
	mu     sync.RWMutex
	dims   int
	spaces map[string]*localSpace
}

type localSpace struct {
	graph   *hnsw.Graph[uint64]
	keyMap  map[uint64]string
	nextKey uint64
}

func newLocalSpace() *localSpace {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	return &localSpace{
		graph:  graph,
		keyMap: make(map[uint64]string),
	}
}

// NewLocalIndex creates an empty local index for vectors of the given size.
func NewLocalIndex(dims int) *LocalIndex {
	return &LocalIndex{
		dims:   dims,
		spaces: make(map[string]*localSpace),
	}
}

// BuildLocalIndex embeds every chunk of the snapshot and indexes it under
// its namespace.
func BuildLocalIndex(ctx context.Context, snap *corpus.Snapshot, embedder embed.Embedder) (*LocalIndex, error) {
	ix := NewLocalIndex(embedder.Dimensions())
	for _, c := range snap.Chunks {
		vec, err := embedder.Embed(ctx, c.Text)
		if err != nil {
			return nil, rerrors.Wrap(rerrors.ErrCodeVectorBackend,
				fmt.Errorf("embed chunk %s: %w", c.ID, err))
		}
		if err := ix.Add(c.Namespace, c.ID, vec); err != nil {
			return nil, err
		}
	}
	return ix, nil
}

// Add indexes one vector under the given namespace and chunk ID.
func (ix *LocalIndex) Add(namespace, chunkID string, vec []float32) error {
	if ix.dims > 0 && len(vec) != ix.dims {
		return rerrors.New(rerrors.ErrCodeVectorBackend,
			fmt.Sprintf("vector dimension mismatch: want %d, got %d", ix.dims, len(vec)), nil)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	sp, ok := ix.spaces[namespace]
	if !ok {
		sp = newLocalSpace()
		ix.spaces[namespace] = sp
	}

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeInPlace(normalized)

	key := sp.nextKey
	sp.nextKey++
	sp.graph.Add(hnsw.MakeNode(key, normalized))
	sp.keyMap[key] = chunkID
	return nil
}

// Query searches the graphs of the given namespaces and merges their hits.
// Ties on similarity break by chunk ID for determinism.
func (ix *LocalIndex) Query(_ context.Context, vec []float32, namespaces []string, topK int) ([]search.RankedResult, error) {
	if ix.dims > 0 && len(vec) != ix.dims {
		return nil, rerrors.New(rerrors.ErrCodeVectorBackend,
			fmt.Sprintf("query dimension mismatch: want %d, got %d", ix.dims, len(vec)), nil)
	}

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeInPlace(normalized)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	type hit struct {
		id    string
		score float64
	}
	var hits []hit
	for _, name := range namespaces {
		sp, ok := ix.spaces[name]
		if !ok || sp.graph.Len() == 0 {
			continue
		}
		for _, node := range sp.graph.Search(normalized, topK) {
			id, ok := sp.keyMap[node.Key]
			if !ok {
				continue
			}
			// Cosine distance -> similarity.
			score := 1 - float64(sp.graph.Distance(normalized, node.Value))
			hits = append(hits, hit{id: id, score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].id < hits[j].id
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}

	results := make([]search.RankedResult, len(hits))
	for i, h := range hits {
		results[i] = search.RankedResult{
			ChunkID: h.id,
			Score:   h.score,
			Rank:    i + 1,
			Source:  search.SourceVector,
		}
	}
	return results, nil
}

// Count returns the number of indexed vectors.
func (ix *LocalIndex) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n := 0
	for _, sp := range ix.spaces {
		n += len(sp.keyMap)
	}
	return n
}

func (ix *LocalIndex) Available(_ context.Context) bool { return true }

func (ix *LocalIndex) Close() error { return nil }

func normalizeInPlace(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
}

var _ Client = (*LocalIndex)(nil)
