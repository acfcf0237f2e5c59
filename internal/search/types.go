// Package search defines the typed ranking records exchanged between the
// ranking sources and the fusion ranker, and implements Reciprocal Rank
// Fusion over them.
package search

// Source identifies which ranking strategy produced a result.
type Source string

const (
	SourceLexical Source = "lexical"
	SourceVector  Source = "vector"
)

// RankedResult is one entry of a single ranking strategy's output.
// Transient: produced per query, never persisted.
type RankedResult struct {
	// ChunkID identifies the chunk.
	ChunkID string
	// Score is the source-native score (BM25 score or cosine similarity).
	// Scores from different sources are not comparable; fusion uses ranks.
	Score float64
	// Rank is the 1-based position within the source's list.
	Rank int
	// Source is the producing strategy.
	Source Source
}

// FusedResult is one entry of the fusion ranker's output. Ordering of the
// fused list is the external contract consumed by the orchestrator.
type FusedResult struct {
	// ChunkID identifies the chunk. Appears at most once per fused list.
	ChunkID string
	// Score is the summed reciprocal-rank score.
	Score float64
	// Sources lists the strategies that contributed, in input-list order.
	Sources []Source
	// BestRank is the best (lowest) individual rank across the input lists.
	// Used as the first tie-break on equal scores.
	BestRank int
}

// InBoth reports whether more than one ranking source contributed.
func (f *FusedResult) InBoth() bool {
	return len(f.Sources) > 1
}
