package search

import (
	"sort"
)

// DefaultRRFConstant is the standard RRF smoothing parameter. k=60 is
// empirically validated across domains (used by Azure AI Search, OpenSearch).
const DefaultRRFConstant = 60

// Weights scale each source's reciprocal-rank contribution. With both at
// 1.0 (the default) fusion is pure RRF; scores need no cross-source
// normalization because only ranks enter the formula.
type Weights struct {
	Lexical float64
	Vector  float64
}

// DefaultWeights returns unweighted RRF.
func DefaultWeights() Weights {
	return Weights{Lexical: 1.0, Vector: 1.0}
}

// forSource returns the weight for the given source. Unknown sources get 1.0
// so additional ranking strategies fold in without code changes here.
func (w Weights) forSource(s Source) float64 {
	switch s {
	case SourceLexical:
		return w.Lexical
	case SourceVector:
		return w.Vector
	default:
		return 1.0
	}
}

// Fusion merges ranked lists from heterogeneous sources with Reciprocal
// Rank Fusion:
//
//	score(c) = Σ over lists containing c of weight_list / (k + rank_in_list)
//
// where rank is the 1-based position and k dampens the influence of low
// ranks. Chunks absent from a list contribute nothing for that list.
type Fusion struct {
	// K is the smoothing constant (default 60).
	K float64
	// W holds the per-source weights.
	W Weights
}

// NewFusion creates a fusion ranker. k <= 0 selects the default constant.
func NewFusion(k float64, w Weights) *Fusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	if w.Lexical == 0 && w.Vector == 0 {
		w = DefaultWeights()
	}
	return &Fusion{K: k, W: w}
}

// Fuse merges the given ranked lists into one deduplicated ranking.
//
// Ordering: fused score descending, then best individual rank across lists
// ascending, then chunk ID ascending. The final ID tie-break makes the
// output fully deterministic for fixed inputs.
func (f *Fusion) Fuse(lists ...[]RankedResult) []FusedResult {
	byID := make(map[string]*FusedResult)
	var order []string // first-seen order, only for stable map iteration

	for _, list := range lists {
		for i, r := range list {
			rank := i + 1
			fr, ok := byID[r.ChunkID]
			if !ok {
				fr = &FusedResult{ChunkID: r.ChunkID, BestRank: rank}
				byID[r.ChunkID] = fr
				order = append(order, r.ChunkID)
			}
			fr.Score += f.W.forSource(r.Source) / (f.K + float64(rank))
			fr.Sources = append(fr.Sources, r.Source)
			if rank < fr.BestRank {
				fr.BestRank = rank
			}
		}
	}

	results := make([]FusedResult, 0, len(order))
	for _, id := range order {
		results = append(results, *byID[id])
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.BestRank != b.BestRank {
			return a.BestRank < b.BestRank
		}
		return a.ChunkID < b.ChunkID
	})

	return results
}
