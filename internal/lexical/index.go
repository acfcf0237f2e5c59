package lexical

import (
	"math"
	"sort"

	"github.com/mohik-agnext/docker-chatbot/internal/corpus"
	"github.com/mohik-agnext/docker-chatbot/internal/search"
)

// Params are the BM25 tuning parameters.
type Params struct {
	// K1 controls term-frequency saturation.
	K1 float64
	// B controls document-length normalization.
	B float64
}

// DefaultParams returns the standard BM25 parameters.
func DefaultParams() Params {
	return Params{K1: 1.5, B: 0.75}
}

// space holds the posting lists and length statistics for one namespace.
// Statistics (N, df, average length) are per-namespace: each namespace is an
// independent BM25 collection, so a chunk's score does not shift when
// unrelated namespaces grow.
type space struct {
	docLen   map[string]int            // chunk ID -> term count
	postings map[string]map[string]int // term -> chunk ID -> term frequency
	totalLen int
}

func newSpace() *space {
	return &space{
		docLen:   make(map[string]int),
		postings: make(map[string]map[string]int),
	}
}

// Index is an immutable BM25 index over one corpus snapshot. Build a new
// Index and swap it in rather than mutating a live one.
type Index struct {
	params     Params
	analyzer   *Analyzer
	corpusHash string
	spaces     map[string]*space
}

// Build indexes every chunk of the snapshot under its namespace.
func Build(snap *corpus.Snapshot, params Params) *Index {
	if params.K1 <= 0 {
		params = DefaultParams()
	}
	ix := &Index{
		params:     params,
		analyzer:   NewAnalyzer(),
		corpusHash: snap.ContentHash,
		spaces:     make(map[string]*space),
	}

	for _, c := range snap.Chunks {
		sp, ok := ix.spaces[c.Namespace]
		if !ok {
			sp = newSpace()
			ix.spaces[c.Namespace] = sp
		}
		terms := ix.analyzer.Analyze(c.Text)
		sp.docLen[c.ID] = len(terms)
		sp.totalLen += len(terms)
		for _, term := range terms {
			tfs, ok := sp.postings[term]
			if !ok {
				tfs = make(map[string]int)
				sp.postings[term] = tfs
			}
			tfs[c.ID]++
		}
	}

	return ix
}

// CorpusHash returns the content hash of the snapshot this index was built from.
func (ix *Index) CorpusHash() string {
	return ix.corpusHash
}

// Params returns the BM25 parameters the index was built with.
func (ix *Index) Params() Params {
	return ix.params
}

// DocCount returns the number of indexed chunks across all namespaces.
func (ix *Index) DocCount() int {
	n := 0
	for _, sp := range ix.spaces {
		n += len(sp.docLen)
	}
	return n
}

// TermCount returns the number of distinct terms across all namespaces.
func (ix *Index) TermCount() int {
	n := 0
	for _, sp := range ix.spaces {
		n += len(sp.postings)
	}
	return n
}

// Search scores the query against the chunks of the given namespaces and
// returns up to limit results, best first. Ties on score break by chunk ID
// so repeated searches over the same index return identical lists. A query
// that normalizes to no terms returns an empty list. limit <= 0 means no cap.
func (ix *Index) Search(query string, namespaces []string, limit int) []search.RankedResult {
	terms := ix.analyzer.Analyze(query)
	if len(terms) == 0 {
		return nil
	}

	scores := make(map[string]float64)
	for _, name := range namespaces {
		sp, ok := ix.spaces[name]
		if !ok || len(sp.docLen) == 0 {
			continue
		}
		sp.score(terms, ix.params, scores)
	}
	if len(scores) == 0 {
		return nil
	}

	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	results := make([]search.RankedResult, len(ids))
	for i, id := range ids {
		results[i] = search.RankedResult{
			ChunkID: id,
			Score:   scores[id],
			Rank:    i + 1,
			Source:  search.SourceLexical,
		}
	}
	return results
}

// score accumulates BM25 contributions for every query term into scores.
func (sp *space) score(terms []string, p Params, scores map[string]float64) {
	n := float64(len(sp.docLen))
	avgLen := float64(sp.totalLen) / n

	for _, term := range terms {
		tfs, ok := sp.postings[term]
		if !ok {
			continue
		}
		df := float64(len(tfs))
		// Nonnegative IDF variant; plain Robertson IDF goes negative for
		// terms in more than half the collection.
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for id, tf := range tfs {
			f := float64(tf)
			norm := 1 - p.B + p.B*float64(sp.docLen[id])/avgLen
			scores[id] += idf * f * (p.K1 + 1) / (f + p.K1*norm)
		}
	}
}
