// Package lexical implements the keyword ranking source: a BM25 index over
// the corpus chunks with namespace-scoped posting lists and a durable on-disk
// artifact keyed by corpus content hash.
package lexical

import (
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	"github.com/blevesearch/bleve/v2/analysis/token/stop"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
)

// Analyzer normalizes query and chunk text into index terms. Both sides of
// the index go through the same pipeline so terms agree exactly:
// unicode word segmentation, lowercasing, English stop word removal, and
// Porter stemming ("licenses" and "licensing" land on the same term).
type Analyzer struct {
	pipeline *analysis.DefaultAnalyzer
}

// NewAnalyzer builds the shared analysis pipeline.
func NewAnalyzer() *Analyzer {
	stopMap := analysis.NewTokenMap()
	_ = stopMap.LoadBytes(en.EnglishStopWords)

	return &Analyzer{
		pipeline: &analysis.DefaultAnalyzer{
			Tokenizer: unicode.NewUnicodeTokenizer(),
			TokenFilters: []analysis.TokenFilter{
				lowercase.NewLowerCaseFilter(),
				stop.NewStopTokensFilter(stopMap),
				porter.NewPorterStemmer(),
			},
		},
	}
}

// Analyze returns the normalized terms of text, in order. A query made
// entirely of stop words (or empty text) yields no terms.
func (a *Analyzer) Analyze(text string) []string {
	if text == "" {
		return nil
	}
	stream := a.pipeline.Analyze([]byte(text))
	terms := make([]string, 0, len(stream))
	for _, tok := range stream {
		terms = append(terms, string(tok.Term))
	}
	return terms
}
