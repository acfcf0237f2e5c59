// Package namespace selects which corpus namespaces a query should search.
// Selection is keyword overlap scoring against the namespace catalog; it
// runs before the ranking sources so both only touch relevant partitions.
package namespace

import (
	"sort"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohik-agnext/docker-chatbot/internal/corpus"
)

// Scoring weights. An exact word-boundary match of a catalog keyword is worth
// three points, a substring match one; namespaces whose name marks them as a
// policy partition get a small boost when the query itself says "policy".
const (
	exactMatchScore     = 3
	substringMatchScore = 1
	policyBoost         = 2
)

// Scored is one namespace with its overlap score, used by the explain path.
type Scored struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Config tunes the selector.
type Config struct {
	// MaxNamespaces caps how many namespaces one query may search.
	MaxNamespaces int
	// MinScore is the minimum score a namespace must reach to be selected.
	MinScore int
	// Defaults is the fallback set when nothing reaches MinScore. Empty
	// means fall back to the whole catalog.
	Defaults []string
	// MemoSize bounds the query -> selection memo (0 disables it).
	MemoSize int
}

// Selector scores namespaces against queries. Safe for concurrent use.
type Selector struct {
	catalog corpus.Catalog
	cfg     Config
	memo    *lru.Cache[string, []string]
}

// NewSelector builds a selector over the given catalog.
func NewSelector(catalog corpus.Catalog, cfg Config) *Selector {
	if cfg.MaxNamespaces <= 0 {
		cfg.MaxNamespaces = 3
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = 1
	}
	s := &Selector{catalog: catalog, cfg: cfg}
	if cfg.MemoSize > 0 {
		s.memo, _ = lru.New[string, []string](cfg.MemoSize)
	}
	return s
}

// Select returns the namespaces the query should search, in descending score
// order with catalog order breaking ties. When no namespace reaches the
// minimum score the configured defaults (or the whole catalog) are returned,
// so a vague query still searches something rather than nothing.
func (s *Selector) Select(query string) []string {
	normalized := normalize(query)
	if s.memo != nil {
		if cached, ok := s.memo.Get(normalized); ok {
			return cached
		}
	}

	selected := s.pick(normalized)
	if s.memo != nil {
		s.memo.Add(normalized, selected)
	}
	return selected
}

// Scores returns every namespace's score for the query, in the same order
// Select would consider them. Used by the stats and explain surfaces.
func (s *Selector) Scores(query string) []Scored {
	normalized := normalize(query)
	words := tokenize(normalized)

	out := make([]Scored, len(s.catalog))
	for i, ns := range s.catalog {
		out[i] = Scored{Name: ns.Name, Score: s.score(ns, normalized, words)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (s *Selector) pick(normalized string) []string {
	words := tokenize(normalized)

	type candidate struct {
		name  string
		score int
		pos   int
	}
	var candidates []candidate
	for pos, ns := range s.catalog {
		score := s.score(ns, normalized, words)
		if score >= s.cfg.MinScore {
			candidates = append(candidates, candidate{name: ns.Name, score: score, pos: pos})
		}
	}

	if len(candidates) == 0 {
		if len(s.cfg.Defaults) > 0 {
			return capNames(s.cfg.Defaults, s.cfg.MaxNamespaces)
		}
		return capNames(s.catalog.Names(), s.cfg.MaxNamespaces)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].pos < candidates[j].pos
	})

	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.name)
	}
	return capNames(names, s.cfg.MaxNamespaces)
}

// score computes the weighted keyword overlap between the query and one
// namespace's catalog entry.
func (s *Selector) score(ns corpus.Namespace, normalized string, words []string) int {
	score := 0
	for _, kw := range ns.Keywords {
		kwNorm := normalize(kw)
		if kwNorm == "" {
			continue
		}
		switch {
		case containsPhrase(words, tokenize(kwNorm)):
			score += exactMatchScore
		case strings.Contains(normalized, kwNorm):
			score += substringMatchScore
		}
	}
	if score > 0 && strings.Contains(ns.Name, "policy") && containsPhrase(words, []string{"policy"}) {
		score += policyBoost
	}
	return score
}

func capNames(names []string, max int) []string {
	if len(names) <= max {
		out := make([]string, len(names))
		copy(out, names)
		return out
	}
	out := make([]string, max)
	copy(out, names[:max])
	return out
}

func normalize(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsPhrase reports whether phrase occurs as a consecutive word
// sequence in words.
func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(words) {
		return false
	}
outer:
	for i := 0; i+len(phrase) <= len(words); i++ {
		for j, p := range phrase {
			if words[i+j] != p {
				continue outer
			}
		}
		return true
	}
	return false
}
