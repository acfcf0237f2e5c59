package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// StaticDimensions is the vector size of the static embedder.
const StaticDimensions = 256

// StaticEmbedder is a deterministic, offline embedder. It hashes word
// unigrams and bigrams into a fixed-size vector and L2-normalizes it. The
// vectors carry no learned semantics, but identical and near-identical texts
// land close together, which is enough for development, tests, and the
// degraded mode where no embedding service is configured.
type StaticEmbedder struct {
	dims int
}

// NewStaticEmbedder creates a static embedder. dims <= 0 selects the default.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = StaticDimensions
	}
	return &StaticEmbedder{dims: dims}
}

func (s *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, s.dims)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		s.bump(vec, w, 1.0)
		if i > 0 {
			s.bump(vec, words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// bump adds weight to the hashed bucket for the feature, with a second hash
// choosing the sign so collisions partially cancel instead of piling up.
func (s *StaticEmbedder) bump(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(s.dims))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func (s *StaticEmbedder) Dimensions() int { return s.dims }

func (s *StaticEmbedder) ModelName() string { return "static-hash" }

func (s *StaticEmbedder) Available(_ context.Context) bool { return true }

func (s *StaticEmbedder) Close() error { return nil }

var _ Embedder = (*StaticEmbedder)(nil)
