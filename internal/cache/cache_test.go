package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetSet(t *testing.T) {
	c := New[string](4, time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("k", "v")
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 0.5, c.HitRate())
}

func TestCacheTTLExpiry(t *testing.T) {
	c := New[int](4, 20*time.Millisecond)

	c.Set("k", 42)
	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry should expire after the TTL")
}

func TestCacheCapacityEvictsLRU(t *testing.T) {
	c := New[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a") // refresh a
	c.Set("c", 3)     // evicts b

	_, ok := c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCachePurge(t *testing.T) {
	c := New[int](4, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	require.Equal(t, 2, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestKeyNormalization(t *testing.T) {
	base := KeyInputs{
		Query:         "What is the liquor license fee?",
		Namespaces:    []string{"excise_policy", "ev_policy"},
		TopK:          5,
		RRFConstant:   60,
		LexicalWeight: 1,
		VectorWeight:  1,
		CorpusHash:    "abc123",
	}

	// Case and whitespace variants collapse onto one key.
	variant := base
	variant.Query = "  what IS the   liquor license fee? "
	assert.Equal(t, Key(base), Key(variant))

	// Namespace order does not matter.
	variant = base
	variant.Namespaces = []string{"ev_policy", "excise_policy"}
	assert.Equal(t, Key(base), Key(variant))
}

func TestKeySensitivity(t *testing.T) {
	base := KeyInputs{
		Query:       "liquor license fee",
		Namespaces:  []string{"excise_policy"},
		TopK:        5,
		RRFConstant: 60,
		CorpusHash:  "abc123",
	}

	cases := map[string]KeyInputs{
		"query":      {Query: "liquor license", Namespaces: base.Namespaces, TopK: 5, RRFConstant: 60, CorpusHash: base.CorpusHash},
		"namespaces": {Query: base.Query, Namespaces: []string{"ev_policy"}, TopK: 5, RRFConstant: 60, CorpusHash: base.CorpusHash},
		"topk":       {Query: base.Query, Namespaces: base.Namespaces, TopK: 10, RRFConstant: 60, CorpusHash: base.CorpusHash},
		"rrf":        {Query: base.Query, Namespaces: base.Namespaces, TopK: 5, RRFConstant: 10, CorpusHash: base.CorpusHash},
		"corpus":     {Query: base.Query, Namespaces: base.Namespaces, TopK: 5, RRFConstant: 60, CorpusHash: "other"},
	}
	for name, in := range cases {
		assert.NotEqual(t, Key(base), Key(in), "changing %s must change the key", name)
	}
}
