package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohik-agnext/docker-chatbot/internal/corpus"
)

func testCatalog() corpus.Catalog {
	return corpus.Catalog{
		{Name: "excise_policy", Keywords: []string{"liquor", "license", "vend", "excise"}},
		{Name: "ev_policy", Keywords: []string{"electric vehicle", "ev", "charging", "rebate"}},
		{Name: "industrial_policy", Keywords: []string{"industry", "subsidy", "manufacturing"}},
	}
}

func TestSelectExactKeyword(t *testing.T) {
	s := NewSelector(testCatalog(), Config{MaxNamespaces: 3, MinScore: 1})

	got := s.Select("What is the liquor license fee?")
	require.NotEmpty(t, got)
	assert.Equal(t, "excise_policy", got[0])
	assert.NotContains(t, got, "ev_policy")
	assert.NotContains(t, got, "industrial_policy")
}

func TestSelectPhraseKeyword(t *testing.T) {
	s := NewSelector(testCatalog(), Config{MaxNamespaces: 3, MinScore: 1})

	got := s.Select("subsidy for electric vehicle buyers")
	require.NotEmpty(t, got)
	// "electric vehicle" is an exact phrase match (3) vs "subsidy" (3):
	// equal scores fall back to catalog order, so ev_policy comes first.
	assert.Equal(t, []string{"ev_policy", "industrial_policy"}, got)
}

func TestSelectFallbackToDefaults(t *testing.T) {
	s := NewSelector(testCatalog(), Config{
		MaxNamespaces: 3,
		MinScore:      1,
		Defaults:      []string{"excise_policy"},
	})

	got := s.Select("completely unrelated question about weather")
	assert.Equal(t, []string{"excise_policy"}, got)
}

func TestSelectFallbackToCatalog(t *testing.T) {
	s := NewSelector(testCatalog(), Config{MaxNamespaces: 2, MinScore: 1})

	got := s.Select("completely unrelated question about weather")
	// No defaults configured: the whole catalog, capped, in catalog order.
	assert.Equal(t, []string{"excise_policy", "ev_policy"}, got)
}

func TestSelectCapsNamespaces(t *testing.T) {
	s := NewSelector(testCatalog(), Config{MaxNamespaces: 1, MinScore: 1})

	got := s.Select("liquor license and electric vehicle subsidy")
	assert.Len(t, got, 1)
}

func TestSelectPolicyBoost(t *testing.T) {
	s := NewSelector(testCatalog(), Config{MaxNamespaces: 3, MinScore: 1})

	plain := s.Scores("ev charging")
	boosted := s.Scores("ev charging policy")

	scoreOf := func(scores []Scored, name string) int {
		for _, sc := range scores {
			if sc.Name == name {
				return sc.Score
			}
		}
		return -1
	}
	assert.Equal(t, scoreOf(plain, "ev_policy")+policyBoost, scoreOf(boosted, "ev_policy"))
	// No keyword overlap means no boost either.
	assert.Zero(t, scoreOf(boosted, "industrial_policy"))
}

func TestSelectDeterministic(t *testing.T) {
	s := NewSelector(testCatalog(), Config{MaxNamespaces: 3, MinScore: 1})
	first := s.Select("liquor license subsidy")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Select("liquor license subsidy"))
	}
}

func TestSelectMemoization(t *testing.T) {
	s := NewSelector(testCatalog(), Config{MaxNamespaces: 3, MinScore: 1, MemoSize: 16})

	first := s.Select("Liquor License")
	// Case and whitespace variants normalize to the same memo entry.
	second := s.Select("  liquor license ")
	assert.Equal(t, first, second)
}

func TestSelectEmptyQuery(t *testing.T) {
	s := NewSelector(testCatalog(), Config{MaxNamespaces: 2, MinScore: 1})
	got := s.Select("")
	assert.Equal(t, []string{"excise_policy", "ev_policy"}, got)
}
