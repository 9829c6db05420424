package resolver

import (
	"context"
	"os"
	"testing"

	"github.com/kaizhangyahoo/st-my-investment/src/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func TestExactMatch(t *testing.T) {
	table := map[string]string{
		"Apple Inc":      "AAPL",
		"Morgan Stanley": "MS",
	}

	tests := []struct {
		name       string
		input      string
		wantTicker string
		wantHit    bool
	}{
		{name: "exact", input: "Apple Inc", wantTicker: "AAPL", wantHit: true},
		{name: "case insensitive", input: "APPLE INC", wantTicker: "AAPL", wantHit: true},
		{name: "parenthetical suffix stripped", input: "Morgan Stanley (All Sessions)", wantTicker: "MS", wantHit: true},
		{name: "surrounding whitespace absorbed", input: "  Apple Inc  ", wantTicker: "AAPL", wantHit: true},
		{name: "miss", input: "Xyz Totally Unrelated Co", wantHit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, unresolved := ExactMatch([]string{tt.input}, table)
			if tt.wantHit {
				assert.Equal(t, tt.wantTicker, resolved[tt.input])
				assert.Empty(t, unresolved)
			} else {
				assert.Empty(t, resolved)
				assert.Equal(t, []string{tt.input}, unresolved)
			}
		})
	}
}

func TestExactMatch_PartitionsInput(t *testing.T) {
	table := map[string]string{"Apple Inc": "AAPL"}
	names := []string{"Apple Inc", "Nobody Knows This Co"}

	resolved, unresolved := ExactMatch(names, table)

	assert.Len(t, resolved, 1)
	assert.Len(t, unresolved, 1)
	assert.Equal(t, len(names), len(resolved)+len(unresolved), "no name lost or duplicated")
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("Apple", "Apple"))
	assert.Equal(t, 1.0, similarity("", ""))
	assert.InDelta(t, 0.928, similarity("Morgan Stanly", "Morgan Stanley"), 0.01)
	assert.Less(t, similarity("Apple", "Zebra"), 0.3)
}

func TestFuzzyMatch_ResolvesCloseMisspelling(t *testing.T) {
	table := map[string]string{
		"Morgan Stanley": "MS",
		"Apple Inc":      "AAPL",
	}

	resolved := FuzzyMatch(context.Background(), []string{"Morgan Stanly"}, table, 0.801, 4)

	require.Contains(t, resolved, "Morgan Stanly")
	assert.Equal(t, "MS", resolved["Morgan Stanly"])
}

func TestFuzzyMatch_BelowCutoffStaysUnresolved(t *testing.T) {
	table := map[string]string{"Morgan Stanley": "MS"}

	resolved := FuzzyMatch(context.Background(), []string{"Xyz Totally Unrelated Co"}, table, 0.801, 4)

	assert.Empty(t, resolved)
}

func TestFuzzyMatch_CutoffIsRespected(t *testing.T) {
	table := map[string]string{"Morgan Stanley": "MS"}
	name := "Morgan St" // similar, but not 0.8-similar

	strict := FuzzyMatch(context.Background(), []string{name}, table, 0.801, 4)
	loose := FuzzyMatch(context.Background(), []string{name}, table, 0.5, 4)

	assert.Empty(t, strict)
	assert.Contains(t, loose, name)
}

func TestFuzzyMatch_DeterministicTieBreak(t *testing.T) {
	// Two keys equally distant from the input: the first in sorted order
	// must win, every time.
	table := map[string]string{
		"Acme Corp A": "AAA",
		"Acme Corp B": "BBB",
	}

	for i := 0; i < 20; i++ {
		resolved := FuzzyMatch(context.Background(), []string{"Acme Corp X"}, table, 0.5, 4)
		require.Equal(t, "AAA", resolved["Acme Corp X"])
	}
}

func TestFuzzyMatch_EmptyInputs(t *testing.T) {
	assert.Empty(t, FuzzyMatch(context.Background(), nil, map[string]string{"A": "A"}, 0.8, 4))
	assert.Empty(t, FuzzyMatch(context.Background(), []string{"A"}, map[string]string{}, 0.8, 4))
}

func TestKeywordMatch(t *testing.T) {
	table := map[string]string{
		"Alphabet Inc":            "GOOGL",
		"Abbott Laboratories":     "ABT",
		"The Coca-Cola Company":   "KO",
		"Zebra Technologies Corp": "ZBRA",
	}

	tests := []struct {
		name       string
		input      string
		wantTicker string
		wantHit    bool
	}{
		{name: "first non-stopword token matches", input: "Alphabet Holdings", wantTicker: "GOOGL", wantHit: true},
		{name: "leading stopwords skipped", input: "The Zebra Inc", wantTicker: "ZBRA", wantHit: true},
		{name: "all stopwords", input: "The Inc Corp Ltd", wantHit: false},
		{name: "no key contains token", input: "Quasar Dynamics", wantHit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved := KeywordMatch([]string{tt.input}, table)
			if tt.wantHit {
				assert.Equal(t, tt.wantTicker, resolved[tt.input])
			} else {
				assert.Empty(t, resolved)
			}
		})
	}
}

func TestKeywordMatch_OnlyFirstQualifyingTokenTried(t *testing.T) {
	table := map[string]string{"Cola Bottling Co": "COKE"}

	// "Quasar" is the first non-stopword token; it misses, and the later
	// "Cola" token is never tried.
	resolved := KeywordMatch([]string{"Quasar Cola Group"}, table)

	assert.Empty(t, resolved)
}

func TestKeywordMatch_DeterministicFirstHit(t *testing.T) {
	table := map[string]string{
		"Acme Industrial": "ACIN",
		"Acme Mining":     "ACMN",
	}

	for i := 0; i < 20; i++ {
		resolved := KeywordMatch([]string{"Acme"}, table)
		require.Equal(t, "ACIN", resolved["Acme"], "sorted-key scan keeps first-hit stable")
	}
}

func TestNormalizeDisplayName(t *testing.T) {
	assert.Equal(t, "MORGAN STANLEY", normalizeDisplayName("Morgan Stanley (All Sessions)"))
	assert.Equal(t, "APPLE INC", normalizeDisplayName("  Apple Inc  "))
}
