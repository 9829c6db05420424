// src/resolver/matchers.go
package resolver

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/kaizhangyahoo/st-my-investment/src/logger"
	"golang.org/x/sync/errgroup"
)

// parentheticalRe strips trailing qualifiers like "(All Sessions)" that
// trade-history exports append to instrument names.
var parentheticalRe = regexp.MustCompile(`\(.*\)`)

// Generic corporate suffixes that carry no identifying signal. Compared
// case-insensitively; entries must be lower case.
var stopwords = map[string]bool{
	"the": true, "inc": true, "corp": true, "ltd": true, "limited": true,
	"co": true, "corporation": true, "company": true, "plc": true,
	"group": true, "lp": true, "holdings": true, "trust": true,
	"laboratories": true,
}

// normalizeDisplayName produces the secondary lookup form of a display name:
// parenthetical suffixes removed, surrounding whitespace stripped, upper-cased.
func normalizeDisplayName(name string) string {
	return strings.ToUpper(strings.TrimSpace(parentheticalRe.ReplaceAllString(name, "")))
}

// sortedKeys gives matchers a stable scan order; "first match wins" must mean
// the same match on every run.
func sortedKeys(entries map[string]string) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ExactMatch resolves names by case-insensitive equality against the table
// keys, trying the raw upper-cased name first and the normalized form second.
// Resolved pairs are keyed by the original display name.
func ExactMatch(names []string, entries map[string]string) (map[string]string, []string) {
	upper := make(map[string]string, len(entries))
	for _, key := range sortedKeys(entries) {
		upper[strings.ToUpper(key)] = entries[key]
	}

	resolved := make(map[string]string)
	var unresolved []string
	for _, name := range names {
		if ticker, ok := upper[strings.ToUpper(name)]; ok {
			resolved[name] = ticker
			continue
		}
		if ticker, ok := upper[normalizeDisplayName(name)]; ok {
			resolved[name] = ticker
			continue
		}
		unresolved = append(unresolved, name)
	}
	return resolved, unresolved
}

// similarity is the ratio used for close matching: 1 - editDistance/maxLen.
// It stands in for difflib's SequenceMatcher ratio from the tool this store
// format is shared with; the cutoffs are calibrated against it.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

// FuzzyMatch resolves each name to the best-scoring table key at or above
// cutoff. Ties break to the first key in sorted order; ambiguity is logged,
// not surfaced. Scoring across names fans out over at most workers goroutines.
func FuzzyMatch(ctx context.Context, names []string, entries map[string]string, cutoff float64, workers int) map[string]string {
	resolved := make(map[string]string)
	if len(names) == 0 || len(entries) == 0 {
		return resolved
	}
	if workers < 1 {
		workers = 1
	}

	keys := sortedKeys(entries)

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, name := range names {
		name := name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			bestKey := ""
			bestScore := 0.0
			runnerUp := 0.0
			for _, key := range keys {
				score := similarity(name, key)
				if score > bestScore {
					runnerUp = bestScore
					bestScore = score
					bestKey = key
				} else if score > runnerUp {
					runnerUp = score
				}
			}

			if bestKey == "" || bestScore < cutoff {
				return nil
			}
			if runnerUp >= cutoff && bestScore-runnerUp < 0.01 {
				logger.L.Debug("Ambiguous fuzzy match, keeping first-ranked candidate",
					"name", name, "candidate", bestKey, "score", bestScore, "runnerUpScore", runnerUp)
			}

			mu.Lock()
			resolved[name] = entries[bestKey]
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.L.Warn("Fuzzy matching interrupted", "error", err)
	}
	return resolved
}

// KeywordMatch resolves names by token overlap: the first non-stopword token
// of each name is searched as a case-insensitive substring of the table keys,
// and the first key containing it wins. Only that one token is tried per
// name; the imprecision is accepted, same as the fuzzy tie-break.
func KeywordMatch(names []string, entries map[string]string) map[string]string {
	resolved := make(map[string]string)
	if len(entries) == 0 {
		return resolved
	}

	keys := sortedKeys(entries)
	lowerKeys := make([]string, len(keys))
	for i, key := range keys {
		lowerKeys[i] = strings.ToLower(key)
	}

	for _, name := range names {
		for _, token := range strings.Fields(name) {
			token = strings.ToLower(token)
			if stopwords[token] {
				continue
			}
			for i, lowerKey := range lowerKeys {
				if strings.Contains(lowerKey, token) {
					resolved[name] = entries[keys[i]]
					break
				}
			}
			break // only the first qualifying token per name
		}
	}
	return resolved
}
