// src/resolver/resolver.go
package resolver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kaizhangyahoo/st-my-investment/src/logger"
	"github.com/kaizhangyahoo/st-my-investment/src/mappings"
	"github.com/kaizhangyahoo/st-my-investment/src/models"
	"github.com/kaizhangyahoo/st-my-investment/src/reference"
	"github.com/patrickmn/go-cache"
)

// Stage names, in cascade order.
const (
	StageCache          = "cache"
	StageSECExact       = "sec_exact"
	StageShareListExact = "sharelist_exact"
	StageSECFuzzy       = "sec_fuzzy"
	StageShareListFuzzy = "sharelist_fuzzy"
	StageKeyword        = "keyword"
)

const (
	ckSECTable       = "table_sec"
	ckShareListTable = "table_sharelist"

	tableCacheExpiration      = 30 * time.Minute
	tableCacheCleanupInterval = time.Hour
)

// Options tunes the cascade. Zero values fall back to the calibrated
// defaults from the original mapping tool.
type Options struct {
	BulkCutoff     float64
	DocumentCutoff float64
	Workers        int
	DocumentView   reference.View
}

func (o Options) withDefaults() Options {
	if o.BulkCutoff <= 0 {
		o.BulkCutoff = 0.801
	}
	if o.DocumentCutoff <= 0 {
		o.DocumentCutoff = 0.667
	}
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.DocumentView == "" {
		o.DocumentView = reference.ViewSymbol
	}
	return o
}

// Resolver runs the ticker-resolution cascade: mapping cache, then exact,
// fuzzy and keyword matching against the SEC and share-list reference
// tables, each stage consuming the previous stage's unresolved remainder.
// It owns the merge into the mapping store; the matchers and adapters are
// stateless with respect to persistence.
type Resolver struct {
	store      *mappings.Store
	bulk       BulkSource
	document   DocumentSource
	opts       Options
	tableCache *cache.Cache
}

func NewResolver(store *mappings.Store, bulk BulkSource, document DocumentSource, opts Options) *Resolver {
	return &Resolver{
		store:      store,
		bulk:       bulk,
		document:   document,
		opts:       opts.withDefaults(),
		tableCache: cache.New(tableCacheExpiration, tableCacheCleanupInterval),
	}
}

type stage struct {
	name string
	run  func(ctx context.Context, names []string, warnings *[]string) map[string]string
}

// Resolve annotates the input records with tickers. It never fails outright:
// unreachable sources and persist errors degrade to warnings on the report,
// and whatever could not be resolved is returned as the unresolved residual.
// The only error returned is the context's own, when the caller cancels.
func (r *Resolver) Resolve(ctx context.Context, records []models.InstrumentRecord) (*models.ResolutionReport, error) {
	start := time.Now()
	var warnings []string

	cached, loadErr := r.store.Load()
	if loadErr != nil {
		warnings = append(warnings, fmt.Sprintf("mapping store unreadable, resolving against empty cache: %v", loadErr))
	}

	unresolved := collectNames(records)
	totalNames := len(unresolved)
	resolvedAll := make(map[string]string)
	var trail []models.ResolvedName

	logger.L.Info("Resolution run START", "records", len(records), "names", totalNames)

	stages := []stage{
		{StageCache, func(_ context.Context, names []string, _ *[]string) map[string]string {
			resolved := make(map[string]string)
			for _, name := range names {
				if ticker, ok := cached[name]; ok && ticker != "" {
					resolved[name] = ticker
				}
			}
			return resolved
		}},
		{StageSECExact, func(ctx context.Context, names []string, w *[]string) map[string]string {
			resolved, _ := ExactMatch(names, r.bulkTable(ctx, w))
			return resolved
		}},
		{StageShareListExact, func(_ context.Context, names []string, w *[]string) map[string]string {
			resolved, _ := ExactMatch(names, r.documentTable(w))
			return resolved
		}},
		{StageSECFuzzy, func(ctx context.Context, names []string, w *[]string) map[string]string {
			return FuzzyMatch(ctx, names, r.bulkTable(ctx, w), r.opts.BulkCutoff, r.opts.Workers)
		}},
		{StageShareListFuzzy, func(ctx context.Context, names []string, w *[]string) map[string]string {
			return FuzzyMatch(ctx, names, r.documentTable(w), r.opts.DocumentCutoff, r.opts.Workers)
		}},
		{StageKeyword, func(ctx context.Context, names []string, w *[]string) map[string]string {
			return KeywordMatch(names, r.bulkTable(ctx, w))
		}},
	}

	var outcomes []models.StageOutcome
	for _, st := range stages {
		if len(unresolved) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			warnings = append(warnings, fmt.Sprintf("resolution cancelled before stage %s: %v", st.name, err))
			report := r.buildReport(records, resolvedAll, unresolved, outcomes, trail, warnings, totalNames)
			return report, err
		}

		proposed := st.run(ctx, unresolved, &warnings)

		// A stage only ever sees still-unresolved names, but guard the
		// disjointness invariant anyway: first resolution wins.
		accepted := make(map[string]string)
		for name, ticker := range proposed {
			if ticker == "" {
				continue
			}
			if _, done := resolvedAll[name]; done {
				continue
			}
			accepted[name] = ticker
		}

		if len(accepted) > 0 {
			if st.name != StageCache {
				if err := r.store.MergeAndPersist(accepted); err != nil {
					warnings = append(warnings, fmt.Sprintf("persisting %d mappings after stage %s failed (results kept in memory, retry the run to store them): %v", len(accepted), st.name, err))
				}
			}
			for _, name := range sortedKeys(accepted) {
				resolvedAll[name] = accepted[name]
				trail = append(trail, models.ResolvedName{DisplayName: name, Ticker: accepted[name], Stage: st.name})
			}
			unresolved = subtract(unresolved, accepted)
		}

		outcomes = append(outcomes, models.StageOutcome{Stage: st.name, Resolved: len(accepted)})
		logger.L.Info("Resolution stage complete", "stage", st.name, "resolved", len(accepted), "remaining", len(unresolved))
	}

	report := r.buildReport(records, resolvedAll, unresolved, outcomes, trail, warnings, totalNames)
	logger.L.Info("Resolution run END",
		"names", totalNames, "resolved", report.ResolvedNames,
		"unresolved", len(report.Unresolved), "duration", time.Since(start))
	return report, nil
}

func (r *Resolver) buildReport(records []models.InstrumentRecord, resolved map[string]string, unresolved []string, outcomes []models.StageOutcome, trail []models.ResolvedName, warnings []string, totalNames int) *models.ResolutionReport {
	out := make([]models.InstrumentRecord, len(records))
	copy(out, records)
	for i := range out {
		if out[i].Ticker == "" {
			if ticker, ok := resolved[out[i].DisplayName]; ok {
				out[i].Ticker = ticker
			}
		}
	}

	enriched := make([]models.InstrumentRecord, 0, len(out))
	for _, rec := range out {
		if rec.Resolved() {
			enriched = append(enriched, rec)
		}
	}

	residual := make([]string, len(unresolved))
	copy(residual, unresolved)
	sort.Strings(residual)

	return &models.ResolutionReport{
		Records:         out,
		EnrichedRecords: enriched,
		Unresolved:      residual,
		Stages:          outcomes,
		Resolutions:     trail,
		Warnings:        warnings,
		TotalNames:      totalNames,
		ResolvedNames:   totalNames - len(residual),
	}
}

// bulkTable returns the SEC table, fetching it at most once per cache window.
// Failed fetches are not memoised so a later run can retry.
func (r *Resolver) bulkTable(ctx context.Context, warnings *[]string) map[string]string {
	if cached, found := r.tableCache.Get(ckSECTable); found {
		return cached.(reference.Table).Entries
	}
	table, err := r.bulk.Fetch(ctx)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("bulk reference unavailable: %v", err))
		return table.Entries
	}
	if !table.Empty() {
		r.tableCache.Set(ckSECTable, table, cache.DefaultExpiration)
	}
	return table.Entries
}

func (r *Resolver) documentTable(warnings *[]string) map[string]string {
	if cached, found := r.tableCache.Get(ckShareListTable); found {
		return cached.(reference.Table).Entries
	}
	table, err := r.document.Extract(r.opts.DocumentView)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("share-list reference unavailable: %v", err))
		return table.Entries
	}
	if table.LowConfidence {
		*warnings = append(*warnings, "share-list extraction yielded a low match rate; the document layout may have changed")
	}
	if !table.Empty() {
		r.tableCache.Set(ckShareListTable, table, cache.DefaultExpiration)
	}
	return table.Entries
}

// collectNames gathers the distinct display names of records that still need
// a ticker, sorted so stage inputs are deterministic.
func collectNames(records []models.InstrumentRecord) []string {
	seen := make(map[string]bool)
	var names []string
	for _, rec := range records {
		if rec.Resolved() || rec.DisplayName == "" || seen[rec.DisplayName] {
			continue
		}
		seen[rec.DisplayName] = true
		names = append(names, rec.DisplayName)
	}
	sort.Strings(names)
	return names
}

func subtract(names []string, resolved map[string]string) []string {
	remaining := names[:0:0]
	for _, name := range names {
		if _, ok := resolved[name]; !ok {
			remaining = append(remaining, name)
		}
	}
	return remaining
}
