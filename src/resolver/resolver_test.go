package resolver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kaizhangyahoo/st-my-investment/src/mappings"
	"github.com/kaizhangyahoo/st-my-investment/src/models"
	"github.com/kaizhangyahoo/st-my-investment/src/reference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBulk struct {
	table reference.Table
	err   error
	calls int
}

func (s *stubBulk) Fetch(ctx context.Context) (reference.Table, error) {
	s.calls++
	return s.table, s.err
}

type stubDocument struct {
	table reference.Table
	err   error
	calls int
	view  reference.View
}

func (s *stubDocument) Extract(view reference.View) (reference.Table, error) {
	s.calls++
	s.view = view
	return s.table, s.err
}

func bulkTableStub(entries map[string]string) *stubBulk {
	return &stubBulk{table: reference.Table{Entries: entries, Source: "sec"}}
}

func documentTableStub(entries map[string]string) *stubDocument {
	return &stubDocument{table: reference.Table{Entries: entries, Source: "sharelist"}}
}

func recordsFor(names ...string) []models.InstrumentRecord {
	records := make([]models.InstrumentRecord, 0, len(names))
	for _, name := range names {
		records = append(records, models.InstrumentRecord{Source: "test", DisplayName: name})
	}
	return records
}

func stageResolved(report *models.ResolutionReport) map[string]int {
	out := make(map[string]int)
	for _, stage := range report.Stages {
		out[stage.Stage] = stage.Resolved
	}
	return out
}

func TestResolve_FullCascade(t *testing.T) {
	storeFile := filepath.Join(t.TempDir(), "mappings.json")
	store := mappings.NewStore(storeFile)
	require.NoError(t, store.MergeAndPersist(map[string]string{"Cached Co": "CCH"}))

	bulk := bulkTableStub(map[string]string{
		"Apple Inc":      "AAPL",
		"Morgan Stanley": "MS",
		"Alphabet Inc":   "GOOGL",
	})
	document := documentTableStub(map[string]string{
		"Factset Research Systems": "FDS",
		"Unique Doc Name":          "UDN",
	})

	res := NewResolver(store, bulk, document, Options{})
	records := recordsFor(
		"Cached Co",                // cache
		"Apple Inc",                // sec exact
		"Factset Research Systems", // sharelist exact
		"Morgan Stanly",            // sec fuzzy (misspelled)
		"Unique Doc Nam",           // sharelist fuzzy (truncated)
		"Alphabet Holdings Xx",     // keyword
		"Nobody Knows This Xq",     // unresolved residual
	)

	report, err := res.Resolve(context.Background(), records)
	require.NoError(t, err)

	wantTickers := map[string]string{
		"Cached Co":                "CCH",
		"Apple Inc":                "AAPL",
		"Factset Research Systems": "FDS",
		"Morgan Stanly":            "MS",
		"Unique Doc Nam":           "UDN",
		"Alphabet Holdings Xx":     "GOOGL",
	}
	for _, rec := range report.Records {
		assert.Equal(t, wantTickers[rec.DisplayName], rec.Ticker, "record %q", rec.DisplayName)
	}

	assert.Equal(t, []string{"Nobody Knows This Xq"}, report.Unresolved)
	assert.Equal(t, 7, report.TotalNames)
	assert.Equal(t, 6, report.ResolvedNames)
	assert.Len(t, report.EnrichedRecords, 6)

	byStage := stageResolved(report)
	assert.Equal(t, 1, byStage[StageCache])
	assert.Equal(t, 1, byStage[StageSECExact])
	assert.Equal(t, 1, byStage[StageShareListExact])
	assert.Equal(t, 1, byStage[StageSECFuzzy])
	assert.Equal(t, 1, byStage[StageShareListFuzzy])
	assert.Equal(t, 1, byStage[StageKeyword])

	// Confirmed mappings from this run are durable for the next one.
	reloaded, err := mappings.NewStore(storeFile).Load()
	require.NoError(t, err)
	for name, ticker := range wantTickers {
		assert.Equal(t, ticker, reloaded[name])
	}

	// Both sources were consulted exactly once despite serving two stages each.
	assert.Equal(t, 1, bulk.calls)
	assert.Equal(t, 1, document.calls)
	assert.Equal(t, reference.ViewSymbol, document.view)
}

func TestResolve_MonotonicNarrowingAndDisjointStages(t *testing.T) {
	store := mappings.NewStore(filepath.Join(t.TempDir(), "mappings.json"))
	bulk := bulkTableStub(map[string]string{"Apple Inc": "AAPL"})
	document := documentTableStub(map[string]string{"Factset Research Systems": "FDS"})

	res := NewResolver(store, bulk, document, Options{})
	report, err := res.Resolve(context.Background(), recordsFor("Apple Inc", "Factset Research Systems", "Zq Unknown"))
	require.NoError(t, err)

	total := 0
	for _, stage := range report.Stages {
		assert.GreaterOrEqual(t, stage.Resolved, 0)
		total += stage.Resolved
	}
	assert.Equal(t, report.ResolvedNames, total, "stage totals add up: no name resolved twice")

	seen := make(map[string]bool)
	for _, res := range report.Resolutions {
		assert.False(t, seen[res.DisplayName], "name %q resolved by more than one stage", res.DisplayName)
		seen[res.DisplayName] = true
	}
}

func TestResolve_ShortCircuitsOnFullyCachedInput(t *testing.T) {
	storeFile := filepath.Join(t.TempDir(), "mappings.json")
	store := mappings.NewStore(storeFile)
	require.NoError(t, store.MergeAndPersist(map[string]string{
		"Apple Inc":      "AAPL",
		"Morgan Stanley": "MS",
	}))

	bulk := bulkTableStub(map[string]string{"Apple Inc": "AAPL"})
	document := documentTableStub(nil)
	res := NewResolver(store, bulk, document, Options{})

	first, err := res.Resolve(context.Background(), recordsFor("Apple Inc", "Morgan Stanley"))
	require.NoError(t, err)
	second, err := res.Resolve(context.Background(), recordsFor("Apple Inc", "Morgan Stanley"))
	require.NoError(t, err)

	// Zero network/document work when the cache already covers everything.
	assert.Equal(t, 0, bulk.calls)
	assert.Equal(t, 0, document.calls)

	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, first.Unresolved, second.Unresolved)
	assert.Len(t, first.Stages, 1, "cascade stops after the cache stage")
}

func TestResolve_AllSourcesUnavailable(t *testing.T) {
	store := mappings.NewStore(filepath.Join(t.TempDir(), "mappings.json"))
	bulk := &stubBulk{table: reference.Table{Entries: map[string]string{}}, err: assert.AnError}
	document := &stubDocument{table: reference.Table{Entries: map[string]string{}}, err: assert.AnError}

	res := NewResolver(store, bulk, document, Options{})
	report, err := res.Resolve(context.Background(), recordsFor("Apple Inc", "Morgan Stanley"))

	require.NoError(t, err, "unreachable sources degrade, they never abort the run")
	assert.Equal(t, []string{"Apple Inc", "Morgan Stanley"}, report.Unresolved)
	assert.Empty(t, report.EnrichedRecords)
	assert.NotEmpty(t, report.Warnings)
}

func TestResolve_PreResolvedRecordsBypassCascade(t *testing.T) {
	store := mappings.NewStore(filepath.Join(t.TempDir(), "mappings.json"))
	bulk := bulkTableStub(map[string]string{})
	document := documentTableStub(nil)
	res := NewResolver(store, bulk, document, Options{})

	records := []models.InstrumentRecord{
		{Source: "test", DisplayName: "Already Done Co", Ticker: "ADC"},
	}
	report, err := res.Resolve(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 0, report.TotalNames)
	assert.Equal(t, "ADC", report.Records[0].Ticker)
	assert.Len(t, report.EnrichedRecords, 1)
	assert.Equal(t, 0, bulk.calls)
}

func TestResolve_LowConfidenceDocumentFlagged(t *testing.T) {
	store := mappings.NewStore(filepath.Join(t.TempDir(), "mappings.json"))
	bulk := bulkTableStub(map[string]string{})
	document := &stubDocument{table: reference.Table{Entries: map[string]string{}, LowConfidence: true}}

	res := NewResolver(store, bulk, document, Options{})
	report, err := res.Resolve(context.Background(), recordsFor("Some Name"))
	require.NoError(t, err)

	found := false
	for _, warning := range report.Warnings {
		if warning == "share-list extraction yielded a low match rate; the document layout may have changed" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestResolve_PersistFailureIsWarningNotError(t *testing.T) {
	// Point the store at a directory: loading and persisting both fail, but
	// resolution must still return its in-memory results.
	store := mappings.NewStore(t.TempDir())
	bulk := bulkTableStub(map[string]string{"Apple Inc": "AAPL"})
	document := documentTableStub(nil)

	res := NewResolver(store, bulk, document, Options{})
	report, err := res.Resolve(context.Background(), recordsFor("Apple Inc"))

	require.NoError(t, err)
	assert.Equal(t, "AAPL", report.Records[0].Ticker)
	assert.NotEmpty(t, report.Warnings)
}

func TestResolve_CancelledContext(t *testing.T) {
	store := mappings.NewStore(filepath.Join(t.TempDir(), "mappings.json"))
	bulk := bulkTableStub(map[string]string{"Apple Inc": "AAPL"})
	document := documentTableStub(nil)
	res := NewResolver(store, bulk, document, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := res.Resolve(ctx, recordsFor("Apple Inc"))

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report, "a partial report still comes back")
	assert.Equal(t, []string{"Apple Inc"}, report.Unresolved)
}
