package analyze

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reg-scraper/pkg/config"
	"reg-scraper/pkg/models"
)

func aggregateFixture(n int) []models.RegulationRecord {
	records := make([]models.RegulationRecord, n)
	for i := range records {
		records[i] = models.RegulationRecord{
			URL:            "https://www.law.cornell.edu/regulations/new-york/10-NYCRR-405." + string(rune('1'+i)),
			Title:          "Section 405." + string(rune('1'+i)),
			CleanedContent: "The operator shall comply with all applicable requirements.",
			URLType:        models.LinkTypeRegulation,
			SourceIndex:    i,
		}
	}
	return records
}

func newTestRunner(t *testing.T, model Model, store *ResultStore, csvPath string) *Runner {
	t.Helper()
	analyzer, err := NewAnalyzer(model, "test-model", 0, testLogger())
	require.NoError(t, err)
	cfg := config.AnalysisConfig{
		BatchSize:     2,
		Concurrency:   2,
		CSVFlushEvery: 1,
		CSVFile:       csvPath,
	}
	return NewRunner(analyzer, store, cfg, testLogger())
}

func TestRunner_AnalyzesAggregateOnce(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenResultStore(filepath.Join(dir, "analysis-db"), testLogger())
	require.NoError(t, err)
	defer store.Close()
	csvPath := filepath.Join(dir, "analysis.csv")

	model := &fakeModel{response: `{"red_flags": ["zero_risk_language"], "specific_text_examples": ["zero tolerance"], "severity_score": 9}`}
	runner := newTestRunner(t, model, store, csvPath)

	summary, err := runner.Run(context.Background(), aggregateFixture(3))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Analyzed)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 3, model.callCount())

	rows := readCSV(t, csvPath)
	assert.Len(t, rows, 4, "header plus one row per verdict")

	// A second run finds every verdict stored and never calls the model.
	again := &fakeModel{response: `{"red_flags": [], "specific_text_examples": [], "severity_score": 0}`}
	summary, err = newTestRunner(t, again, store, csvPath).Run(context.Background(), aggregateFixture(3))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Skipped)
	assert.Equal(t, 0, summary.Analyzed)
	assert.Equal(t, 0, again.callCount())
}

func TestRunner_FailuresStoreNothingAndRetry(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenResultStore(filepath.Join(dir, "analysis-db"), testLogger())
	require.NoError(t, err)
	defer store.Close()
	csvPath := filepath.Join(dir, "analysis.csv")

	broken := &fakeModel{err: errors.New("rate limited")}
	summary, err := newTestRunner(t, broken, store, csvPath).Run(context.Background(), aggregateFixture(3))
	require.NoError(t, err, "per-record failures do not abort the run")
	assert.Equal(t, 3, summary.Failed)
	assert.Equal(t, 0, summary.Analyzed)

	all, err := store.All()
	require.NoError(t, err)
	assert.Empty(t, all, "a failed analysis stores nothing")

	// The next run retries every record.
	fixed := &fakeModel{response: `{"red_flags": [], "specific_text_examples": [], "severity_score": 1}`}
	summary, err = newTestRunner(t, fixed, store, csvPath).Run(context.Background(), aggregateFixture(3))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Analyzed)
	assert.Equal(t, 3, fixed.callCount())
}

func TestRunner_LimitBoundsTheRun(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenResultStore(filepath.Join(dir, "analysis-db"), testLogger())
	require.NoError(t, err)
	defer store.Close()

	model := &fakeModel{response: `{"red_flags": [], "specific_text_examples": [], "severity_score": 0}`}
	analyzer, err := NewAnalyzer(model, "test-model", 0, testLogger())
	require.NoError(t, err)
	runner := NewRunner(analyzer, store, config.AnalysisConfig{
		BatchSize:     10,
		CSVFlushEvery: 5,
		CSVFile:       filepath.Join(dir, "analysis.csv"),
		Limit:         2,
	}, testLogger())

	summary, err := runner.Run(context.Background(), aggregateFixture(5))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Analyzed)

	all, err := store.All()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRunner_CancelledContextAborts(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenResultStore(filepath.Join(dir, "analysis-db"), testLogger())
	require.NoError(t, err)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model := &fakeModel{response: `{"red_flags": [], "specific_text_examples": [], "severity_score": 0}`}
	_, err = newTestRunner(t, model, store, filepath.Join(dir, "analysis.csv")).Run(ctx, aggregateFixture(3))
	assert.ErrorIs(t, err, context.Canceled)
}
