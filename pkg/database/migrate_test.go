package database

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reg-scraper/pkg/config"
	"reg-scraper/pkg/models"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "regulations.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testMigrateConfig() config.MigrateConfig {
	return config.MigrateConfig{
		State:       "NY",
		DocType:     "regulation",
		CommitBatch: 2,
	}
}

func docFixture(i int, url, content string) models.RegulationRecord {
	return models.RegulationRecord{
		URL:            url,
		Title:          "Section " + url[len(url)-5:],
		CleanedContent: content,
		URLType:        models.LinkTypeSection,
		SourceIndex:    i,
	}
}

func verdictFor(record models.RegulationRecord, severity int, flags ...models.RedFlagType) models.AnalysisRecord {
	if flags == nil {
		flags = []models.RedFlagType{}
	}
	return models.AnalysisRecord{
		SourceIndex: record.SourceIndex,
		URL:         record.URL,
		Title:       record.Title,
		URLType:     record.URLType,
		Content:     record.CleanedContent,
		Analysis: models.RegulationAnalysis{
			RedFlags:             flags,
			SpecificTextExamples: []string{"shall submit in writing"},
			SeverityScore:        severity,
		},
		Model:      "gpt-4o-mini",
		AnalyzedAt: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
	}
}

func countRows(t *testing.T, db *DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestOpen_SchemaIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regulations.db")

	db, err := Open(path, testLogger())
	require.NoError(t, err)

	var tables []string
	rows, err := db.db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	require.NoError(t, err)
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		tables = append(tables, name)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, db.Close())

	assert.Subset(t, tables, []string{"regulatory_documents", "analyses", "red_flags", "statute_references"})

	// Reopening an existing database must not fail on CREATE statements.
	db, err = Open(path, testLogger())
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestMigrate_WritesDocumentsAnalysesAndFlags(t *testing.T) {
	db := openTestDB(t)

	records := []models.RegulationRecord{
		docFixture(0, "https://regs.example.com/regs/10-NYCRR-405.4",
			"Hospitals shall comply with 42 U.S.C. § 1396 and 21 C.F.R. Part 820."),
		docFixture(1, "https://regs.example.com/regs/400.1", "Applicants shall submit in writing."),
		docFixture(2, "https://regs.example.com/regs/400.2", "No deviation is permitted."),
	}
	verdicts := []models.AnalysisRecord{
		verdictFor(records[0], 8, models.RedFlagRedundantHardDocumentation, models.RedFlagZeroRiskLanguage),
		verdictFor(records[1], 0),
	}

	summary, err := db.Migrate(context.Background(), records, verdicts, testMigrateConfig())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Documents)
	assert.Equal(t, 2, summary.Analyses)
	assert.Equal(t, 2, summary.RedFlagRows)
	assert.Equal(t, 1, summary.StatuteRows)
	assert.Equal(t, 0, summary.Skipped)

	assert.Equal(t, 3, countRows(t, db, "regulatory_documents"))
	assert.Equal(t, 2, countRows(t, db, "analyses"))
	assert.Equal(t, 2, countRows(t, db, "red_flags"))
	assert.Equal(t, 1, countRows(t, db, "statute_references"))

	var url, urlType, state string
	err = db.db.QueryRow(
		`SELECT url, url_type, state FROM regulatory_documents WHERE source_index = 0`,
	).Scan(&url, &urlType, &state)
	require.NoError(t, err)
	assert.Equal(t, records[0].URL, url)
	assert.Equal(t, "section", urlType)
	assert.Equal(t, "NY", state)

	var severity, numFlags int
	var current bool
	err = db.db.QueryRow(`
		SELECT a.max_severity, a.num_flags, a.is_current
		FROM analyses a JOIN regulatory_documents d ON d.id = a.document_id
		WHERE d.source_index = 0`,
	).Scan(&severity, &numFlags, &current)
	require.NoError(t, err)
	assert.Equal(t, 8, severity)
	assert.Equal(t, 2, numFlags)
	assert.True(t, current)

	var categories []string
	rows, err := db.db.Query(`SELECT category FROM red_flags ORDER BY category`)
	require.NoError(t, err)
	for rows.Next() {
		var category string
		require.NoError(t, rows.Scan(&category))
		categories = append(categories, category)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"redundant_hard_documentation", "zero_risk_language"}, categories)
}

func TestMigrate_ExtractsStatuteReferences(t *testing.T) {
	db := openTestDB(t)

	records := []models.RegulationRecord{
		docFixture(0, "https://regs.example.com/regs/10-NYCRR-405.4",
			"See 42 U.S.C. § 1396 and Pub. L. 104-191 for federal authority."),
	}

	summary, err := db.Migrate(context.Background(), records, nil, testMigrateConfig())
	require.NoError(t, err)
	require.Equal(t, 1, summary.StatuteRows)

	var uscJSON, lawsJSON, title, section string
	err = db.db.QueryRow(
		`SELECT usc_citations, public_laws, state_title, state_section FROM statute_references`,
	).Scan(&uscJSON, &lawsJSON, &title, &section)
	require.NoError(t, err)

	var usc, laws []string
	require.NoError(t, json.Unmarshal([]byte(uscJSON), &usc))
	require.NoError(t, json.Unmarshal([]byte(lawsJSON), &laws))
	assert.Equal(t, []string{"42 U.S.C. § 1396"}, usc)
	assert.Equal(t, []string{"Pub. L. 104-191"}, laws)
	assert.Equal(t, "10", title)
	assert.Equal(t, "405.4", section)
}

func TestMigrate_PlainContentSkipsStatuteRow(t *testing.T) {
	db := openTestDB(t)

	records := []models.RegulationRecord{
		docFixture(0, "https://regs.example.com/regs/400.1", "Nothing cited here."),
	}

	summary, err := db.Migrate(context.Background(), records, nil, testMigrateConfig())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.StatuteRows)
	assert.Equal(t, 0, countRows(t, db, "statute_references"))
}

func TestMigrate_RerunUpsertsWithoutDuplicates(t *testing.T) {
	db := openTestDB(t)

	records := []models.RegulationRecord{
		docFixture(0, "https://regs.example.com/regs/400.1", "Original text."),
		docFixture(1, "https://regs.example.com/regs/400.2", "Other text."),
	}
	_, err := db.Migrate(context.Background(), records, nil, testMigrateConfig())
	require.NoError(t, err)

	records[0].CleanedContent = "Amended text."
	summary, err := db.Migrate(context.Background(), records, nil, testMigrateConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Documents)

	assert.Equal(t, 2, countRows(t, db, "regulatory_documents"))

	var content string
	err = db.db.QueryRow(
		`SELECT content FROM regulatory_documents WHERE source_index = 0`,
	).Scan(&content)
	require.NoError(t, err)
	assert.Equal(t, "Amended text.", content)
}

func TestMigrate_SecondAnalysisRetiresFirst(t *testing.T) {
	db := openTestDB(t)

	record := docFixture(0, "https://regs.example.com/regs/400.1", "Applicants shall submit in writing.")
	records := []models.RegulationRecord{record}

	first := []models.AnalysisRecord{verdictFor(record, 4, models.RedFlagInPersonOnlyRecurring)}
	_, err := db.Migrate(context.Background(), records, first, testMigrateConfig())
	require.NoError(t, err)

	second := []models.AnalysisRecord{verdictFor(record, 9, models.RedFlagInPersonOnlyRecurring)}
	_, err = db.Migrate(context.Background(), records, second, testMigrateConfig())
	require.NoError(t, err)

	assert.Equal(t, 2, countRows(t, db, "analyses"))

	var severity int
	err = db.db.QueryRow(`SELECT max_severity FROM analyses WHERE is_current = TRUE`).Scan(&severity)
	require.NoError(t, err, "exactly one current analysis expected")
	assert.Equal(t, 9, severity)

	var retired int
	require.NoError(t, db.db.QueryRow(
		`SELECT COUNT(*) FROM analyses WHERE is_current = FALSE`,
	).Scan(&retired))
	assert.Equal(t, 1, retired)
}

func TestMigrate_UnmatchedVerdictIsNotMigrated(t *testing.T) {
	db := openTestDB(t)

	records := []models.RegulationRecord{
		docFixture(0, "https://regs.example.com/regs/400.1", "Some text."),
	}
	verdicts := []models.AnalysisRecord{
		verdictFor(docFixture(7, "https://regs.example.com/regs/gone", "stale"), 5),
	}

	summary, err := db.Migrate(context.Background(), records, verdicts, testMigrateConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Documents)
	assert.Equal(t, 0, summary.Analyses)
	assert.Equal(t, 0, countRows(t, db, "analyses"))
}

func TestMigrate_FinalPartialBatchIsCommitted(t *testing.T) {
	db := openTestDB(t)

	var records []models.RegulationRecord
	for i := 0; i < 5; i++ {
		records = append(records, docFixture(i,
			fmt.Sprintf("https://regs.example.com/regs/400.%d", i+1), "Text."))
	}

	cfg := testMigrateConfig()
	cfg.CommitBatch = 2
	summary, err := db.Migrate(context.Background(), records, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Documents)
	assert.Equal(t, 5, countRows(t, db, "regulatory_documents"))
}

func TestMigrate_CancelledContextAborts(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := []models.RegulationRecord{
		docFixture(0, "https://regs.example.com/regs/400.1", "Text."),
	}
	_, err := db.Migrate(ctx, records, nil, testMigrateConfig())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, countRows(t, db, "regulatory_documents"))
}
