package analyze

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reg-scraper/pkg/models"
	"reg-scraper/pkg/utils"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteCSV_HeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "red_flag_analysis.csv")
	records := []models.AnalysisRecord{
		verdictFixture("https://example.com/a", 0, 7),
		{
			SourceIndex: 1,
			URL:         "https://example.com/b",
			Title:       `Section 2, "Definitions"`,
			URLType:     models.LinkTypeSection,
			Content:     "line one\nline two",
			Analysis: models.RegulationAnalysis{
				RedFlags:             []models.RedFlagType{},
				SpecificTextExamples: []string{},
				SeverityScore:        0,
			},
		},
	}

	require.NoError(t, WriteCSV(records, path))

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])

	first := rows[1]
	assert.Equal(t, "0", first[0])
	assert.Equal(t, "https://example.com/a", first[2])
	assert.Equal(t, "section", first[4])
	assert.Equal(t, "7", first[7])

	var flags []string
	require.NoError(t, json.Unmarshal([]byte(first[5]), &flags))
	assert.Equal(t, []string{"zero_risk_language"}, flags)

	// Quoted commas and embedded newlines survive the round trip.
	second := rows[2]
	assert.Equal(t, `Section 2, "Definitions"`, second[1])
	assert.Equal(t, "line one\nline two", second[3])
	assert.Equal(t, "[]", second[5])
}

func TestWriteCSV_EmptyWritesHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, WriteCSV(nil, path))

	rows := readCSV(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, csvHeader, rows[0])
}

func TestReadCSV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verdicts.csv")

	written := []models.AnalysisRecord{
		verdictFixture("https://example.com/a", 0, 7),
		verdictFixture("https://example.com/b", 3, 2),
	}
	require.NoError(t, WriteCSV(written, path))

	loaded, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, written[0].SourceIndex, loaded[0].SourceIndex)
	assert.Equal(t, written[0].URL, loaded[0].URL)
	assert.Equal(t, written[0].Title, loaded[0].Title)
	assert.Equal(t, written[0].URLType, loaded[0].URLType)
	assert.Equal(t, written[0].Analysis.RedFlags, loaded[0].Analysis.RedFlags)
	assert.Equal(t, written[0].Analysis.SpecificTextExamples, loaded[0].Analysis.SpecificTextExamples)
	assert.Equal(t, written[0].Analysis.SeverityScore, loaded[0].Analysis.SeverityScore)
	assert.Equal(t, 3, loaded[1].SourceIndex)
}

func TestReadCSV_MissingFileFails(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "absent.csv"))
	require.ErrorIs(t, err, utils.ErrFilesystem)
}

func TestReadCSV_MalformedRowFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	content := "source_index,title,url,content,url_type,red_flags,specific_text_examples,severity_score\n" +
		"not-a-number,Title,https://example.com,body,section,[],[],5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := ReadCSV(path)
	require.ErrorIs(t, err, utils.ErrParsing)
}
