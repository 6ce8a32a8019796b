package crawler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reg-scraper/pkg/models"
)

func streamRecord(url, title string) models.RegulationRecord {
	return models.RegulationRecord{
		URL:            url,
		Title:          title,
		Content:        title + " content",
		CleanedContent: title + " content",
		URLType:        models.LinkTypeSection,
	}
}

func TestRecordWriter_AppendAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	w := NewRecordWriter(path, testLogger())
	require.NoError(t, w.Open(false))

	require.NoError(t, w.Append(streamRecord("https://example.com/a", "A")))
	require.NoError(t, w.Append(streamRecord("https://example.com/b", "B")))
	w.Close()

	records, err := ReadStream(path, testLogger())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "A", records[0].Title)
	assert.Equal(t, "B", records[1].Title)
}

func TestRecordWriter_FreshOpenTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	w := NewRecordWriter(path, testLogger())
	require.NoError(t, w.Open(false))
	require.NoError(t, w.Append(streamRecord("https://example.com/a", "A")))
	w.Close()

	again := NewRecordWriter(path, testLogger())
	require.NoError(t, again.Open(false))
	require.NoError(t, again.Append(streamRecord("https://example.com/b", "B")))
	again.Close()

	records, err := ReadStream(path, testLogger())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "B", records[0].Title)
}

func TestRecordWriter_ResumeOpenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	w := NewRecordWriter(path, testLogger())
	require.NoError(t, w.Open(false))
	require.NoError(t, w.Append(streamRecord("https://example.com/a", "A")))
	w.Close()

	resumed := NewRecordWriter(path, testLogger())
	require.NoError(t, resumed.Open(true))
	require.NoError(t, resumed.Append(streamRecord("https://example.com/b", "B")))
	resumed.Close()

	records, err := ReadStream(path, testLogger())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRecordWriter_AppendBeforeOpenFails(t *testing.T) {
	w := NewRecordWriter(filepath.Join(t.TempDir(), "records.jsonl"), testLogger())
	assert.Error(t, w.Append(streamRecord("https://example.com/a", "A")))
}

func TestReadStream_SkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	content := `{"url":"https://example.com/a","title":"A"}
{not json at all
{"url":"https://example.com/b","title":"B"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	records, err := ReadStream(path, testLogger())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "https://example.com/a", records[0].URL)
	assert.Equal(t, "https://example.com/b", records[1].URL)
}

func TestCompileAggregate_DeduplicatesAndReindexes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aggregate.json")
	stream := []models.RegulationRecord{
		streamRecord("https://example.com/a", "A first"),
		streamRecord("https://example.com/b", "B"),
		streamRecord("https://example.com/a", "A second"),
	}

	aggregate, err := CompileAggregate(stream, path, testLogger())
	require.NoError(t, err)
	require.Len(t, aggregate, 2)
	assert.Equal(t, "A first", aggregate[0].Title, "first occurrence wins")
	assert.Equal(t, 0, aggregate[0].SourceIndex)
	assert.Equal(t, 1, aggregate[1].SourceIndex)

	loaded, err := LoadAggregate(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "https://example.com/a", loaded[0].URL)
	assert.Equal(t, "https://example.com/b", loaded[1].URL)
}

func TestLoadAggregate_MissingFileFails(t *testing.T) {
	_, err := LoadAggregate(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
