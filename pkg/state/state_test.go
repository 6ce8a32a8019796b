package state

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reg-scraper/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	st := NewStore(filepath.Join(dir, "progress.json"), filepath.Join(dir, "failed_urls.json"), testLogger())
	return st, dir
}

func TestCrawlState_MarkAndQuery(t *testing.T) {
	s := NewCrawlState()
	visited := "https://www.law.cornell.edu/regulations/new-york/title-10"
	failed := "https://www.law.cornell.edu/regulations/new-york/part-405"
	fresh := "https://www.law.cornell.edu/regulations/new-york/section-405.1"

	s.MarkVisited(visited)
	s.MarkFailed(failed)

	assert.True(t, s.IsKnown(visited))
	assert.True(t, s.IsKnown(failed))
	assert.False(t, s.IsKnown(fresh))

	assert.True(t, s.IsVisited(visited))
	assert.False(t, s.IsVisited(failed))
	assert.True(t, s.IsFailed(failed))
	assert.False(t, s.IsFailed(visited))

	assert.Equal(t, 1, s.VisitedCount())
	assert.Equal(t, 1, s.FailedCount())
}

func TestCrawlState_RetryPromotion(t *testing.T) {
	s := NewCrawlState()
	url := "https://www.law.cornell.edu/regulations/new-york/10-NYCRR-405.4"

	s.MarkFailed(url)
	require.True(t, s.IsFailed(url))

	// Retry succeeds: out of failed, into visited. Still known throughout.
	s.UnmarkFailed(url)
	s.MarkVisited(url)

	assert.False(t, s.IsFailed(url))
	assert.True(t, s.IsVisited(url))
	assert.True(t, s.IsKnown(url))
}

func TestCrawlState_FailedURLsSorted(t *testing.T) {
	s := NewCrawlState()
	s.MarkFailed("https://example.com/c")
	s.MarkFailed("https://example.com/a")
	s.MarkFailed("https://example.com/b")

	assert.Equal(t, []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	}, s.FailedURLs())
}

func TestCrawlState_SnapshotRestoreRoundTrip(t *testing.T) {
	s := NewCrawlState()
	s.MarkVisited("https://example.com/b")
	s.MarkVisited("https://example.com/a")
	s.MarkFailed("https://example.com/x")
	s.RecordScraped()
	s.RecordScraped()

	pending := []string{"https://example.com/q2", "https://example.com/q1"}
	progress := s.Snapshot("session-1", pending)

	assert.Equal(t, "session-1", progress.SessionID)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, progress.VisitedURLs)
	// Pending keeps queue order, not sorted order.
	assert.Equal(t, pending, progress.PendingURLs)
	assert.Equal(t, 2, progress.TotalScraped)
	assert.False(t, progress.UpdatedAt.IsZero())

	restored := NewCrawlState()
	restored.Restore(progress, []string{"https://example.com/x"})

	assert.True(t, restored.IsVisited("https://example.com/a"))
	assert.True(t, restored.IsVisited("https://example.com/b"))
	assert.True(t, restored.IsFailed("https://example.com/x"))
	assert.Equal(t, 2, restored.Scraped())
}

func TestCrawlState_SnapshotCopiesPending(t *testing.T) {
	s := NewCrawlState()
	pending := []string{"https://example.com/a"}
	progress := s.Snapshot("s", pending)

	pending[0] = "https://example.com/mutated"
	assert.Equal(t, "https://example.com/a", progress.PendingURLs[0])
}

func TestStore_SaveThenLoad(t *testing.T) {
	st, _ := newTestStore(t)
	s := NewCrawlState()
	s.MarkVisited("https://example.com/a")
	s.MarkFailed("https://example.com/bad")
	s.RecordScraped()

	progress := s.Snapshot("session-42", []string{"https://example.com/next"})
	require.NoError(t, st.Save(progress, s.FailedURLs()))
	assert.True(t, st.Exists())

	loaded, failed, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, "session-42", loaded.SessionID)
	assert.Equal(t, []string{"https://example.com/a"}, loaded.VisitedURLs)
	assert.Equal(t, []string{"https://example.com/next"}, loaded.PendingURLs)
	assert.Equal(t, 1, loaded.TotalScraped)
	assert.Equal(t, []string{"https://example.com/bad"}, failed)
}

func TestStore_LoadMissingIsFreshStart(t *testing.T) {
	st, _ := newTestStore(t)

	assert.False(t, st.Exists())
	progress, failed, err := st.Load()
	require.NoError(t, err)
	assert.Empty(t, progress.VisitedURLs)
	assert.Empty(t, progress.PendingURLs)
	assert.Zero(t, progress.TotalScraped)
	assert.Empty(t, failed)
}

func TestStore_LoadCorruptProgressFails(t *testing.T) {
	st, dir := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "progress.json"), []byte("{nope"), 0644))

	_, _, err := st.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrStateCorrupt)
}

func TestStore_SaveRewritesEmptyFailedList(t *testing.T) {
	st, dir := newTestStore(t)
	failedPath := filepath.Join(dir, "failed_urls.json")

	// First checkpoint records a failure.
	require.NoError(t, st.Save(Progress{VisitedURLs: []string{}}, []string{"https://example.com/bad"}))
	_, failed, err := st.Load()
	require.NoError(t, err)
	require.Len(t, failed, 1)

	// After the URL recovers, the next checkpoint clears the file rather
	// than leaving the stale list behind.
	require.NoError(t, st.Save(Progress{VisitedURLs: []string{"https://example.com/bad"}}, nil))
	data, err := os.ReadFile(failedPath)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))

	_, failed, err = st.Load()
	require.NoError(t, err)
	assert.Empty(t, failed)
}
